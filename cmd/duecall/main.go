package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mfalcone/duecall/internal/config"
	"github.com/mfalcone/duecall/internal/decision"
	"github.com/mfalcone/duecall/internal/directory"
	"github.com/mfalcone/duecall/internal/httpapi"
	"github.com/mfalcone/duecall/internal/intent"
	"github.com/mfalcone/duecall/internal/journal"
	"github.com/mfalcone/duecall/internal/notify"
	"github.com/mfalcone/duecall/internal/observability"
	"github.com/mfalcone/duecall/internal/orchestrator"
	"github.com/mfalcone/duecall/internal/payment"
	"github.com/mfalcone/duecall/internal/replies"
	"github.com/mfalcone/duecall/internal/risk"
	"github.com/mfalcone/duecall/internal/session"
	"github.com/mfalcone/duecall/internal/trigger"
)

// logDialer is the stand-in telephony backend: the campaign sweep plans and
// prioritizes contacts, and the actual dial-out is an operator concern.
type logDialer struct{}

func (logDialer) Dial(_ context.Context, c trigger.Contact) error {
	log.Printf("campaign contact: customer=%s obligation=%s due_in=%dd priority=%d",
		c.CustomerID, c.ObligationID, c.DaysUntilDue, c.Priority)
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	journalStore, err := journal.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("journal store init failed: %v", err)
	}
	defer journalStore.Close()

	classifier, err := intent.NewClassifier(cfg.ClassifierMode, cfg.NLUEndpoint, cfg.NLUTimeout)
	if err != nil {
		log.Fatalf("classifier init failed: %v", err)
	}

	catalog, err := replies.LoadCatalog(cfg.RepliesPath)
	if err != nil {
		log.Fatalf("reply catalog load failed: %v", err)
	}

	dir := directory.NewDirectory(cfg.DirectoryURL, cfg.DirectoryTimeout)
	channel := notify.NewChannel(cfg.NotifyEndpoint, cfg.DeliveryTimeout)

	sessions := session.NewStore(cfg.SessionIdleTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	scorer := risk.NewScorer()
	engine := decision.NewEngine(catalog, cfg.RepromptLimit)
	issuer := payment.NewIssuer(sessions, channel, cfg.DeliveryTimeout)

	core := orchestrator.New(
		sessions,
		classifier,
		scorer,
		engine,
		issuer,
		dir,
		journalStore,
		metrics,
	)

	api := httpapi.New(cfg, sessions, core, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, cfg.JanitorInterval)

	if cfg.CampaignEnabled {
		campaign := trigger.NewScheduler(dir, scorer, logDialer{}, cfg.ReminderDays)
		if err := campaign.Start(cfg.CampaignCron); err != nil {
			log.Fatalf("campaign scheduler init failed: %v", err)
		}
		defer campaign.Stop()
		log.Printf("campaign sweep scheduled: %s", cfg.CampaignCron)
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
