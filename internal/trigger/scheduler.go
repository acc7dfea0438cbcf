package trigger

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mfalcone/duecall/internal/directory"
	"github.com/mfalcone/duecall/internal/risk"
)

// Contact is one outbound call the sweep wants placed, highest priority
// first.
type Contact struct {
	CustomerID   string    `json:"customer_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Language     string    `json:"language"`
	ObligationID string    `json:"obligation_id"`
	AmountDue    float64   `json:"amount_due"`
	DueDate      time.Time `json:"due_date"`
	DaysUntilDue int       `json:"days_until_due"`
	Priority     int       `json:"priority"`
}

// Dialer is the telephony collaborator that actually places calls. The core
// only decides who to contact and in which order.
type Dialer interface {
	Dial(ctx context.Context, c Contact) error
}

// Scheduler periodically sweeps the directory for obligations inside the
// reminder windows and hands prioritized contacts to the dialer.
type Scheduler struct {
	cron         *cron.Cron
	directory    directory.Directory
	scorer       *risk.Scorer
	dialer       Dialer
	reminderDays []int
	now          func() time.Time
}

func NewScheduler(dir directory.Directory, scorer *risk.Scorer, dialer Dialer, reminderDays []int) *Scheduler {
	if len(reminderDays) == 0 {
		reminderDays = []int{7, 3, 1, 0}
	}
	return &Scheduler{
		cron:         cron.New(),
		directory:    dir,
		scorer:       scorer,
		dialer:       dialer,
		reminderDays: reminderDays,
		now:          time.Now,
	}
}

// Start registers the sweep on the given cron spec and begins running it.
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			log.Printf("campaign sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule campaign sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep builds the prioritized contact list and dials each entry. Dial
// failures are logged and skipped; one unreachable customer never stalls
// the campaign.
func (s *Scheduler) Sweep(ctx context.Context) ([]Contact, error) {
	contacts, err := s.Plan(ctx)
	if err != nil {
		return nil, err
	}

	for _, c := range contacts {
		if s.dialer == nil {
			continue
		}
		if err := s.dialer.Dial(ctx, c); err != nil {
			log.Printf("dial %s failed: %v", c.CustomerID, err)
		}
	}
	return contacts, nil
}

// Plan lists contacts due inside the reminder windows, highest priority
// first, without dialing anyone.
func (s *Scheduler) Plan(ctx context.Context) ([]Contact, error) {
	maxDays := 0
	for _, d := range s.reminderDays {
		if d > maxDays {
			maxDays = d
		}
	}

	obligations, err := s.directory.DueWithin(ctx, maxDays)
	if err != nil {
		return nil, fmt.Errorf("list due obligations: %w", err)
	}

	now := s.now().UTC()
	var contacts []Contact
	for _, obl := range obligations {
		days := daysUntil(now, obl.DueDate)
		if !s.inWindow(days) {
			continue
		}

		cust, err := s.directory.FetchCustomer(ctx, obl.CustomerID)
		if err != nil {
			log.Printf("skip obligation %s: %v", obl.ID, err)
			continue
		}

		contacts = append(contacts, Contact{
			CustomerID:   cust.ID,
			Name:         cust.Name,
			Phone:        cust.Phone,
			Language:     cust.Language,
			ObligationID: obl.ID,
			AmountDue:    obl.AmountDue,
			DueDate:      obl.DueDate,
			DaysUntilDue: days,
			Priority:     s.priority(cust, obl, days),
		})
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].Priority > contacts[j].Priority
	})
	return contacts, nil
}

// priority combines the risk score with due-date proximity: closer dues get
// called first within the same risk band.
func (s *Scheduler) priority(cust directory.Customer, obl directory.Obligation, days int) int {
	p := s.scorer.Score(cust, obl)
	switch {
	case days <= 0:
		p += 50
	case days == 1:
		p += 30
	case days <= 3:
		p += 15
	}
	return p
}

func (s *Scheduler) inWindow(days int) bool {
	if days < 0 {
		// Already overdue; always in scope.
		return true
	}
	for _, d := range s.reminderDays {
		if days == d {
			return true
		}
	}
	return false
}

// daysUntil compares calendar dates, not 24h spans, so an installment due
// tomorrow morning counts as one day out even late tonight.
func daysUntil(now, due time.Time) int {
	ny, nm, nd := now.UTC().Date()
	dy, dm, dd := due.UTC().Date()
	a := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	b := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
