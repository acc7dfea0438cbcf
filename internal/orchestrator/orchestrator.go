package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mfalcone/duecall/internal/decision"
	"github.com/mfalcone/duecall/internal/directory"
	"github.com/mfalcone/duecall/internal/intent"
	"github.com/mfalcone/duecall/internal/journal"
	"github.com/mfalcone/duecall/internal/observability"
	"github.com/mfalcone/duecall/internal/payment"
	"github.com/mfalcone/duecall/internal/policy"
	"github.com/mfalcone/duecall/internal/risk"
	"github.com/mfalcone/duecall/internal/session"
)

// TurnRequest is the core's only inbound operation: one customer utterance.
type TurnRequest struct {
	CustomerID    string `json:"customer_id"`
	Utterance     string `json:"utterance"`
	SessionIDHint string `json:"session_id,omitempty"`
}

// TurnResult always carries a reply string and action tag for the front-end,
// recoverable faults included.
type TurnResult struct {
	SessionID      string          `json:"session_id"`
	Reply          string          `json:"reply"`
	Action         decision.Action `json:"action"`
	State          decision.State  `json:"state"`
	Intent         intent.Intent   `json:"intent"`
	ReferenceID    string          `json:"reference_id,omitempty"`
	DeliveryFailed bool            `json:"delivery_failed,omitempty"`
}

// Orchestrator drives classify -> score -> decide -> issue -> journal for
// each turn under the session's exclusive lock.
type Orchestrator struct {
	sessions   *session.Store
	classifier intent.Classifier
	scorer     *risk.Scorer
	engine     *decision.Engine
	issuer     *payment.Issuer
	directory  directory.Directory
	journal    journal.Store
	metrics    *observability.Metrics
}

func New(
	sessions *session.Store,
	classifier intent.Classifier,
	scorer *risk.Scorer,
	engine *decision.Engine,
	issuer *payment.Issuer,
	dir directory.Directory,
	jrnl journal.Store,
	metrics *observability.Metrics,
) *Orchestrator {
	return &Orchestrator{
		sessions:   sessions,
		classifier: classifier,
		scorer:     scorer,
		engine:     engine,
		issuer:     issuer,
		directory:  dir,
		journal:    jrnl,
		metrics:    metrics,
	}
}

// HandleTurn processes one inbound turn end to end. Errors follow the
// session taxonomy: session.ErrConflict, session.ErrNotFound,
// session.ErrBusy, directory.ErrNotFound.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	started := time.Now()
	if req.CustomerID == "" {
		return TurnResult{}, fmt.Errorf("%w: missing customer id", session.ErrNotFound)
	}

	// The session may be archived by the janitor between lookup and lock
	// acquisition; one retry covers that window by creating a fresh session.
	for attempt := 0; attempt < 2; attempt++ {
		sess, err := o.ensureSession(ctx, req)
		if err != nil {
			o.countError(err)
			return TurnResult{}, err
		}

		if err := o.sessions.Acquire(sess.ID); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				continue
			}
			o.countError(err)
			return TurnResult{}, err
		}

		res, err := o.processTurn(ctx, sess.ID, req)
		o.sessions.Release(sess.ID)
		if errors.Is(err, session.ErrNotFound) && attempt == 0 {
			continue
		}
		if err != nil {
			o.countError(err)
			return TurnResult{}, err
		}
		if o.metrics != nil {
			o.metrics.ObserveTurnLatency(time.Since(started))
		}
		return res, nil
	}
	return TurnResult{}, session.ErrNotFound
}

// ensureSession finds the customer's active session or creates one, taking
// the directory snapshot and risk score exactly once per session.
func (o *Orchestrator) ensureSession(ctx context.Context, req TurnRequest) (*session.Session, error) {
	if sess, ok := o.sessions.Active(req.CustomerID); ok {
		if req.SessionIDHint != "" && req.SessionIDHint != sess.ID {
			return nil, session.ErrConflict
		}
		return sess, nil
	}

	cust, err := o.directory.FetchCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("fetch customer %s: %w", req.CustomerID, err)
	}
	obl, err := o.directory.FetchObligation(ctx, req.CustomerID)
	if err != nil {
		// No obligation means there is nothing to collect on; the session is
		// never started.
		return nil, fmt.Errorf("fetch obligation for %s: %w", req.CustomerID, err)
	}

	score := o.scorer.Score(cust, obl)
	sess, created, err := o.sessions.GetOrCreate(req.CustomerID, req.SessionIDHint, session.Seed{
		Customer:   cust,
		Obligation: obl,
		RiskScore:  score,
		RiskTier:   risk.TierOf(score),
	})
	if err != nil {
		return nil, err
	}
	if created && o.metrics != nil {
		o.metrics.SessionEvents.WithLabelValues("created").Inc()
		o.metrics.ActiveSessions.Set(float64(o.sessions.ActiveCount()))
	}
	return sess, nil
}

// processTurn runs with the session lock held.
func (o *Orchestrator) processTurn(ctx context.Context, sessionID string, req TurnRequest) (TurnResult, error) {
	sess, err := o.sessions.Get(sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	if sess.Status != session.StatusActive {
		return TurnResult{}, session.ErrNotFound
	}

	result, err := o.classifier.Classify(ctx, req.Utterance, intent.Context{
		LastIntent: sess.Context.LastIntent,
		TurnCount:  len(sess.Turns),
		Language:   sess.Customer.Language,
	})
	if err != nil {
		// Classifier faults degrade to a re-prompt, never to a dropped turn.
		result = intent.Result{Intent: intent.Unclear, Confidence: 0}
	}

	// Cancellation is honored up to the decision; after that the turn runs
	// to completion so committed side effects stay consistent.
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}

	sess, err = o.sessions.AppendTurn(sessionID, session.Turn{
		Utterance:  req.Utterance,
		Intent:     result.Intent,
		Confidence: result.Confidence,
		Ambiguous:  result.Ambiguous(),
	})
	if err != nil {
		return TurnResult{}, err
	}
	if o.metrics != nil {
		o.metrics.TurnsTotal.WithLabelValues(string(result.Intent)).Inc()
	}

	dec := o.engine.Decide(decision.Input{
		State:        sess.State,
		Intent:       result,
		Utterance:    req.Utterance,
		Tier:         sess.Context.RiskTier,
		Reprompts:    sess.Context.Reprompts,
		Language:     sess.Customer.Language,
		CustomerName: sess.Customer.Name,
		AmountDue:    sess.Obligation.AmountDue,
		DueDate:      sess.Obligation.DueDate.Format("2006-01-02"),
	})

	res := TurnResult{
		SessionID: sessionID,
		Reply:     dec.Reply,
		Action:    dec.Action,
		State:     dec.NextState,
		Intent:    result.Intent,
	}

	var issuance *payment.Issuance
	if dec.Action == decision.ActionIssuePaymentLink {
		issueStart := time.Now()
		iss, issueErr := o.issuer.Issue(ctx, sessionID, sess.Obligation, dec.Destination)
		if o.metrics != nil {
			o.metrics.ObserveDeliveryLatency(time.Since(issueStart))
		}
		switch {
		case issueErr == nil:
			issuance = &iss
			res.ReferenceID = iss.ReferenceID
		case errors.Is(issueErr, payment.ErrDelivery):
			// The link could not be delivered; keep the session open in
			// CONFIRMING_PAYMENT so the customer can retry, and tell them so.
			issuance = &iss
			res.DeliveryFailed = true
			res.Action = decision.ActionContinue
			res.State = sess.State
			res.Reply = o.engine.Apology(sess.Customer.Language)
			log.Printf("delivery failed for session %s: %v", sessionID, issueErr)
			dec = decision.Decision{
				NextState: sess.State,
				Action:    decision.ActionContinue,
				Reply:     res.Reply,
				Reprompts: sess.Context.Reprompts,
			}
		case errors.Is(issueErr, payment.ErrAlreadyIssued):
			// A previous turn already committed the issuance; close out as
			// decided without a second delivery.
			log.Printf("issuance already live for session %s", sessionID)
		default:
			return TurnResult{}, issueErr
		}
		if o.metrics != nil && issuance != nil {
			o.metrics.IssuancesTotal.WithLabelValues(string(issuance.Status)).Inc()
		}
	}

	prevState := sess.State
	sess, err = o.sessions.ApplyDecision(sessionID, dec)
	if err != nil {
		return TurnResult{}, err
	}
	if o.metrics != nil {
		o.metrics.DecisionsTotal.WithLabelValues(string(dec.Action)).Inc()
		if sess.Status != session.StatusActive {
			o.metrics.SessionEvents.WithLabelValues("ended").Inc()
		}
		o.metrics.ActiveSessions.Set(float64(o.sessions.ActiveCount()))
	}

	o.record(sess, prevState, req.Utterance, result, dec, issuance)
	return res, nil
}

// record journals the transition best-effort; a journal fault never blocks
// or rolls back the turn.
func (o *Orchestrator) record(sess *session.Session, prevState decision.State, utterance string, result intent.Result, dec decision.Decision, issuance *payment.Issuance) {
	redacted, changed := policy.RedactUtterance(utterance)
	entry := journal.Entry{
		SessionID:  sess.ID,
		CustomerID: sess.CustomerID,
		TurnSeq:    len(sess.Turns),
		Utterance:  redacted,
		Intent:     string(result.Intent),
		Confidence: result.Confidence,
		State:      string(prevState),
		NextState:  string(dec.NextState),
		Action:     string(dec.Action),
		Reply:      dec.Reply,
		Urgent:     dec.Urgent,
		Redacted:   changed,
	}
	if issuance != nil {
		entry.ReferenceID = issuance.ReferenceID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.journal.Record(ctx, entry); err != nil {
		log.Printf("journal record failed for session %s turn %d: %v", sess.ID, entry.TurnSeq, err)
	}
}

func (o *Orchestrator) countError(err error) {
	if o.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, session.ErrBusy):
		o.metrics.TurnErrors.WithLabelValues("busy").Inc()
	case errors.Is(err, session.ErrConflict):
		o.metrics.TurnErrors.WithLabelValues("conflict").Inc()
	case errors.Is(err, session.ErrNotFound), errors.Is(err, directory.ErrNotFound):
		o.metrics.TurnErrors.WithLabelValues("not_found").Inc()
	default:
		o.metrics.TurnErrors.WithLabelValues("internal").Inc()
	}
}
