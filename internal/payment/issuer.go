package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mfalcone/duecall/internal/decision"
	"github.com/mfalcone/duecall/internal/directory"
	"github.com/mfalcone/duecall/internal/notify"
	"github.com/mfalcone/duecall/internal/session"
)

var (
	ErrAlreadyIssued = errors.New("payment: session already has a live issuance")
	ErrBadState      = errors.New("payment: session not confirming payment")
	ErrDelivery      = errors.New("payment: delivery failed")
)

type IssuanceStatus string

const (
	StatusCreated        IssuanceStatus = "created"
	StatusDelivered      IssuanceStatus = "delivered"
	StatusDeliveryFailed IssuanceStatus = "delivery_failed"
)

// Issuance is one generated, trackable payment request.
type Issuance struct {
	ReferenceID  string         `json:"reference_id"`
	SessionID    string         `json:"session_id"`
	ObligationID string         `json:"obligation_id"`
	Amount       float64        `json:"amount"`
	Destination  string         `json:"destination"`
	Status       IssuanceStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// SessionReader is the slice of the session store the issuer needs.
type SessionReader interface {
	Get(sessionID string) (*session.Session, error)
}

// Issuer generates single-use payment references and hands them to the
// notification channel at most once per session. The check-then-create step
// runs under one mutex because the channel call itself is not transactional;
// per-session turn exclusivity upstream is not the only guard.
type Issuer struct {
	sessions        SessionReader
	channel         notify.Channel
	deliveryTimeout time.Duration

	mu        sync.Mutex
	records   map[string]*Issuance
	bySession map[string][]string
}

func NewIssuer(sessions SessionReader, channel notify.Channel, deliveryTimeout time.Duration) *Issuer {
	if deliveryTimeout <= 0 {
		deliveryTimeout = 10 * time.Second
	}
	return &Issuer{
		sessions:        sessions,
		channel:         channel,
		deliveryTimeout: deliveryTimeout,
		records:         make(map[string]*Issuance),
		bySession:       make(map[string][]string),
	}
}

// Issue creates and delivers one payment reference for the session. A failed
// delivery leaves a delivery_failed record behind and may be retried, which
// creates a new record with a fresh reference id.
func (i *Issuer) Issue(ctx context.Context, sessionID string, obligation directory.Obligation, destination string) (Issuance, error) {
	i.mu.Lock()
	sess, err := i.sessions.Get(sessionID)
	if err != nil {
		i.mu.Unlock()
		return Issuance{}, fmt.Errorf("issue for session %s: %w", sessionID, err)
	}
	if sess.State != decision.StateConfirmingPayment {
		i.mu.Unlock()
		return Issuance{}, ErrBadState
	}
	for _, ref := range i.bySession[sessionID] {
		if i.records[ref].Status != StatusDeliveryFailed {
			i.mu.Unlock()
			return Issuance{}, ErrAlreadyIssued
		}
	}

	rec := &Issuance{
		ReferenceID:  uuid.NewString(),
		SessionID:    sessionID,
		ObligationID: obligation.ID,
		Amount:       obligation.AmountDue,
		Destination:  destination,
		Status:       StatusCreated,
		CreatedAt:    time.Now().UTC(),
	}
	i.records[rec.ReferenceID] = rec
	i.bySession[sessionID] = append(i.bySession[sessionID], rec.ReferenceID)
	i.mu.Unlock()

	// The issuance is committed; caller cancellation is no longer honored.
	// Only the bounded delivery timeout applies from here.
	deliveryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.deliveryTimeout)
	defer cancel()

	err = i.channel.Deliver(deliveryCtx, notify.Payload{
		ReferenceID:  rec.ReferenceID,
		ObligationID: obligation.ID,
		Amount:       obligation.AmountDue,
		Destination:  destination,
	})

	i.mu.Lock()
	defer i.mu.Unlock()
	if err != nil {
		rec.Status = StatusDeliveryFailed
		return *rec, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	rec.Status = StatusDelivered
	return *rec, nil
}

// BySession lists every issuance record for a session, oldest first.
func (i *Issuer) BySession(sessionID string) []Issuance {
	i.mu.Lock()
	defer i.mu.Unlock()
	refs := i.bySession[sessionID]
	out := make([]Issuance, 0, len(refs))
	for _, ref := range refs {
		out = append(out, *i.records[ref])
	}
	return out
}

// Get returns one issuance by reference id.
func (i *Issuer) Get(referenceID string) (Issuance, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	rec, ok := i.records[referenceID]
	if !ok {
		return Issuance{}, false
	}
	return *rec, true
}
