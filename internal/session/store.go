package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mfalcone/duecall/internal/decision"
	"github.com/mfalcone/duecall/internal/directory"
	"github.com/mfalcone/duecall/internal/intent"
	"github.com/mfalcone/duecall/internal/risk"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

var (
	ErrNotFound = errors.New("session not found or terminal")
	ErrConflict = errors.New("session id conflicts with active session")
	ErrBusy     = errors.New("session has a turn in flight")
)

// Turn is one utterance exchange, immutable once appended. Seq is gapless
// and strictly increasing within a session.
type Turn struct {
	Seq        int           `json:"seq"`
	Utterance  string        `json:"utterance"`
	Intent     intent.Intent `json:"intent"`
	Confidence float64       `json:"confidence"`
	Ambiguous  bool          `json:"ambiguous"`
	At         time.Time     `json:"at"`
}

// Context is the derived conversation state carried across turns.
type Context struct {
	LastIntent      intent.Intent `json:"last_intent"`
	Reprompts       int           `json:"reprompts"`
	PromisedPayment bool          `json:"promised_payment"`
	CallbackAt      *time.Time    `json:"callback_at,omitempty"`
	RiskScore       int           `json:"risk_score"`
	RiskTier        risk.Tier     `json:"risk_tier"`
}

// Session is one conversation with a customer. The customer and obligation
// snapshots are taken once at creation; the directory stays read-only.
type Session struct {
	ID             string               `json:"session_id"`
	CustomerID     string               `json:"customer_id"`
	Customer       directory.Customer   `json:"customer"`
	Obligation     directory.Obligation `json:"obligation"`
	Status         Status               `json:"status"`
	State          decision.State       `json:"state"`
	Turns          []Turn               `json:"turns"`
	Context        Context              `json:"context"`
	StartedAt      time.Time            `json:"started_at"`
	LastActivityAt time.Time            `json:"last_activity_at"`
}

// Seed carries the per-session inputs computed once at creation.
type Seed struct {
	Customer   directory.Customer
	Obligation directory.Obligation
	RiskScore  int
	RiskTier   risk.Tier
}

type record struct {
	sess     *Session
	turnLock sync.Mutex
}

// Store holds all sessions, active and archived, and enforces the
// one-active-session-per-customer invariant plus per-session turn
// exclusivity.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*record
	byCustomer  map[string]string
	idleTimeout time.Duration
	onExpire    func(*Session)
}

func NewStore(idleTimeout time.Duration) *Store {
	if idleTimeout <= 0 {
		idleTimeout = 15 * time.Minute
	}
	return &Store{
		sessions:    make(map[string]*record),
		byCustomer:  make(map[string]string),
		idleTimeout: idleTimeout,
	}
}

func (s *Store) SetExpireHook(hook func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = hook
}

// Active returns the active session for a customer, if any.
func (s *Store) Active(customerID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCustomer[customerID]
	if !ok {
		return nil, false
	}
	return clone(s.sessions[id].sess), true
}

// GetOrCreate returns the customer's active session or creates a fresh one
// from the seed. A non-empty hint naming a different active session is a
// conflict the caller must resync from. A hint for an archived session is
// ignored: later turns start fresh per policy.
func (s *Store) GetOrCreate(customerID, hint string, seed Seed) (*Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byCustomer[customerID]; ok {
		if hint != "" && hint != id {
			return nil, false, ErrConflict
		}
		return clone(s.sessions[id].sess), false, nil
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Customer:   seed.Customer,
		Obligation: seed.Obligation,
		Status:     StatusActive,
		State:      decision.StateGreeting,
		Context: Context{
			RiskScore: seed.RiskScore,
			RiskTier:  seed.RiskTier,
		},
		StartedAt:      now,
		LastActivityAt: now,
	}
	s.sessions[sess.ID] = &record{sess: sess}
	s.byCustomer[customerID] = sess.ID
	return clone(sess), true, nil
}

// Get returns any known session, archived included, so transcripts stay
// readable after termination.
func (s *Store) Get(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(rec.sess), nil
}

// Acquire takes the session's exclusive turn lock. A second caller gets
// ErrBusy instead of queueing so the front-end can retry briefly.
func (s *Store) Acquire(sessionID string) error {
	s.mu.RLock()
	rec, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if !rec.turnLock.TryLock() {
		return ErrBusy
	}
	return nil
}

func (s *Store) Release(sessionID string) {
	s.mu.RLock()
	rec, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	rec.turnLock.Unlock()
}

// AppendTurn adds the next turn to an active session, assigning its gapless
// sequence number and refreshing the activity timestamp.
func (s *Store) AppendTurn(sessionID string, t Turn) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok || rec.sess.Status != StatusActive {
		return nil, ErrNotFound
	}

	t.Seq = len(rec.sess.Turns) + 1
	if t.At.IsZero() {
		t.At = time.Now().UTC()
	}
	rec.sess.Turns = append(rec.sess.Turns, t)
	rec.sess.Context.LastIntent = t.Intent
	rec.sess.LastActivityAt = time.Now().UTC()
	return clone(rec.sess), nil
}

// ApplyDecision records the FSM outcome for the latest turn: new state,
// re-prompt count, callback bookkeeping, and obligation status transitions.
// Terminal states archive the session.
func (s *Store) ApplyDecision(sessionID string, d decision.Decision) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok || rec.sess.Status != StatusActive {
		return nil, ErrNotFound
	}

	sess := rec.sess
	sess.State = d.NextState
	sess.Context.Reprompts = d.Reprompts
	sess.LastActivityAt = time.Now().UTC()

	switch d.Action {
	case decision.ActionScheduleCallback:
		sess.Context.PromisedPayment = true
		sess.Context.CallbackAt = d.CallbackAt
		sess.Obligation.Status = directory.ObligationPromised
	case decision.ActionEscalate:
		sess.Obligation.Status = directory.ObligationEscalated
	}

	if d.NextState.Terminal() {
		s.archiveLocked(sess)
	}
	return clone(sess), nil
}

// Terminate archives a session. Idempotent; appended turns stay readable.
func (s *Store) Terminate(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	s.archiveLocked(rec.sess)
}

func (s *Store) archiveLocked(sess *Session) {
	if sess.Status == StatusArchived {
		return
	}
	sess.Status = StatusArchived
	if cur, ok := s.byCustomer[sess.CustomerID]; ok && cur == sess.ID {
		delete(s.byCustomer, sess.CustomerID)
	}
}

func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byCustomer)
}

// StartJanitor sweeps idle active sessions in the background. A session
// holding its turn lock is never preempted mid-turn.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.expireIdle()
			}
		}
	}()
}

func (s *Store) expireIdle() {
	now := time.Now().UTC()

	s.mu.RLock()
	var candidates []*record
	for _, rec := range s.sessions {
		if rec.sess.Status == StatusActive && now.Sub(rec.sess.LastActivityAt) >= s.idleTimeout {
			candidates = append(candidates, rec)
		}
	}
	s.mu.RUnlock()

	var expired []*Session
	for _, rec := range candidates {
		if !rec.turnLock.TryLock() {
			continue
		}
		s.mu.Lock()
		// Re-check under the store lock: a turn may have landed between the
		// scan and the lock acquisition.
		if rec.sess.Status == StatusActive && now.Sub(rec.sess.LastActivityAt) >= s.idleTimeout {
			rec.sess.State = decision.StateClosed
			s.archiveLocked(rec.sess)
			expired = append(expired, clone(rec.sess))
		}
		s.mu.Unlock()
		rec.turnLock.Unlock()
	}

	s.mu.RLock()
	hook := s.onExpire
	s.mu.RUnlock()
	if hook != nil {
		for _, sess := range expired {
			hook(sess)
		}
	}
}

func clone(sess *Session) *Session {
	c := *sess
	if sess.Turns != nil {
		c.Turns = make([]Turn, len(sess.Turns))
		copy(c.Turns, sess.Turns)
	}
	return &c
}
