package journal

import (
	"context"
	"time"
)

// Entry is one appended interaction record: the turn, the decision it
// produced, and the issuance reference when one was created. Consumed later
// for analytics; never read back on the conversation path.
type Entry struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	CustomerID  string    `json:"customer_id"`
	TurnSeq     int       `json:"turn_seq"`
	Utterance   string    `json:"utterance"`
	Intent      string    `json:"intent"`
	Confidence  float64   `json:"confidence"`
	State       string    `json:"state"`
	NextState   string    `json:"next_state"`
	Action      string    `json:"action"`
	Reply       string    `json:"reply"`
	Urgent      bool      `json:"urgent"`
	ReferenceID string    `json:"reference_id,omitempty"`
	Redacted    bool      `json:"redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the append-only interaction log. Record never rejects a
// well-formed entry; persistence failures are reported to the caller but
// must never block or roll back a conversation.
type Store interface {
	Record(ctx context.Context, e Entry) error
	BySession(ctx context.Context, sessionID string) ([]Entry, error)
	Close() error
}
