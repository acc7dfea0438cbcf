package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the interaction journal in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS interaction_journal (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			turn_seq INT NOT NULL,
			utterance TEXT NOT NULL,
			intent TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			state TEXT NOT NULL,
			next_state TEXT NOT NULL,
			action TEXT NOT NULL,
			reply TEXT NOT NULL,
			urgent BOOLEAN NOT NULL DEFAULT FALSE,
			reference_id TEXT,
			redacted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_journal_session_seq ON interaction_journal (session_id, turn_seq);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO interaction_journal
		 (id, session_id, customer_id, turn_seq, utterance, intent, confidence,
		  state, next_state, action, reply, urgent, reference_id, redacted, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		e.ID, e.SessionID, e.CustomerID, e.TurnSeq, e.Utterance, e.Intent,
		e.Confidence, e.State, e.NextState, e.Action, e.Reply, e.Urgent,
		e.ReferenceID, e.Redacted, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) BySession(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, customer_id, turn_seq, utterance, intent, confidence,
		        state, next_state, action, reply, urgent, reference_id, redacted, created_at
		 FROM interaction_journal WHERE session_id=$1 ORDER BY turn_seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var items []Entry
	for rows.Next() {
		var e Entry
		var refID *string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.CustomerID, &e.TurnSeq, &e.Utterance,
			&e.Intent, &e.Confidence, &e.State, &e.NextState, &e.Action, &e.Reply,
			&e.Urgent, &refID, &e.Redacted, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		if refID != nil {
			e.ReferenceID = *refID
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// NewStore creates a postgres-backed journal when configured, otherwise
// in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
