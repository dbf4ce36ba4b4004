package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"facelens/internal/models"
)

var ErrUnknownSession = errors.New("journal: unknown session")

// Store records analysis sessions and their observations in PostgreSQL.
// A single connection is shared, guarded by mu.
type Store struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

// Summary aggregates one session.
type Summary struct {
	SessionID    uuid.UUID
	StartedAt    time.Time
	EndedAt      *time.Time
	Observations int
	Distinct     int
	LastEmotion  string
}

// New connects and creates the schema when missing.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("journal: connect: %w", err)
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			ended_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS observations (
			id BIGSERIAL PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			observed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			emotion TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			age INT NOT NULL,
			gender TEXT NOT NULL,
			novel BOOLEAN NOT NULL,
			distinct_count INT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS observations_session_id_idx ON observations (session_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

func (s *Store) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.Close(ctx)
}

// StartSession registers a session. Starting the same id twice is a no-op.
func (s *Store) StartSession(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(ctx, `
		INSERT INTO sessions (id, started_at)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, id, startedAt)
	if err != nil {
		return fmt.Errorf("journal: start session: %w", err)
	}
	return nil
}

func (s *Store) EndSession(ctx context.Context, id uuid.UUID, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag, err := s.conn.Exec(ctx, "UPDATE sessions SET ended_at = $2 WHERE id = $1", id, endedAt)
	if err != nil {
		return fmt.Errorf("journal: end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownSession
	}
	return nil
}

// Record appends one observation for sessionID.
func (s *Store) Record(ctx context.Context, sessionID uuid.UUID, a models.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(ctx, `
		INSERT INTO observations (session_id, observed_at, emotion, confidence, age, gender, novel, distinct_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sessionID, time.Now(), a.Emotion, a.Confidence, a.Age, a.Gender, a.Novel, a.Distinct)
	if err != nil {
		return fmt.Errorf("journal: record observation: %w", err)
	}
	return nil
}

func (s *Store) Summary(ctx context.Context, id uuid.UUID) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{SessionID: id}
	err := s.conn.QueryRow(ctx, `
		SELECT s.started_at, s.ended_at,
			COUNT(o.id),
			COALESCE(MAX(o.distinct_count), 0),
			COALESCE((SELECT emotion FROM observations WHERE session_id = s.id ORDER BY id DESC LIMIT 1), '')
		FROM sessions s
		LEFT JOIN observations o ON o.session_id = s.id
		WHERE s.id = $1
		GROUP BY s.id, s.started_at, s.ended_at
	`, id).Scan(&sum.StartedAt, &sum.EndedAt, &sum.Observations, &sum.Distinct, &sum.LastEmotion)
	if errors.Is(err, pgx.ErrNoRows) {
		return Summary{}, ErrUnknownSession
	}
	if err != nil {
		return Summary{}, fmt.Errorf("journal: summary: %w", err)
	}
	return sum, nil
}

// Sessions lists the most recent sessions, newest first.
func (s *Store) Sessions(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(ctx, `
		SELECT s.id::text, s.started_at, s.ended_at,
			COUNT(o.id),
			COALESCE(MAX(o.distinct_count), 0)
		FROM sessions s
		LEFT JOIN observations o ON o.session_id = s.id
		GROUP BY s.id, s.started_at, s.ended_at
		ORDER BY s.started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum Summary
			id  string
		)
		if err := rows.Scan(&id, &sum.StartedAt, &sum.EndedAt, &sum.Observations, &sum.Distinct); err != nil {
			return nil, err
		}
		if sum.SessionID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
