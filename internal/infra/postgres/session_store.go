package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"medy-coop-service/internal/app"
	"medy-coop-service/internal/domain"
)

// SessionStore persists coop sessions as JSONB with indexed status and participants.
// Update holds a row lock (SELECT ... FOR UPDATE) for the whole read-modify-write.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.CoopSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO coop_sessions (id, participants, status, data, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5, $6)`,
		session.ID, session.Participants[:], string(session.Status), string(raw), session.ExpiresAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.CoopSession, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM coop_sessions WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return decodeSession(raw)
}

func (s *SessionStore) Update(ctx context.Context, id string, mutate app.MutateFunc) (*domain.CoopSession, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT data FROM coop_sessions WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	session, err := decodeSession(raw)
	if err != nil {
		return nil, err
	}
	if err := mutate(session); err != nil {
		return nil, err
	}
	next, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE coop_sessions SET status = $2, data = $3::jsonb, expires_at = $4, updated_at = $5 WHERE id = $1`,
		id, string(session.Status), string(next), session.ExpiresAt, session.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return session, nil
}

func (s *SessionStore) ListByParticipant(ctx context.Context, userID string) ([]*domain.CoopSession, error) {
	return s.list(ctx,
		`SELECT data FROM coop_sessions WHERE $1 = ANY(participants) AND status NOT IN ('cancelled', 'expired')`,
		userID,
	)
}

func (s *SessionStore) ListByStatus(ctx context.Context, statuses ...domain.Status) ([]*domain.CoopSession, error) {
	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}
	return s.list(ctx, `SELECT data FROM coop_sessions WHERE status = ANY($1) ORDER BY updated_at`, values)
}

func (s *SessionStore) list(ctx context.Context, query string, args ...interface{}) ([]*domain.CoopSession, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.CoopSession
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		session, err := decodeSession(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func decodeSession(raw []byte) (*domain.CoopSession, error) {
	var session domain.CoopSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if session.Readiness == nil {
		session.Readiness = map[string]bool{}
	}
	if session.Results == nil {
		session.Results = map[string]domain.Result{}
	}
	return &session, nil
}
