package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"medy-coop-service/internal/app"
	"medy-coop-service/internal/domain"
)

const maxTxRetries = 16

// SessionStore keeps coop sessions in Redis as JSON documents.
// Keys:
//
//	coop:session:{id}           session JSON, expiring retention after ExpiresAt
//	coop:user:{userID}:sessions ids of the user's live sessions
//	coop:status:{status}        ids per status, used by the sweeper
//
// Update runs under WATCH/MULTI so concurrent writers of one session never interleave.
type SessionStore struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

func NewSessionStore(client *redis.Client, retention time.Duration) *SessionStore {
	return &SessionStore{client: client, retention: retention, now: time.Now}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.CoopSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), payload, s.keyTTL(session))
		pipe.SAdd(ctx, statusKey(session.Status), session.ID)
		for _, p := range session.Participants {
			pipe.SAdd(ctx, userKey(p), session.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.CoopSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(raw)
}

func (s *SessionStore) Update(ctx context.Context, id string, mutate app.MutateFunc) (*domain.CoopSession, error) {
	key := sessionKey(id)
	var result *domain.CoopSession

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		current, err := decodeSession(raw)
		if err != nil {
			return err
		}
		next := current.Clone()
		if err := mutate(next); err != nil {
			return err
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.keyTTL(next))
			if current.Status != next.Status {
				pipe.SRem(ctx, statusKey(current.Status), id)
				pipe.SAdd(ctx, statusKey(next.Status), id)
			}
			if next.Status.Terminal() {
				for _, p := range next.Participants {
					pipe.SRem(ctx, userKey(p), id)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result.Clone(), nil
	}
	return nil, fmt.Errorf("update session %s: %w", id, redis.TxFailedErr)
}

func (s *SessionStore) ListByParticipant(ctx context.Context, userID string) ([]*domain.CoopSession, error) {
	sessions, err := s.loadSet(ctx, userKey(userID))
	if err != nil {
		return nil, err
	}
	out := sessions[:0]
	for _, session := range sessions {
		if !session.Status.Terminal() {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *SessionStore) ListByStatus(ctx context.Context, statuses ...domain.Status) ([]*domain.CoopSession, error) {
	var out []*domain.CoopSession
	for _, status := range statuses {
		sessions, err := s.loadSet(ctx, statusKey(status))
		if err != nil {
			return nil, err
		}
		for _, session := range sessions {
			if session.Status == status {
				out = append(out, session)
			}
		}
	}
	return out, nil
}

// loadSet resolves an index set and prunes ids whose document already expired.
func (s *SessionStore) loadSet(ctx context.Context, setKey string) ([]*domain.CoopSession, error) {
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	out := make([]*domain.CoopSession, 0, len(values))
	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		session, err := decodeSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	if len(stale) > 0 {
		_ = s.client.SRem(ctx, setKey, stale...).Err()
	}
	return out, nil
}

// keyTTL keeps documents for retention past their own expiry so lazy checks can still observe them.
func (s *SessionStore) keyTTL(session *domain.CoopSession) time.Duration {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl < 0 {
		ttl = 0
	}
	return ttl + s.retention
}

func decodeSession(raw []byte) (*domain.CoopSession, error) {
	var session domain.CoopSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.Readiness == nil {
		session.Readiness = map[string]bool{}
	}
	if session.Results == nil {
		session.Results = map[string]domain.Result{}
	}
	return &session, nil
}

func sessionKey(id string) string {
	return "coop:session:" + id
}

func userKey(userID string) string {
	return "coop:user:" + userID + ":sessions"
}

func statusKey(status domain.Status) string {
	return "coop:status:" + string(status)
}
