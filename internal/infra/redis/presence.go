package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPresenceTTL bounds how long a connection counts as live without a refresh.
const DefaultPresenceTTL = 90 * time.Second

// Presence implements realtime.Presence with one sorted set per user.
// Keys:
//
//	coop:presence:{userID}  ZSET connID -> lease deadline (unix ms)
//
// Leases of a crashed instance lapse after ttl, so stale members never keep a user online.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &Presence{client: client, ttl: ttl, now: time.Now}
}

// TTL is the lease length; callers refresh well within it.
func (p *Presence) TTL() time.Duration {
	return p.ttl
}

func (p *Presence) Add(ctx context.Context, userID, connID string) error {
	return p.Refresh(ctx, map[string][]string{userID: {connID}})
}

func (p *Presence) Remove(ctx context.Context, userID, connID string) error {
	if err := p.client.ZRem(ctx, presenceKey(userID), connID).Err(); err != nil {
		return fmt.Errorf("presence remove: %w", err)
	}
	return nil
}

func (p *Presence) Refresh(ctx context.Context, conns map[string][]string) error {
	deadline := float64(p.now().Add(p.ttl).UnixMilli())
	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for userID, ids := range conns {
			if len(ids) == 0 {
				continue
			}
			key := presenceKey(userID)
			members := make([]redis.Z, len(ids))
			for i, id := range ids {
				members[i] = redis.Z{Score: deadline, Member: id}
			}
			pipe.ZAdd(ctx, key, members...)
			pipe.PExpire(ctx, key, p.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence refresh: %w", err)
	}
	return nil
}

func (p *Presence) Online(ctx context.Context, userID string) (bool, error) {
	now := strconv.FormatInt(p.now().UnixMilli(), 10)
	n, err := p.client.ZCount(ctx, presenceKey(userID), "("+now, "+inf").Result()
	if err != nil {
		return false, fmt.Errorf("presence lookup: %w", err)
	}
	return n > 0, nil
}

func presenceKey(userID string) string {
	return "coop:presence:" + userID
}
