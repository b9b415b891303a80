package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"medy-coop-service/internal/app"
	"medy-coop-service/internal/domain"
)

// SampleCache shares recent samples between instances.
// Samples are stored as: RPUSH coop:sample:{sha1(filter,count)} {questionID...}
type SampleCache struct {
	client *redis.Client
	next   app.QuestionRepository
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSampleCache(client *redis.Client, next app.QuestionRepository, ttl time.Duration) *SampleCache {
	return &SampleCache{
		client: client,
		next:   next,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *SampleCache) SampleIDs(ctx context.Context, filter domain.Filters, count int) ([]string, error) {
	key := c.sampleKey(filter, count)
	if ids, ok := c.lookup(ctx, key, count); ok {
		return ids, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if ids, ok := c.lookup(ctx, key, count); ok {
			return ids, nil
		}
		ids, err := c.next.SampleIDs(ctx, filter, count)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 || c.ttl <= 0 {
			return ids, nil
		}
		members := make([]interface{}, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		pipe := c.client.TxPipeline()
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, members...)
		pipe.PExpire(ctx, key, c.ttlWithJitter())
		_, _ = pipe.Exec(ctx)
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), result.([]string)...), nil
}

func (c *SampleCache) GetByIDs(ctx context.Context, ids []string) ([]domain.Question, error) {
	return c.next.GetByIDs(ctx, ids)
}

func (c *SampleCache) lookup(ctx context.Context, key string, count int) ([]string, bool) {
	ids, err := c.client.LRange(ctx, key, 0, -1).Result()
	if err != nil || len(ids) < count {
		return nil, false
	}
	return ids[:count], true
}

func (c *SampleCache) sampleKey(filter domain.Filters, count int) string {
	sum := sha1.Sum([]byte(filter.CacheKey(count)))
	return "coop:sample:" + hex.EncodeToString(sum[:])
}

func (c *SampleCache) ttlWithJitter() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
