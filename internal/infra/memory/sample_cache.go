package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"medy-coop-service/internal/app"
	"medy-coop-service/internal/domain"
)

// SampleCache keeps recent samples keyed by (filter, count) so retried launches reuse them.
// Question loads pass straight through.
type SampleCache struct {
	next  app.QuestionRepository
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedSample
}

type cachedSample struct {
	ids       []string
	expiresAt time.Time
}

func NewSampleCache(next app.QuestionRepository, ttl time.Duration) *SampleCache {
	return &SampleCache{
		next:  next,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedSample),
	}
}

func (c *SampleCache) SampleIDs(ctx context.Context, filter domain.Filters, count int) ([]string, error) {
	key := filter.CacheKey(count)
	if ids, ok := c.lookup(key, count); ok {
		return ids, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if ids, ok := c.lookup(key, count); ok {
			return ids, nil
		}
		ids, err := c.next.SampleIDs(ctx, filter, count)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 && c.ttl > 0 {
			c.mu.Lock()
			c.cache[key] = cachedSample{
				ids:       append([]string(nil), ids...),
				expiresAt: c.clock().Add(c.ttlWithJitter()),
			}
			c.mu.Unlock()
		}
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

// lookup only serves entries that still hold at least count ids.
func (c *SampleCache) lookup(key string, count int) ([]string, bool) {
	now := c.clock()
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.After(now) {
		c.mu.Lock()
		if current, ok := c.cache[key]; ok && !current.expiresAt.After(now) {
			delete(c.cache, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	if len(entry.ids) < count {
		return nil, false
	}
	return append([]string(nil), entry.ids[:count]...), true
}

// ttlWithJitter adds up to 10% jitter to spread expirations. Caller holds c.mu.
func (c *SampleCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
