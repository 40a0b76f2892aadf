package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/pkg/jitter"
	"github.com/Gunvolt24/goodsfeed/pkg/metrics"
)

// incrementExistingScript - INCRBY только для существующего ключа, с продлением TTL.
// Отсутствующий ключ -> nil (redis.Nil на стороне клиента).
var incrementExistingScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return v
`)

// CounterCache - счётчики избранного под ключами goods:collect:{id}.
type CounterCache struct {
	rdb    goredis.UniversalClient
	jitter *jitter.Source
}

var _ ports.CounterCache = (*CounterCache)(nil)

func NewCounterCache(rdb goredis.UniversalClient, src *jitter.Source) *CounterCache {
	if src == nil {
		src = jitter.NewRandom()
	}
	return &CounterCache{rdb: rdb, jitter: src}
}

func (c *CounterCache) Get(ctx context.Context, id int64) (int64, bool, error) {
	v, err := c.rdb.Get(ctx, counterKey(id)).Int64()
	switch {
	case errors.Is(err, goredis.Nil):
		metrics.CacheOps.WithLabelValues("counters", "miss").Inc()
		return 0, false, nil
	case err != nil:
		metrics.CacheOps.WithLabelValues("counters", "error").Inc()
		return 0, false, fmt.Errorf("counter get id=%d: %w", id, err)
	}
	metrics.CacheOps.WithLabelValues("counters", "hit").Inc()
	return v, true, nil
}

func (c *CounterCache) BatchGet(ctx context.Context, ids []int64) (map[int64]int64, error) {
	if len(ids) == 0 {
		return map[int64]int64{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = counterKey(id)
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		metrics.CacheOps.WithLabelValues("counters", "error").Inc()
		return nil, fmt.Errorf("counter mget: %w", err)
	}

	out := make(map[int64]int64, len(ids))
	for i, raw := range vals {
		s, ok := raw.(string)
		if !ok {
			metrics.CacheOps.WithLabelValues("counters", "miss").Inc()
			continue
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			metrics.CacheOps.WithLabelValues("counters", "corrupt").Inc()
			continue
		}
		metrics.CacheOps.WithLabelValues("counters", "hit").Inc()
		out[ids[i]] = v
	}
	return out, nil
}

func (c *CounterCache) IncrementExisting(ctx context.Context, id, delta int64, ttl time.Duration) (int64, bool, error) {
	v, err := incrementExistingScript.Run(ctx, c.rdb, []string{counterKey(id)}, delta, ttl.Milliseconds()).Int64()
	switch {
	case errors.Is(err, goredis.Nil):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("counter increment id=%d: %w", id, err)
	}
	return v, true, nil
}

func (c *CounterCache) Seed(ctx context.Context, id, value int64, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, counterKey(id), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("counter seed id=%d: %w", id, err)
	}
	return ok, nil
}

func (c *CounterCache) BatchSeed(ctx context.Context, values map[int64]int64, baseTTL, spread time.Duration) error {
	if len(values) == 0 {
		return nil
	}
	_, err := c.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for id, v := range values {
			pipe.SetNX(ctx, counterKey(id), v, c.jitter.TTL(baseTTL, spread))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("counter batch seed: %w", err)
	}
	return nil
}

func (c *CounterCache) Delete(ctx context.Context, id int64) error {
	if err := c.rdb.Del(ctx, counterKey(id)).Err(); err != nil {
		return fmt.Errorf("counter delete id=%d: %w", id, err)
	}
	return nil
}
