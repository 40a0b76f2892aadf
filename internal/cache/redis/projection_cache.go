package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/pkg/jitter"
	"github.com/Gunvolt24/goodsfeed/pkg/metrics"
)

// ProjectionCache - карточки как JSON-строки под ключами "<prefix><id>".
type ProjectionCache[V domain.Projection] struct {
	rdb    goredis.UniversalClient
	name   string
	prefix string
	jitter *jitter.Source
}

var (
	_ ports.ProjectionCache[domain.GoodsCard] = (*ProjectionCache[domain.GoodsCard])(nil)
	_ ports.ProjectionCache[domain.UserCard]  = (*ProjectionCache[domain.UserCard])(nil)
)

// NewGoodsCardCache - кэш карточек товаров (goods:card:{id}).
func NewGoodsCardCache(rdb goredis.UniversalClient, src *jitter.Source) *ProjectionCache[domain.GoodsCard] {
	return NewProjectionCache[domain.GoodsCard](rdb, "cards", GoodsCardPrefix, src)
}

// NewUserCardCache - кэш карточек пользователей (user:card:{id}).
func NewUserCardCache(rdb goredis.UniversalClient, src *jitter.Source) *ProjectionCache[domain.UserCard] {
	return NewProjectionCache[domain.UserCard](rdb, "users", UserCardPrefix, src)
}

func NewProjectionCache[V domain.Projection](rdb goredis.UniversalClient, name, prefix string, src *jitter.Source) *ProjectionCache[V] {
	if src == nil {
		src = jitter.NewRandom()
	}
	return &ProjectionCache[V]{rdb: rdb, name: name, prefix: prefix, jitter: src}
}

func (c *ProjectionCache[V]) BatchGet(ctx context.Context, ids []int64) (map[int64]V, error) {
	if len(ids) == 0 {
		return map[int64]V{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		metrics.CacheOps.WithLabelValues(c.name, "error").Inc()
		return nil, fmt.Errorf("%s mget: %w", c.name, err)
	}

	out := make(map[int64]V, len(ids))
	for i, raw := range vals {
		s, ok := raw.(string)
		if !ok {
			metrics.CacheOps.WithLabelValues(c.name, "miss").Inc()
			continue
		}
		var v V
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			// битая запись - промах; перезапишется при дочитывании из хранилища
			metrics.CacheOps.WithLabelValues(c.name, "corrupt").Inc()
			continue
		}
		metrics.CacheOps.WithLabelValues(c.name, "hit").Inc()
		out[ids[i]] = v
	}
	return out, nil
}

func (c *ProjectionCache[V]) BatchPut(ctx context.Context, items []V, baseTTL, spread time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	_, err := c.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, item := range items {
			payload, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("marshal %s id=%d: %w", c.name, item.ProjectionID(), err)
			}
			pipe.Set(ctx, c.key(item.ProjectionID()), payload, c.jitter.TTL(baseTTL, spread))
		}
		return nil
	})
	if err != nil {
		metrics.CacheOps.WithLabelValues(c.name, "error").Inc()
		return fmt.Errorf("%s put: %w", c.name, err)
	}
	return nil
}

func (c *ProjectionCache[V]) Invalidate(ctx context.Context, id int64) error {
	if err := c.rdb.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("%s invalidate id=%d: %w", c.name, id, err)
	}
	return nil
}

func (c *ProjectionCache[V]) key(id int64) string {
	return c.prefix + strconv.FormatInt(id, 10)
}
