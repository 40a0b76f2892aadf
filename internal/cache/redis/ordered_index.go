package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/pkg/metrics"
)

// contentSlack - содержимое ZSET живёт дольше отметки, чтобы присутствующий индекс
// никогда не оказался без содержимого.
const contentSlack = time.Minute

// upsertScript - ZADD; если ключ без TTL (индекс был пуст), TTL берётся у отметки.
var upsertScript = goredis.NewScript(`
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
if redis.call('PTTL', KEYS[1]) == -1 then
  local ttl = redis.call('PTTL', KEYS[2])
  if ttl < 0 then ttl = 0 end
  redis.call('PEXPIRE', KEYS[1], ttl + tonumber(ARGV[3]))
end
return 1
`)

// OrderedIndex - индекс партиции как ZSET (member = id, score = время в мс)
// плюс ключ-отметка "<key>:built".
type OrderedIndex struct {
	rdb goredis.UniversalClient
}

var _ ports.OrderedIndex = (*OrderedIndex)(nil)

func NewOrderedIndex(rdb goredis.UniversalClient) *OrderedIndex {
	return &OrderedIndex{rdb: rdb}
}

func (x *OrderedIndex) Lookup(ctx context.Context, p domain.Partition, cursor int64, limit int) ([]domain.IndexEntry, bool, error) {
	var (
		exists *goredis.IntCmd
		rng    *goredis.ZSliceCmd
	)
	_, err := x.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		exists = pipe.Exists(ctx, markerKey(p))
		rng = pipe.ZRevRangeByScoreWithScores(ctx, IndexKey(p), &goredis.ZRangeBy{
			Max:   "(" + strconv.FormatInt(cursor, 10),
			Min:   "-inf",
			Count: int64(limit),
		})
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		metrics.CacheOps.WithLabelValues("index", "error").Inc()
		return nil, false, fmt.Errorf("index lookup %s: %w", p, err)
	}
	if exists.Val() == 0 {
		metrics.CacheOps.WithLabelValues("index", "miss").Inc()
		return nil, false, nil
	}
	metrics.CacheOps.WithLabelValues("index", "hit").Inc()

	zs := rng.Val()
	out := make([]domain.IndexEntry, 0, len(zs))
	for _, z := range zs {
		id, err := memberID(z.Member)
		if err != nil {
			metrics.CacheOps.WithLabelValues("index", "corrupt").Inc()
			continue
		}
		out = append(out, domain.IndexEntry{ID: id, Score: int64(z.Score)})
	}
	return out, true, nil
}

func (x *OrderedIndex) Upsert(ctx context.Context, p domain.Partition, id, score int64) error {
	keys := []string{IndexKey(p), markerKey(p)}
	err := upsertScript.Run(ctx, x.rdb, keys, id, score, contentSlack.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("index upsert %s id=%d: %w", p, id, err)
	}
	return nil
}

func (x *OrderedIndex) Remove(ctx context.Context, p domain.Partition, id int64) error {
	if err := x.rdb.ZRem(ctx, IndexKey(p), strconv.FormatInt(id, 10)).Err(); err != nil {
		return fmt.Errorf("index remove %s id=%d: %w", p, id, err)
	}
	return nil
}

// Rebuild - DEL + ZADD + отметка в одной транзакции MULTI/EXEC:
// читатели видят либо старый индекс, либо новый целиком.
func (x *OrderedIndex) Rebuild(ctx context.Context, p domain.Partition, entries []domain.IndexEntry, ttl time.Duration) error {
	key := IndexKey(p)
	members := make([]goredis.Z, 0, len(entries))
	for _, e := range entries {
		members = append(members, goredis.Z{Score: float64(e.Score), Member: e.ID})
	}

	_, err := x.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.ZAdd(ctx, key, members...)
			pipe.PExpire(ctx, key, ttl+contentSlack)
		}
		pipe.Set(ctx, markerKey(p), "1", ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("index rebuild %s: %w", p, err)
	}
	return nil
}

func (x *OrderedIndex) Exists(ctx context.Context, p domain.Partition) (bool, error) {
	n, err := x.rdb.Exists(ctx, markerKey(p)).Result()
	if err != nil {
		return false, fmt.Errorf("index exists %s: %w", p, err)
	}
	return n == 1, nil
}

func (x *OrderedIndex) Drop(ctx context.Context, p domain.Partition) error {
	if err := x.rdb.Del(ctx, markerKey(p), IndexKey(p)).Err(); err != nil {
		return fmt.Errorf("index drop %s: %w", p, err)
	}
	return nil
}

func memberID(member any) (int64, error) {
	switch m := member.(type) {
	case string:
		return strconv.ParseInt(m, 10, 64)
	case int64:
		return m, nil
	default:
		return 0, fmt.Errorf("unexpected member type %T", member)
	}
}
