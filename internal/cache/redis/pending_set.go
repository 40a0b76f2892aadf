package redis

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Gunvolt24/goodsfeed/internal/ports"
)

// settleScript - SREM, только если счётчик не изменился с момента чтения (или его нет).
// KEYS[1] - множество, KEYS[2] - счётчик; ARGV[1] - id, ARGV[2] - observed.
var settleScript = goredis.NewScript(`
local v = redis.call('GET', KEYS[2])
if v == false or v == ARGV[2] then
  redis.call('SREM', KEYS[1], ARGV[1])
  return 1
end
return 0
`)

// PendingSet - множество "грязных" id (goods:collect:sync:pending).
type PendingSet struct {
	rdb goredis.UniversalClient
	key string
	ttl time.Duration
}

var _ ports.PendingSet = (*PendingSet)(nil)

func NewPendingSet(rdb goredis.UniversalClient, ttl time.Duration) *PendingSet {
	return &PendingSet{rdb: rdb, key: KeyPending, ttl: ttl}
}

func (s *PendingSet) Add(ctx context.Context, id int64) error {
	_, err := s.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.SAdd(ctx, s.key, id)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pending add id=%d: %w", id, err)
	}
	return nil
}

func (s *PendingSet) Members(ctx context.Context) ([]int64, error) {
	raw, err := s.rdb.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("pending members: %w", err)
	}
	out := make([]int64, 0, len(raw))
	for _, m := range raw {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func (s *PendingSet) Settle(ctx context.Context, id, observed int64) (bool, error) {
	n, err := settleScript.Run(ctx, s.rdb, []string{s.key, counterKey(id)},
		strconv.FormatInt(id, 10), strconv.FormatInt(observed, 10)).Int64()
	if err != nil {
		return false, fmt.Errorf("pending settle id=%d: %w", id, err)
	}
	return n == 1, nil
}

func (s *PendingSet) Remove(ctx context.Context, id int64) error {
	if err := s.rdb.SRem(ctx, s.key, id).Err(); err != nil {
		return fmt.Errorf("pending remove id=%d: %w", id, err)
	}
	return nil
}
