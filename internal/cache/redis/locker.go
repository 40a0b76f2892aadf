package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Gunvolt24/goodsfeed/internal/ports"
)

// releaseScript - DEL, только если замок всё ещё наш.
var releaseScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker - замок SET NX PX с токеном владельца.
type Locker struct {
	rdb goredis.UniversalClient
}

var _ ports.Locker = (*Locker)(nil)

func NewLocker(rdb goredis.UniversalClient) *Locker { return &Locker{rdb: rdb} }

func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (ports.ReleaseFunc, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, name, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.rdb, []string{name}, token).Err(); err != nil {
			return fmt.Errorf("unlock %s: %w", name, err)
		}
		return nil
	}
	return release, true, nil
}
