package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Gunvolt24/goodsfeed/internal/ports"
)

type lease struct {
	token     string
	expiresAt time.Time
}

// Locker - замок внутри одного процесса. Для нескольких экземпляров нужен redis.Locker.
type Locker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

var _ ports.Locker = (*Locker)(nil)

func NewLocker() *Locker {
	return &Locker{leases: make(map[string]lease), now: time.Now}
}

func (l *Locker) TryLock(_ context.Context, name string, ttl time.Duration) (ports.ReleaseFunc, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.leases[name]; ok && now.Before(cur.expiresAt) {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.leases[name] = lease{token: token, expiresAt: now.Add(ttl)}

	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.leases[name]; ok && cur.token == token {
			delete(l.leases, name)
		}
		return nil
	}
	return release, true, nil
}
