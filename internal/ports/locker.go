package ports

import (
	"context"
	"time"
)

// ReleaseFunc - снять замок. Снимает только свой замок (по токену владельца).
type ReleaseFunc func(ctx context.Context) error

// Locker - распределённый замок с арендой.
type Locker interface {
	// TryLock - не блокирует: acquired=false, если замок занят.
	TryLock(ctx context.Context, name string, ttl time.Duration) (release ReleaseFunc, acquired bool, err error)
}
