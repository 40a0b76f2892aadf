package ports

import (
	"context"
	"time"
)

// CounterCache - кэш счётчиков избранного (значение = хранилище + ещё не записанные дельты).
type CounterCache interface {
	Get(ctx context.Context, id int64) (value int64, ok bool, err error)
	BatchGet(ctx context.Context, ids []int64) (map[int64]int64, error)

	// IncrementExisting - атомарно прибавить delta, только если значение уже есть в кэше;
	// при успехе продлевает TTL. ok=false - значения нет, ничего не изменено.
	IncrementExisting(ctx context.Context, id, delta int64, ttl time.Duration) (value int64, ok bool, err error)

	// Seed - записать значение, только если его нет (set-if-absent).
	Seed(ctx context.Context, id, value int64, ttl time.Duration) (bool, error)

	// BatchSeed - Seed для нескольких id с TTL из [baseTTL, baseTTL+jitter).
	BatchSeed(ctx context.Context, values map[int64]int64, baseTTL, jitter time.Duration) error

	Delete(ctx context.Context, id int64) error
}

// PendingSet - множество id, чьи счётчики в кэше расходятся с хранилищем.
type PendingSet interface {
	Add(ctx context.Context, id int64) error
	Members(ctx context.Context) ([]int64, error)

	// Settle - убрать id, только если счётчик в кэше всё ещё равен observed
	// (или его нет). Иначе с момента чтения пришли новые дельты, и id остаётся.
	Settle(ctx context.Context, id, observed int64) (bool, error)

	Remove(ctx context.Context, id int64) error
}
