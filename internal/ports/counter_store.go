package ports

import "context"

// CounterStore - долговременные значения счётчиков избранного.
type CounterStore interface {
	// ReadCounters - значения по id; отсутствующих товаров в ответе нет.
	ReadCounters(ctx context.Context, ids []int64) (map[int64]int64, error)

	// AddCounter - безусловно прибавить delta; domain.ErrNotFound, если товара нет.
	AddCounter(ctx context.Context, id, delta int64) (int64, error)

	// CompareAndAddCounter - прибавить delta, только если текущее значение равно expected.
	CompareAndAddCounter(ctx context.Context, id, expected, delta int64) (applied bool, err error)
}
