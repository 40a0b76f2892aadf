package ports

import (
	"context"
	"time"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
)

// OrderedIndex - упорядоченный по score индекс id для каждой партиции.
//
// Индекс партиции либо отсутствует (не построен или истёк), либо присутствует
// (в том числе пустым). Отсутствие и пустота различаются: пустой построенный
// индекс - это валидный ответ "в партиции ничего нет".
type OrderedIndex interface {
	// Lookup - до limit записей со score строго меньше cursor, по убыванию score.
	// present=false, если индекс партиции не построен.
	Lookup(ctx context.Context, p domain.Partition, cursor int64, limit int) (entries []domain.IndexEntry, present bool, err error)

	// Upsert - вставить или обновить score id.
	Upsert(ctx context.Context, p domain.Partition, id, score int64) error

	// Remove - удалить id из индекса партиции.
	Remove(ctx context.Context, p domain.Partition, id int64) error

	// Rebuild - атомарно заменить содержимое индекса и отметить его построенным на ttl.
	Rebuild(ctx context.Context, p domain.Partition, entries []domain.IndexEntry, ttl time.Duration) error

	// Exists - построен ли индекс партиции.
	Exists(ctx context.Context, p domain.Partition) (bool, error)

	// Drop - удалить индекс партиции вместе с отметкой.
	Drop(ctx context.Context, p domain.Partition) error
}
