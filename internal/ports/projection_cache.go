package ports

import (
	"context"
	"time"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
)

// ProjectionCache - кэш карточек по id. Записи независимы от партиций.
// Реализация обязана возвращать копии и выставлять каждой записи TTL из [baseTTL, baseTTL+jitter).
type ProjectionCache[V domain.Projection] interface {
	// BatchGet - найденные карточки; отсутствующих id в ответе нет.
	BatchGet(ctx context.Context, ids []int64) (map[int64]V, error)

	BatchPut(ctx context.Context, items []V, baseTTL, jitter time.Duration) error

	Invalidate(ctx context.Context, id int64) error
}
