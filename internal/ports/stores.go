package ports

import (
	"context"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
)

// PageSource - источник истины для одной коллекции проекций.
type PageSource[V domain.Projection] interface {
	// FetchPage - до limit элементов партиции со score < cursor, по убыванию score.
	FetchPage(ctx context.Context, p domain.Partition, cursor int64, limit int) ([]domain.Scored[V], error)

	// FetchAllWithScore - все (id, score) партиции, для перестроения индекса.
	FetchAllWithScore(ctx context.Context, p domain.Partition) ([]domain.IndexEntry, error)

	// FetchByIDs - карточки по id; отсутствующих в ответе нет.
	FetchByIDs(ctx context.Context, ids []int64) ([]V, error)
}

// GoodsStore - хранилище товаров.
type GoodsStore interface {
	PageSource[domain.GoodsCard]

	// FavoritesOf - кто добавил товар в избранное: ID = user id, Score = время добавления.
	FavoritesOf(ctx context.Context, goodsID int64) ([]domain.IndexEntry, error)

	// StatusOf - текущий статус товара; domain.ErrNotFound, если товара нет.
	StatusOf(ctx context.Context, goodsID int64) (domain.GoodsStatus, error)
}

// UserStore - хранилище пользователей.
type UserStore interface {
	PageSource[domain.UserCard]
}
