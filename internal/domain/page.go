package domain

// IndexEntry - элемент упорядоченного индекса: id и score (время в мс).
type IndexEntry struct {
	ID    int64 `json:"id"`
	Score int64 `json:"score"`
}

// Scored - проекция вместе со score в конкретной партиции.
// Для избранного score - время добавления в избранное, а не время обновления товара.
type Scored[V any] struct {
	Item  V
	Score int64
}

// Page - страница курсорной пагинации.
type Page[V any] struct {
	Items      []V    `json:"list"`
	NextCursor *int64 `json:"next_cursor"`
	HasMore    bool   `json:"has_more"`
}

// EmptyPage - пустая страница (без курсора, без продолжения).
func EmptyPage[V any]() Page[V] {
	return Page[V]{Items: []V{}}
}
