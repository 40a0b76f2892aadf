package domain

import "strconv"

// EventType - тип события об изменении данных, влияющих на ленты.
type EventType string

const (
	EventGoodsCreated    EventType = "goods.created"
	EventGoodsMutated    EventType = "goods.mutated"
	EventGoodsRemoved    EventType = "goods.removed"
	EventFavoriteAdded   EventType = "favorite.added"
	EventFavoriteRemoved EventType = "favorite.removed"
	EventUserRegistered  EventType = "user.registered"
	EventUserUpdated     EventType = "user.updated"
)

// Event - событие, публикуемое после успешной записи в хранилище.
//
//	goods.*      - Goods обязателен; для goods.mutated Previous описывает состояние до записи.
//	favorite.*   - UserID, GoodsID, At (время добавления в избранное, мс).
//	user.*       - UserID, At (время регистрации, мс).
type Event struct {
	Type     EventType   `json:"type"`
	Goods    *GoodsState `json:"goods,omitempty"`
	Previous *GoodsState `json:"previous,omitempty"`
	UserID   int64       `json:"user_id,omitempty"`
	GoodsID  int64       `json:"goods_id,omitempty"`
	At       int64       `json:"at,omitempty"`
}

// Key - ключ сообщения в брокере: события одного товара (включая избранное)
// попадают в одну партицию и применяются по порядку. Пусто для неполного события.
func (e Event) Key() string {
	switch {
	case e.Goods != nil:
		return "goods:" + strconv.FormatInt(e.Goods.ID, 10)
	case e.GoodsID > 0:
		return "goods:" + strconv.FormatInt(e.GoodsID, 10)
	case e.UserID > 0:
		return "user:" + strconv.FormatInt(e.UserID, 10)
	default:
		return ""
	}
}
