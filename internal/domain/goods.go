package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

// GoodsStatus - статус товара.
type GoodsStatus int

const (
	StatusOnSale        GoodsStatus = 1 // на продаже / доступен для аренды
	StatusSold          GoodsStatus = 2
	StatusRenting       GoodsStatus = 3
	StatusOffShelf      GoodsStatus = 4 // снят владельцем
	StatusUserDeleted   GoodsStatus = 5
	StatusSystemBlocked GoodsStatus = 6 // заблокирован модерацией
)

// Projection - то, что можно положить в кэш проекций: нужен стабильный id.
type Projection interface {
	ProjectionID() int64
}

// GoodsState - поля товара, от которых зависит членство в партициях.
type GoodsState struct {
	ID         int64       `json:"id"`
	OwnerID    int64       `json:"owner_id"`
	CategoryID *int64      `json:"category_id,omitempty"`
	Status     GoodsStatus `json:"status"`
	UpdatedAt  int64       `json:"updated_at"` // epoch ms
}

// Memberships - партиции, предикат которых выполняется для товара.
// Избранное сюда не входит: оно зависит от пользователя, а не от товара.
func (s GoodsState) Memberships() []Partition {
	switch s.Status {
	case StatusOnSale:
		out := []Partition{AllActivePartition(), OwnerPartition(s.OwnerID)}
		if s.CategoryID != nil {
			out = append(out, CategoryPartition(*s.CategoryID))
		}
		return out
	case StatusOffShelf:
		return []Partition{OwnerOfflinePartition(s.OwnerID)}
	default:
		return nil
	}
}

// StalePartitions - партиции из before, в которых товара больше нет.
func StalePartitions(before, after []Partition) []Partition {
	var stale []Partition
	for _, p := range before {
		if !slices.Contains(after, p) {
			stale = append(stale, p)
		}
	}
	return stale
}

// GoodsCard - карточка товара для лент.
// CollectNum в кэш не пишется: он накладывается при чтении из кэша счётчиков.
type GoodsCard struct {
	ID               int64           `json:"id"`
	OwnerID          int64           `json:"owner_id"`
	BriefDescription string          `json:"brief_description"`
	CoverURL         string          `json:"cover_url"`
	GoodsType        int             `json:"goods_type"`
	ConditionLevel   int             `json:"condition_level"`
	CategoryID       *int64          `json:"category_id,omitempty"`
	SellPrice        decimal.Decimal `json:"sell_price"`
	RentPrice        decimal.Decimal `json:"rent_price"`
	OwnerName        string          `json:"owner_name"`
	OwnerAvatar      string          `json:"owner_avatar"`
	UpdateTimestamp  int64           `json:"update_timestamp"`
	CollectNum       int64           `json:"collect_num"`
}

func (c GoodsCard) ProjectionID() int64 { return c.ID }

// WithoutCounter - копия карточки без счётчика (для записи в кэш).
func (c GoodsCard) WithoutCounter() GoodsCard {
	c.CollectNum = 0
	return c
}

// UserCard - карточка пользователя для списка пользователей.
type UserCard struct {
	ID           int64  `json:"id"`
	Nickname     string `json:"nickname"`
	Avatar       string `json:"avatar"`
	Status       int    `json:"status"`
	RegisteredAt int64  `json:"registered_at"` // epoch ms
}

func (u UserCard) ProjectionID() int64 { return u.ID }

// BriefLimit - длина краткого описания в карточке (в рунах).
const BriefLimit = 25

// Brief - обрезает описание до BriefLimit рун с многоточием.
func Brief(description string) string {
	r := []rune(description)
	if len(r) <= BriefLimit {
		return description
	}
	return string(r[:BriefLimit]) + "..."
}

// Clone - копия карточки, не разделяющая указатели с оригиналом.
func (c GoodsCard) Clone() GoodsCard {
	if c.CategoryID != nil {
		id := *c.CategoryID
		c.CategoryID = &id
	}
	return c
}

// PossibleMemberships - все партиции, в которых товар мог бы состоять при своих
// владельце и категории. Нужны, когда прежнее состояние неизвестно.
func (s GoodsState) PossibleMemberships() []Partition {
	active, offline := s, s
	active.Status, offline.Status = StatusOnSale, StatusOffShelf
	return append(active.Memberships(), offline.Memberships()...)
}
