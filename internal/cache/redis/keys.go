package redis

import (
	"strconv"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
)

// Раскладка ключей.
const (
	keyAllActive    = "goods:all:ids"
	keyUserRegistry = "user:list:ids"

	prefixGoodsCard = "goods:card:"
	prefixUserCard  = "user:card:"
	prefixCounter   = "goods:collect:"

	// KeyPending - множество id с ещё не записанными в хранилище дельтами счётчика.
	KeyPending = "goods:collect:sync:pending"
	// KeyReconcileLock - замок прохода согласования.
	KeyReconcileLock = "goods:collect:sync:lock"

	builtSuffix = ":built"
)

// IndexKey - ключ ZSET партиции.
func IndexKey(p domain.Partition) string {
	id := strconv.FormatInt(p.ScopeID, 10)
	switch p.Kind {
	case domain.KindCategory:
		return "goods:cat:" + id + ":ids"
	case domain.KindOwner:
		return "goods:owner:" + id + ":ids"
	case domain.KindOwnerOffline:
		return "goods:offline:" + id + ":ids"
	case domain.KindUserFavorite:
		return "favorite:user:" + id + ":ids"
	case domain.KindAllActive:
		return keyAllActive
	case domain.KindUserRegistry:
		return keyUserRegistry
	default:
		return "unknown:" + string(p.Kind) + ":" + id + ":ids"
	}
}

// markerKey - отметка "индекс построен"; несёт TTL индекса.
func markerKey(p domain.Partition) string { return IndexKey(p) + builtSuffix }

func counterKey(id int64) string { return prefixCounter + strconv.FormatInt(id, 10) }

// GoodsCardPrefix, UserCardPrefix - префиксы ключей кэша карточек.
const (
	GoodsCardPrefix = prefixGoodsCard
	UserCardPrefix  = prefixUserCard
)
