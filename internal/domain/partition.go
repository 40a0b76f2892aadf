package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PartitionKind - вид партиции (представления) над коллекцией товаров.
type PartitionKind string

const (
	KindCategory     PartitionKind = "category"      // активные товары категории
	KindOwner        PartitionKind = "owner"         // активные товары владельца
	KindOwnerOffline PartitionKind = "owner-offline" // снятые с продажи товары владельца
	KindAllActive    PartitionKind = "all-active"    // общая лента активных товаров
	KindUserFavorite PartitionKind = "user-favorite" // избранное пользователя
	KindUserRegistry PartitionKind = "user-registry" // список пользователей
)

// Partition - ключ партиции (kind, scope-id). Для all-active и user-registry ScopeID = 0.
type Partition struct {
	Kind    PartitionKind `json:"kind"`
	ScopeID int64         `json:"scope_id,omitempty"`
}

func CategoryPartition(categoryID int64) Partition {
	return Partition{Kind: KindCategory, ScopeID: categoryID}
}

func OwnerPartition(ownerID int64) Partition {
	return Partition{Kind: KindOwner, ScopeID: ownerID}
}

func OwnerOfflinePartition(ownerID int64) Partition {
	return Partition{Kind: KindOwnerOffline, ScopeID: ownerID}
}

func AllActivePartition() Partition { return Partition{Kind: KindAllActive} }

func UserFavoritePartition(userID int64) Partition {
	return Partition{Kind: KindUserFavorite, ScopeID: userID}
}

func UserRegistryPartition() Partition { return Partition{Kind: KindUserRegistry} }

// Scoped - требует ли вид партиции scope-id.
func (k PartitionKind) Scoped() bool {
	switch k {
	case KindAllActive, KindUserRegistry:
		return false
	default:
		return true
	}
}

// Validate - проверяет, что вид известен и scope-id задан там, где он нужен.
func (p Partition) Validate() error {
	switch p.Kind {
	case KindCategory, KindOwner, KindOwnerOffline, KindUserFavorite:
		if p.ScopeID <= 0 {
			return fmt.Errorf("%w: %s requires positive scope id, got %d", ErrInvalidPartition, p.Kind, p.ScopeID)
		}
	case KindAllActive, KindUserRegistry:
		if p.ScopeID != 0 {
			return fmt.Errorf("%w: %s takes no scope id", ErrInvalidPartition, p.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidPartition, p.Kind)
	}
	return nil
}

func (p Partition) String() string {
	if !p.Kind.Scoped() {
		return string(p.Kind)
	}
	return string(p.Kind) + ":" + strconv.FormatInt(p.ScopeID, 10)
}

// ParsePartition - разбирает строку вида "category:5" или "all-active".
func ParsePartition(s string) (Partition, error) {
	kind, scope, hasScope := strings.Cut(strings.TrimSpace(s), ":")
	p := Partition{Kind: PartitionKind(kind)}
	if hasScope {
		id, err := strconv.ParseInt(scope, 10, 64)
		if err != nil {
			return Partition{}, fmt.Errorf("%w: bad scope id %q", ErrInvalidPartition, scope)
		}
		p.ScopeID = id
	}
	if err := p.Validate(); err != nil {
		return Partition{}, err
	}
	return p, nil
}
