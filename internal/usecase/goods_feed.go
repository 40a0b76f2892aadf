package usecase

import (
	"context"
	"fmt"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
)

// Проверка, что GoodsFeed удовлетворяет интерфейсу транспортного слоя.
var _ ports.FeedService = (*GoodsFeed)(nil)

// GoodsFeed - точка входа прикладного слоя: чтение лент, хуки мутаций,
// счётчик избранного и его согласование.
type GoodsFeed struct {
	goods      *PartitionedCursorCache[domain.GoodsCard]
	users      *PartitionedCursorCache[domain.UserCard]
	store      ports.GoodsStore
	counters   *CounterService
	reconciler *Reconciler
	log        ports.Logger
}

// NewGoodsFeed - DI-конструктор.
func NewGoodsFeed(
	goods *PartitionedCursorCache[domain.GoodsCard],
	users *PartitionedCursorCache[domain.UserCard],
	store ports.GoodsStore,
	counters *CounterService,
	reconciler *Reconciler,
	log ports.Logger,
) *GoodsFeed {
	return &GoodsFeed{goods: goods, users: users, store: store, counters: counters, reconciler: reconciler, log: log}
}

// GoodsPage - страница товарной партиции.
func (f *GoodsFeed) GoodsPage(ctx context.Context, p domain.Partition, cursor int64, size int) (domain.Page[domain.GoodsCard], error) {
	if p.Kind == domain.KindUserRegistry {
		return domain.Page[domain.GoodsCard]{}, fmt.Errorf("%w: %s is not a goods partition", domain.ErrInvalidPartition, p)
	}
	return f.goods.GetPage(ctx, p, cursor, size)
}

// UsersPage - страница списка пользователей (новые первыми).
func (f *GoodsFeed) UsersPage(ctx context.Context, cursor int64, size int) (domain.Page[domain.UserCard], error) {
	return f.users.GetPage(ctx, domain.UserRegistryPartition(), cursor, size)
}

// RebuildPartition - принудительное перестроение индекса.
func (f *GoodsFeed) RebuildPartition(ctx context.Context, p domain.Partition) error {
	if p.Kind == domain.KindUserRegistry {
		return f.users.Rebuild(ctx, p)
	}
	return f.goods.Rebuild(ctx, p)
}

// CollectCount - текущее значение счётчика избранного.
func (f *GoodsFeed) CollectCount(ctx context.Context, goodsID int64) (int64, error) {
	v, err := f.counters.Get(ctx, goodsID)
	if err != nil {
		return 0, err
	}
	return max(v, 0), nil
}

// IncrementCounter - изменить счётчик избранного на delta.
func (f *GoodsFeed) IncrementCounter(ctx context.Context, goodsID, delta int64) (int64, error) {
	return f.counters.Increment(ctx, goodsID, delta)
}

// ForceSyncCounter - немедленно записать счётчик в хранилище.
func (f *GoodsFeed) ForceSyncCounter(ctx context.Context, goodsID int64) (domain.SyncOutcome, error) {
	return f.reconciler.ForceSync(ctx, goodsID)
}

// TriggerScheduledReconciliation - запустить проход согласования вне расписания.
func (f *GoodsFeed) TriggerScheduledReconciliation(ctx context.Context) (domain.PassReport, error) {
	return f.reconciler.RunScheduledPass(ctx)
}

// Wait - дождаться фоновых перестроений индексов (перед закрытием хранилища).
func (f *GoodsFeed) Wait() {
	f.goods.Wait()
	f.users.Wait()
}

// ------ хуки мутаций ------

// OnItemCreated - товар записан в хранилище впервые.
func (f *GoodsFeed) OnItemCreated(ctx context.Context, item domain.GoodsState) error {
	return f.goods.OnItemCreated(ctx, item.ID, item.UpdatedAt, item.Memberships())
}

// OnItemMutated - товар изменён (статус, категория, поля карточки).
// previous == nil: прежнее состояние неизвестно, товар убирается из всех
// партиций, где мог состоять и где его теперь нет.
func (f *GoodsFeed) OnItemMutated(ctx context.Context, previous *domain.GoodsState, item domain.GoodsState) error {
	current := item.Memberships()

	var stale []domain.Partition
	if previous != nil {
		stale = domain.StalePartitions(previous.Memberships(), current)
	} else {
		stale = domain.StalePartitions(item.PossibleMemberships(), current)
	}

	if err := f.goods.OnItemMutated(ctx, item.ID, item.UpdatedAt, stale, current); err != nil {
		return err
	}

	wasActive := previous != nil && previous.Status == domain.StatusOnSale
	isActive := item.Status == domain.StatusOnSale
	if previous == nil || wasActive != isActive {
		return f.syncFavorites(ctx, item.ID, isActive)
	}
	return nil
}

// OnItemRemoved - товар удалён или заблокирован.
func (f *GoodsFeed) OnItemRemoved(ctx context.Context, item domain.GoodsState) error {
	if err := f.goods.OnItemRemoved(ctx, item.ID, item.PossibleMemberships()); err != nil {
		return err
	}
	return f.syncFavorites(ctx, item.ID, false)
}

// OnFavoriteAdded - пользователь добавил товар в избранное в момент at (мс).
// В индекс избранного попадают только товары на продаже, счётчик растёт всегда.
// Индекс обновляется раньше счётчика: при повторе события повторяется только
// идемпотентная часть, если упал инкремент.
func (f *GoodsFeed) OnFavoriteAdded(ctx context.Context, userID, goodsID, at int64) error {
	status, err := f.store.StatusOf(ctx, goodsID)
	if err != nil {
		return storeErr("status of goods", err)
	}
	if status == domain.StatusOnSale {
		if err := f.goods.Place(ctx, goodsID, at, domain.UserFavoritePartition(userID)); err != nil {
			return err
		}
	}
	_, err = f.counters.Increment(ctx, goodsID, 1)
	return err
}

// OnFavoriteRemoved - пользователь убрал товар из избранного.
func (f *GoodsFeed) OnFavoriteRemoved(ctx context.Context, userID, goodsID int64) error {
	if err := f.goods.Displace(ctx, goodsID, domain.UserFavoritePartition(userID)); err != nil {
		return err
	}
	_, err := f.counters.Increment(ctx, goodsID, -1)
	return err
}

// OnUserRegistered - новый пользователь в списке пользователей.
func (f *GoodsFeed) OnUserRegistered(ctx context.Context, userID, registeredAt int64) error {
	return f.users.OnItemCreated(ctx, userID, registeredAt, []domain.Partition{domain.UserRegistryPartition()})
}

// OnUserUpdated - профиль изменён: сбросить карточку (в т.ч. в карточках товаров владельца
// имя и аватар обновятся по истечении их TTL).
func (f *GoodsFeed) OnUserUpdated(ctx context.Context, userID, registeredAt int64) error {
	registry := []domain.Partition{domain.UserRegistryPartition()}
	return f.users.OnItemMutated(ctx, userID, registeredAt, nil, registry)
}

// Apply - применить событие к кэшам.
func (f *GoodsFeed) Apply(ctx context.Context, ev domain.Event) error {
	switch ev.Type {
	case domain.EventGoodsCreated:
		return f.OnItemCreated(ctx, *ev.Goods)
	case domain.EventGoodsMutated:
		return f.OnItemMutated(ctx, ev.Previous, *ev.Goods)
	case domain.EventGoodsRemoved:
		return f.OnItemRemoved(ctx, *ev.Goods)
	case domain.EventFavoriteAdded:
		return f.OnFavoriteAdded(ctx, ev.UserID, ev.GoodsID, ev.At)
	case domain.EventFavoriteRemoved:
		return f.OnFavoriteRemoved(ctx, ev.UserID, ev.GoodsID)
	case domain.EventUserRegistered:
		return f.OnUserRegistered(ctx, ev.UserID, ev.At)
	case domain.EventUserUpdated:
		return f.OnUserUpdated(ctx, ev.UserID, ev.At)
	default:
		return fmt.Errorf("unsupported event type %q", ev.Type)
	}
}

// syncFavorites - товар стал (не)активным: добавить его в индексы избранного
// всех, кто его добавил, или убрать оттуда.
func (f *GoodsFeed) syncFavorites(ctx context.Context, goodsID int64, active bool) error {
	favs, err := f.store.FavoritesOf(ctx, goodsID)
	if err != nil {
		return storeErr("favorites of goods", err)
	}
	var errs []error
	for _, fav := range favs {
		p := domain.UserFavoritePartition(fav.ID)
		if active {
			err = f.goods.Place(ctx, goodsID, fav.Score, p)
		} else {
			err = f.goods.Displace(ctx, goodsID, p)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}
