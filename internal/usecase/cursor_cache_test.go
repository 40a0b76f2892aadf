package usecase_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
)

const (
	itemA = 1
	itemB = 2
	itemC = 3
)

func seedCategory5(s *fakeStore) {
	cat := int64p(5)
	s.putGoods(domain.GoodsState{ID: itemA, OwnerID: 9, CategoryID: cat, Status: domain.StatusOnSale, UpdatedAt: 100}, 0)
	s.putGoods(domain.GoodsState{ID: itemB, OwnerID: 9, CategoryID: cat, Status: domain.StatusOnSale, UpdatedAt: 90}, 0)
	s.putGoods(domain.GoodsState{ID: itemC, OwnerID: 9, CategoryID: cat, Status: domain.StatusOnSale, UpdatedAt: 80}, 0)
}

func assertCategory5Pages(t *testing.T, e *env) {
	t.Helper()
	ctx := context.Background()
	p := domain.CategoryPartition(5)

	page, err := e.feed.GoodsPage(ctx, p, 0, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{itemA, itemB}, ids(page.Items))
	require.NotNil(t, page.NextCursor)
	require.EqualValues(t, 90, *page.NextCursor)
	require.True(t, page.HasMore)

	page, err = e.feed.GoodsPage(ctx, p, 90, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{itemC}, ids(page.Items))
	require.EqualValues(t, 80, *page.NextCursor)
	require.False(t, page.HasMore)
}

func TestGetPage_Category5Scenario(t *testing.T) {
	store := newFakeStore()
	seedCategory5(store)
	e := newEnv(store)

	// первый проход: индекса нет, страницы из хранилища
	assertCategory5Pages(t, e)
	e.goods.Wait()

	// второй проход: индекс построен
	ok, err := e.index.Exists(context.Background(), domain.CategoryPartition(5))
	require.NoError(t, err)
	require.True(t, ok)

	pagesBefore := store.pageCalls.Load()
	assertCategory5Pages(t, e)
	require.Equal(t, pagesBefore, store.pageCalls.Load(), "index path must not page the store")
}

func TestGetPage_PageCover(t *testing.T) {
	store := newFakeStore()
	rnd := rand.New(rand.NewSource(11))
	const n = 37
	scores := rnd.Perm(1000)[:n]
	for i, sc := range scores {
		store.putGoods(domain.GoodsState{ID: int64(i + 1), OwnerID: 4, Status: domain.StatusOnSale, UpdatedAt: int64(sc + 1)}, 0)
	}
	e := newEnv(store)
	ctx := context.Background()

	for _, size := range []int{1, 5, 10, 36, 37, 50} {
		var (
			seen   = map[int64]bool{}
			cursor int64
			last   int64 = 1 << 62
		)
		for {
			page, err := e.feed.GoodsPage(ctx, domain.AllActivePartition(), cursor, size)
			require.NoError(t, err)
			for _, c := range page.Items {
				require.False(t, seen[c.ID], "duplicate id=%d size=%d", c.ID, size)
				seen[c.ID] = true
				require.LessOrEqual(t, c.UpdateTimestamp, last)
				last = c.UpdateTimestamp
			}
			if !page.HasMore {
				break
			}
			cursor = *page.NextCursor
		}
		require.Len(t, seen, n, "size=%d", size)
		e.goods.Wait()
	}
}

func TestGetPage_EmptyPartitionIsPresent(t *testing.T) {
	store := newFakeStore()
	e := newEnv(store)
	ctx := context.Background()
	p := domain.OwnerOfflinePartition(77)

	page, err := e.feed.GoodsPage(ctx, p, 0, 10)
	require.NoError(t, err)
	require.Empty(t, page.Items)
	require.Nil(t, page.NextCursor)
	require.False(t, page.HasMore)
	e.goods.Wait()

	calls := store.pageCalls.Load()
	page, err = e.feed.GoodsPage(ctx, p, 0, 10)
	require.NoError(t, err)
	require.Empty(t, page.Items)
	require.Equal(t, calls, store.pageCalls.Load(), "empty built index is a valid answer")
}

func TestGetPage_ConcurrentMissesRebuildOnce(t *testing.T) {
	store := newFakeStore()
	seedCategory5(store)
	gated := &gatedStore{fakeStore: store, gate: make(chan struct{})}
	e := newEnv(store)
	goods := newGoodsCache(e, gated)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := goods.GetPage(ctx, domain.CategoryPartition(5), 0, 2)
		require.NoError(t, err)
	}
	time.Sleep(50 * time.Millisecond)
	close(gated.gate)
	goods.Wait()

	require.EqualValues(t, 1, store.fetchAllCalls.Load())
}

func TestRebuild_HooksDuringBuildAreNotLost(t *testing.T) {
	store := newFakeStore()
	cat := int64p(5)
	store.putGoods(domain.GoodsState{ID: itemA, OwnerID: 9, CategoryID: cat, Status: domain.StatusOnSale, UpdatedAt: 100}, 0)
	store.putGoods(domain.GoodsState{ID: itemC, OwnerID: 9, CategoryID: cat, Status: domain.StatusOnSale, UpdatedAt: 50}, 0)
	snap := newSnapshotGatedStore(store)
	e := newEnv(store)
	goods := newGoodsCache(e, snap)
	ctx := context.Background()
	p := domain.CategoryPartition(5)

	page, err := goods.GetPage(ctx, p, 0, 10)
	require.NoError(t, err)
	require.Equal(t, []int64{itemA, itemC}, ids(page.Items))

	// перестроение уже прочитало {1, 3}, индекс ещё не записан
	<-snap.fetched
	store.putGoods(domain.GoodsState{ID: itemB, OwnerID: 9, CategoryID: cat, Status: domain.StatusOnSale, UpdatedAt: 200}, 0)
	require.NoError(t, goods.OnItemCreated(ctx, itemB, 200, []domain.Partition{p}))
	store.putGoods(domain.GoodsState{ID: itemC, OwnerID: 9, CategoryID: cat, Status: domain.StatusOffShelf, UpdatedAt: 210}, 0)
	require.NoError(t, goods.OnItemRemoved(ctx, itemC, []domain.Partition{p}))

	close(snap.gate)
	goods.Wait()

	calls := store.pageCalls.Load()
	page, err = goods.GetPage(ctx, p, 0, 10)
	require.NoError(t, err)
	require.Equal(t, []int64{itemB, itemA}, ids(page.Items))
	require.Equal(t, calls, store.pageCalls.Load(), "page must come from the rebuilt index")
}

func TestRebuild_FailedReplayDropsIndex(t *testing.T) {
	store := newFakeStore()
	seedCategory5(store)
	snap := newSnapshotGatedStore(store)
	e := newEnv(store)
	idx := &failingUpsertIndex{OrderedIndex: e.index}
	e.index = idx
	goods := newGoodsCache(e, snap)
	ctx := context.Background()
	p := domain.CategoryPartition(5)

	done := make(chan error, 1)
	go func() { done <- goods.Rebuild(ctx, p) }()
	<-snap.fetched
	idx.fail.Store(true)
	// индекс ещё не построен: хук только пишет в журнал
	require.NoError(t, goods.OnItemCreated(ctx, 4, 300, []domain.Partition{p}))
	close(snap.gate)

	require.Error(t, <-done)
	ok, err := e.index.Exists(ctx, p)
	require.NoError(t, err)
	require.False(t, ok, "index missing a hook write must not stay built")
}

func TestGetPage_Validation(t *testing.T) {
	e := newEnv(newFakeStore())
	ctx := context.Background()

	_, err := e.feed.GoodsPage(ctx, domain.Partition{Kind: "bogus", ScopeID: 1}, 0, 10)
	require.True(t, errors.Is(err, domain.ErrInvalidPartition))

	_, err = e.feed.GoodsPage(ctx, domain.Partition{Kind: domain.KindCategory}, 0, 10)
	require.True(t, errors.Is(err, domain.ErrInvalidPartition))

	_, err = e.feed.GoodsPage(ctx, domain.UserRegistryPartition(), 0, 10)
	require.True(t, errors.Is(err, domain.ErrInvalidPartition))
}

func TestGetPage_SizeNormalization(t *testing.T) {
	store := newFakeStore()
	for i := int64(1); i <= 60; i++ {
		store.putGoods(domain.GoodsState{ID: i, OwnerID: 1, Status: domain.StatusOnSale, UpdatedAt: i * 10}, 0)
	}
	e := newEnv(store)
	ctx := context.Background()

	page, err := e.feed.GoodsPage(ctx, domain.AllActivePartition(), 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 10)

	page, err = e.feed.GoodsPage(ctx, domain.AllActivePartition(), 0, 1000)
	require.NoError(t, err)
	require.Len(t, page.Items, 50)
	require.True(t, page.HasMore)
}

func TestGetPage_StoreDownIsRetryableError(t *testing.T) {
	store := newFakeStore()
	seedCategory5(store)
	store.down.Store(true)
	e := newEnv(store)

	_, err := e.feed.GoodsPage(context.Background(), domain.CategoryPartition(5), 0, 2)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}

func TestGetPage_DropsIDsMissingFromStore(t *testing.T) {
	store := newFakeStore()
	seedCategory5(store)
	e := newEnv(store)
	ctx := context.Background()
	p := domain.CategoryPartition(5)

	require.NoError(t, e.goods.Rebuild(ctx, p))
	store.mu.Lock()
	delete(store.goods, itemB)
	store.mu.Unlock()

	page, err := e.feed.GoodsPage(ctx, p, 0, 10)
	require.NoError(t, err)
	require.Equal(t, []int64{itemA, itemC}, ids(page.Items))
}

func TestGetPage_CardsWrittenBackWithoutCounter(t *testing.T) {
	store := newFakeStore()
	seedCategory5(store)
	store.putGoods(domain.GoodsState{ID: itemA, OwnerID: 9, CategoryID: int64p(5), Status: domain.StatusOnSale, UpdatedAt: 100}, 42)
	e := newEnv(store)
	ctx := context.Background()

	page, err := e.feed.GoodsPage(ctx, domain.CategoryPartition(5), 0, 1)
	require.NoError(t, err)
	require.EqualValues(t, 42, page.Items[0].CollectNum)

	cached, err := e.cards.BatchGet(ctx, []int64{itemA})
	require.NoError(t, err)
	require.EqualValues(t, 0, cached[itemA].CollectNum, "counter is overlaid, not cached in the card")
}

func TestMutationHooks_IdempotentUpsert(t *testing.T) {
	store := newFakeStore()
	seedCategory5(store)
	e := newEnv(store)
	ctx := context.Background()
	p := domain.CategoryPartition(5)
	require.NoError(t, e.goods.Rebuild(ctx, p))

	d := domain.GoodsState{ID: 4, OwnerID: 9, CategoryID: int64p(5), Status: domain.StatusOnSale, UpdatedAt: 95}
	store.putGoods(d, 0)

	require.NoError(t, e.feed.OnItemCreated(ctx, d))
	once, err := e.feed.GoodsPage(ctx, p, 0, 10)
	require.NoError(t, err)

	require.NoError(t, e.feed.OnItemCreated(ctx, d))
	twice, err := e.feed.GoodsPage(ctx, p, 0, 10)
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(once, twice))
	require.Equal(t, []int64{itemA, 4, itemB, itemC}, ids(twice.Items))
}

func TestMutationHooks_MoveBetweenPartitions(t *testing.T) {
	store := newFakeStore()
	seedCategory5(store)
	e := newEnv(store)
	ctx := context.Background()

	active := domain.CategoryPartition(5)
	offline := domain.OwnerOfflinePartition(9)
	require.NoError(t, e.goods.Rebuild(ctx, active))
	require.NoError(t, e.goods.Rebuild(ctx, offline))

	before := domain.GoodsState{ID: itemB, OwnerID: 9, CategoryID: int64p(5), Status: domain.StatusOnSale, UpdatedAt: 90}
	after := before
	after.Status, after.UpdatedAt = domain.StatusOffShelf, 120
	store.putGoods(after, 0)

	require.NoError(t, e.feed.OnItemMutated(ctx, &before, after))

	page, err := e.feed.GoodsPage(ctx, active, 0, 10)
	require.NoError(t, err)
	require.Equal(t, []int64{itemA, itemC}, ids(page.Items))

	page, err = e.feed.GoodsPage(ctx, offline, 0, 10)
	require.NoError(t, err)
	require.Equal(t, []int64{itemB}, ids(page.Items))
	require.EqualValues(t, 120, page.Items[0].UpdateTimestamp, "card invalidated and re-read")

	// прежнее состояние неизвестно: снимаем с продажи обратно и товар находится верно
	back := after
	back.Status, back.UpdatedAt = domain.StatusOnSale, 130
	store.putGoods(back, 0)
	require.NoError(t, e.feed.OnItemMutated(ctx, nil, back))

	page, _ = e.feed.GoodsPage(ctx, offline, 0, 10)
	require.Empty(t, page.Items)
	page, _ = e.feed.GoodsPage(ctx, active, 0, 10)
	require.Equal(t, []int64{itemB, itemA, itemC}, ids(page.Items))
}

func TestMutationHooks_SkipUnbuiltIndex(t *testing.T) {
	store := newFakeStore()
	e := newEnv(store)
	ctx := context.Background()

	d := domain.GoodsState{ID: 1, OwnerID: 2, Status: domain.StatusOnSale, UpdatedAt: 10}
	store.putGoods(d, 0)
	require.NoError(t, e.feed.OnItemCreated(ctx, d))

	ok, err := e.index.Exists(ctx, domain.AllActivePartition())
	require.NoError(t, err)
	require.False(t, ok, "hooks must not create partial indexes")
}

func TestCacheFallback_PagesIdentical(t *testing.T) {
	store := newFakeStore()
	for i := int64(1); i <= 25; i++ {
		store.putGoods(domain.GoodsState{ID: i, OwnerID: i % 3, CategoryID: int64p(5), Status: domain.StatusOnSale, UpdatedAt: 1000 + i*7}, i)
	}
	healthy := newEnv(store)
	broken := newEnv(store, withDownIndex(), withDownCards(), withDownCounters())
	ctx := context.Background()
	p := domain.CategoryPartition(5)

	// прогрев: индекс и кэши у здорового окружения заполнены
	_, err := healthy.feed.GoodsPage(ctx, p, 0, 50)
	require.NoError(t, err)
	healthy.goods.Wait()

	for _, size := range []int{3, 7, 25} {
		var cursor int64 = 1 << 40
		for {
			want, err := healthy.feed.GoodsPage(ctx, p, cursor, size)
			require.NoError(t, err)
			got, err := broken.feed.GoodsPage(ctx, p, cursor, size)
			require.NoError(t, err)
			require.Empty(t, cmp.Diff(want, got), "size=%d cursor=%d", size, cursor)
			if !want.HasMore {
				break
			}
			cursor = *want.NextCursor
		}
	}

	for i := int64(1); i <= 25; i++ {
		want, err := healthy.feed.CollectCount(ctx, i)
		require.NoError(t, err)
		got, err := broken.feed.CollectCount(ctx, i)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}
