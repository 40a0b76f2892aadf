package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/pkg/jitter"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestIndexKeys(t *testing.T) {
	t.Parallel()

	require.Equal(t, "goods:cat:5:ids", IndexKey(domain.CategoryPartition(5)))
	require.Equal(t, "goods:owner:7:ids", IndexKey(domain.OwnerPartition(7)))
	require.Equal(t, "goods:offline:7:ids", IndexKey(domain.OwnerOfflinePartition(7)))
	require.Equal(t, "goods:all:ids", IndexKey(domain.AllActivePartition()))
	require.Equal(t, "favorite:user:3:ids", IndexKey(domain.UserFavoritePartition(3)))
	require.Equal(t, "user:list:ids", IndexKey(domain.UserRegistryPartition()))
	require.Equal(t, "goods:collect:9", counterKey(9))
}

func TestOrderedIndex_AbsentEmptyPresent(t *testing.T) {
	t.Parallel()
	mr, rdb := newTestRedis(t)
	x := NewOrderedIndex(rdb)
	ctx := context.Background()
	p := domain.CategoryPartition(5)

	_, present, err := x.Lookup(ctx, p, 1000, 10)
	require.NoError(t, err)
	require.False(t, present)

	// пустая партиция: индекс построен, но пуст
	require.NoError(t, x.Rebuild(ctx, p, nil, time.Minute))
	entries, present, err := x.Lookup(ctx, p, 1000, 10)
	require.NoError(t, err)
	require.True(t, present)
	require.Empty(t, entries)

	require.NoError(t, x.Rebuild(ctx, p, []domain.IndexEntry{
		{ID: 1, Score: 100}, {ID: 2, Score: 300}, {ID: 3, Score: 200},
	}, time.Hour))
	entries, present, err = x.Lookup(ctx, p, 300, 10)
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, []domain.IndexEntry{{ID: 3, Score: 200}, {ID: 1, Score: 100}}, entries)

	// содержимое живёт дольше отметки
	require.Greater(t, mr.TTL(IndexKey(p)), mr.TTL(markerKey(p)))

	mr.FastForward(time.Hour + time.Second)
	ok, err := x.Exists(ctx, p)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOrderedIndex_RebuildReplacesContents(t *testing.T) {
	t.Parallel()
	mr, rdb := newTestRedis(t)
	x := NewOrderedIndex(rdb)
	ctx := context.Background()
	p := domain.AllActivePartition()

	require.NoError(t, x.Rebuild(ctx, p, []domain.IndexEntry{{ID: 1, Score: 1}, {ID: 2, Score: 2}}, time.Minute))
	require.NoError(t, x.Rebuild(ctx, p, []domain.IndexEntry{{ID: 3, Score: 3}}, time.Minute))

	entries, _, err := x.Lookup(ctx, p, 100, 10)
	require.NoError(t, err)
	require.Equal(t, []domain.IndexEntry{{ID: 3, Score: 3}}, entries)

	require.NoError(t, x.Drop(ctx, p))
	_, present, err := x.Lookup(ctx, p, 100, 10)
	require.NoError(t, err)
	require.False(t, present)
	require.False(t, mr.Exists(IndexKey(p)))
}

func TestOrderedIndex_UpsertIntoEmptyGetsTTL(t *testing.T) {
	t.Parallel()
	mr, rdb := newTestRedis(t)
	x := NewOrderedIndex(rdb)
	ctx := context.Background()
	p := domain.OwnerPartition(7)

	require.NoError(t, x.Rebuild(ctx, p, nil, time.Minute))
	require.NoError(t, x.Upsert(ctx, p, 10, 500))
	require.NoError(t, x.Upsert(ctx, p, 11, 600))
	require.NoError(t, x.Remove(ctx, p, 11))

	entries, present, err := x.Lookup(ctx, p, 1000, 10)
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, []domain.IndexEntry{{ID: 10, Score: 500}}, entries)
	require.Greater(t, mr.TTL(IndexKey(p)), time.Duration(0), "zset created by upsert must not live forever")
}

func TestProjectionCache_JitteredTTL(t *testing.T) {
	t.Parallel()
	mr, rdb := newTestRedis(t)
	c := NewGoodsCardCache(rdb, jitter.New(3))
	ctx := context.Background()

	items := make([]domain.GoodsCard, 0, 50)
	for i := int64(1); i <= 50; i++ {
		items = append(items, domain.GoodsCard{ID: i, BriefDescription: "desc"})
	}
	require.NoError(t, c.BatchPut(ctx, items, 30*time.Minute, 5*time.Minute))

	seen := map[time.Duration]struct{}{}
	for i := int64(1); i <= 50; i++ {
		ttl := mr.TTL(c.key(i))
		require.GreaterOrEqual(t, ttl, 30*time.Minute)
		require.Less(t, ttl, 35*time.Minute)
		seen[ttl] = struct{}{}
	}
	require.Greater(t, len(seen), 1)

	got, err := c.BatchGet(ctx, []int64{1, 2, 999})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "desc", got[1].BriefDescription)

	require.NoError(t, c.Invalidate(ctx, 1))
	got, _ = c.BatchGet(ctx, []int64{1})
	require.Empty(t, got)
}

func TestProjectionCache_CorruptEntryIsMiss(t *testing.T) {
	t.Parallel()
	mr, rdb := newTestRedis(t)
	c := NewUserCardCache(rdb, jitter.New(1))

	require.NoError(t, mr.Set("user:card:1", "{not json"))
	got, err := c.BatchGet(context.Background(), []int64{1})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestCounterCache_IncrementExistingAndSeed(t *testing.T) {
	t.Parallel()
	mr, rdb := newTestRedis(t)
	c := NewCounterCache(rdb, jitter.New(1))
	ctx := context.Background()

	_, ok, err := c.IncrementExisting(ctx, 1, 1, time.Hour)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, mr.Exists(counterKey(1)), "increment must not create the key")

	seeded, err := c.Seed(ctx, 1, 10, time.Minute)
	require.NoError(t, err)
	require.True(t, seeded)
	seeded, _ = c.Seed(ctx, 1, 0, time.Minute)
	require.False(t, seeded)

	v, ok, err := c.IncrementExisting(ctx, 1, 2, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 12, v)
	require.Equal(t, time.Hour, mr.TTL(counterKey(1)), "increment refreshes ttl")

	require.NoError(t, c.BatchSeed(ctx, map[int64]int64{1: 0, 2: 5}, time.Hour, time.Minute))
	got, err := c.BatchGet(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, map[int64]int64{1: 12, 2: 5}, got)

	require.NoError(t, c.Delete(ctx, 2))
	_, ok, _ = c.Get(ctx, 2)
	require.False(t, ok)
}

func TestPendingSet_Settle(t *testing.T) {
	t.Parallel()
	mr, rdb := newTestRedis(t)
	counters := NewCounterCache(rdb, jitter.New(1))
	pending := NewPendingSet(rdb, 24*time.Hour)
	ctx := context.Background()

	_, _ = counters.Seed(ctx, 1, 12, time.Hour)
	require.NoError(t, pending.Add(ctx, 1))
	require.NoError(t, pending.Add(ctx, 2))
	require.Equal(t, 24*time.Hour, mr.TTL(KeyPending))

	ids, err := pending.Members(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, ids)

	// пришла новая дельта: id остаётся в множестве
	_, _, _ = counters.IncrementExisting(ctx, 1, 1, time.Hour)
	settled, err := pending.Settle(ctx, 1, 12)
	require.NoError(t, err)
	require.False(t, settled)

	settled, err = pending.Settle(ctx, 1, 13)
	require.NoError(t, err)
	require.True(t, settled)

	// значения счётчика нет - удаляется
	settled, _ = pending.Settle(ctx, 2, 0)
	require.True(t, settled)

	ids, _ = pending.Members(ctx)
	require.Empty(t, ids)
}

func TestLocker_ExclusiveAndTokenRelease(t *testing.T) {
	t.Parallel()
	mr, rdb := newTestRedis(t)
	a := NewLocker(rdb)
	b := NewLocker(rdb)
	ctx := context.Background()

	releaseA, ok, err := a.TryLock(ctx, KeyReconcileLock, 5*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.TryLock(ctx, KeyReconcileLock, 5*time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	// аренда истекла, замок у b; a не должен снять чужой замок
	mr.FastForward(5*time.Minute + time.Second)
	releaseB, ok, _ := b.TryLock(ctx, KeyReconcileLock, 5*time.Minute)
	require.True(t, ok)
	require.NoError(t, releaseA(ctx))
	require.True(t, mr.Exists(KeyReconcileLock))

	require.NoError(t, releaseB(ctx))
	require.False(t, mr.Exists(KeyReconcileLock))
}

func TestCacheUnavailable(t *testing.T) {
	t.Parallel()
	mr, rdb := newTestRedis(t)
	mr.Close()
	ctx := context.Background()

	_, _, err := NewOrderedIndex(rdb).Lookup(ctx, domain.AllActivePartition(), 1, 1)
	require.Error(t, err)
	_, err = NewGoodsCardCache(rdb, nil).BatchGet(ctx, []int64{1})
	require.Error(t, err)
	_, _, err = NewCounterCache(rdb, nil).IncrementExisting(ctx, 1, 1, time.Minute)
	require.Error(t, err)
	_, _, err = NewLocker(rdb).TryLock(ctx, "x", time.Minute)
	require.Error(t, err)
}
