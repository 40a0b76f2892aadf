package usecase_test

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gunvolt24/goodsfeed/internal/cache/memory"
	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/internal/usecase"
	"github.com/Gunvolt24/goodsfeed/pkg/jitter"
)

var errCacheDown = errors.New("cache is down")

type noopLogger struct{}

func (noopLogger) Infof(context.Context, string, ...any)  {}
func (noopLogger) Warnf(context.Context, string, ...any)  {}
func (noopLogger) Errorf(context.Context, string, ...any) {}

// fakeStore - эталонное хранилище: членство в партициях считается по GoodsState.
type fakeStore struct {
	mu        sync.Mutex
	goods     map[int64]domain.GoodsState
	favorites map[int64]map[int64]int64 // user -> goods -> at
	counters  map[int64]int64
	users     map[int64]domain.UserCard

	down          atomic.Bool
	fetchAllCalls atomic.Int32
	pageCalls     atomic.Int32
	byIDCalls     atomic.Int32
}

var (
	_ ports.GoodsStore   = (*fakeStore)(nil)
	_ ports.CounterStore = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		goods:     map[int64]domain.GoodsState{},
		favorites: map[int64]map[int64]int64{},
		counters:  map[int64]int64{},
		users:     map[int64]domain.UserCard{},
	}
}

func (s *fakeStore) putGoods(st domain.GoodsState, collect int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goods[st.ID] = st
	s.counters[st.ID] = collect
}

func (s *fakeStore) addFavorite(userID, goodsID, at int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.favorites[userID] == nil {
		s.favorites[userID] = map[int64]int64{}
	}
	s.favorites[userID][goodsID] = at
}

func (s *fakeStore) counter(id int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[id]
}

func (s *fakeStore) card(st domain.GoodsState) domain.GoodsCard {
	return domain.GoodsCard{
		ID:               st.ID,
		OwnerID:          st.OwnerID,
		CategoryID:       st.CategoryID,
		BriefDescription: "goods",
		UpdateTimestamp:  st.UpdatedAt,
		CollectNum:       s.counters[st.ID],
	}
}

// entries - (id, score) партиции по убыванию score. Вызывать под mu.
func (s *fakeStore) entries(p domain.Partition) []domain.IndexEntry {
	var out []domain.IndexEntry
	if p.Kind == domain.KindUserFavorite {
		for goodsID, at := range s.favorites[p.ScopeID] {
			if st, ok := s.goods[goodsID]; ok && st.Status == domain.StatusOnSale {
				out = append(out, domain.IndexEntry{ID: goodsID, Score: at})
			}
		}
	} else {
		for _, st := range s.goods {
			if slices.Contains(st.Memberships(), p) {
				out = append(out, domain.IndexEntry{ID: st.ID, Score: st.UpdatedAt})
			}
		}
	}
	slices.SortFunc(out, func(a, b domain.IndexEntry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func (s *fakeStore) FetchPage(_ context.Context, p domain.Partition, cursor int64, limit int) ([]domain.Scored[domain.GoodsCard], error) {
	s.pageCalls.Add(1)
	if s.down.Load() {
		return nil, errors.New("connection refused")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Scored[domain.GoodsCard]
	for _, e := range s.entries(p) {
		if e.Score >= cursor {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, domain.Scored[domain.GoodsCard]{Item: s.card(s.goods[e.ID]), Score: e.Score})
	}
	return out, nil
}

func (s *fakeStore) FetchAllWithScore(_ context.Context, p domain.Partition) ([]domain.IndexEntry, error) {
	s.fetchAllCalls.Add(1)
	if s.down.Load() {
		return nil, errors.New("connection refused")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries(p), nil
}

func (s *fakeStore) FetchByIDs(_ context.Context, ids []int64) ([]domain.GoodsCard, error) {
	s.byIDCalls.Add(1)
	if s.down.Load() {
		return nil, errors.New("connection refused")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.GoodsCard
	for _, id := range ids {
		if st, ok := s.goods[id]; ok {
			out = append(out, s.card(st))
		}
	}
	return out, nil
}

func (s *fakeStore) FavoritesOf(_ context.Context, goodsID int64) ([]domain.IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.IndexEntry
	for userID, favs := range s.favorites {
		if at, ok := favs[goodsID]; ok {
			out = append(out, domain.IndexEntry{ID: userID, Score: at})
		}
	}
	return out, nil
}

func (s *fakeStore) StatusOf(_ context.Context, goodsID int64) (domain.GoodsStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.goods[goodsID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return st.Status, nil
}

func (s *fakeStore) ReadCounters(_ context.Context, ids []int64) (map[int64]int64, error) {
	if s.down.Load() {
		return nil, errors.New("connection refused")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[int64]int64{}
	for _, id := range ids {
		if v, ok := s.counters[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (s *fakeStore) AddCounter(_ context.Context, id, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counters[id]; !ok {
		return 0, domain.ErrNotFound
	}
	s.counters[id] += delta
	return s.counters[id], nil
}

func (s *fakeStore) CompareAndAddCounter(_ context.Context, id, expected, delta int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.counters[id]; !ok || v != expected {
		return false, nil
	}
	s.counters[id] += delta
	return true, nil
}

// userStore - список пользователей поверх того же fakeStore.
type userStore struct{ s *fakeStore }

var _ ports.UserStore = userStore{}

func (u userStore) sorted() []domain.UserCard {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	out := make([]domain.UserCard, 0, len(u.s.users))
	for _, c := range u.s.users {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.UserCard) int { return cmp.Compare(b.RegisteredAt, a.RegisteredAt) })
	return out
}

func (u userStore) FetchPage(_ context.Context, _ domain.Partition, cursor int64, limit int) ([]domain.Scored[domain.UserCard], error) {
	var out []domain.Scored[domain.UserCard]
	for _, c := range u.sorted() {
		if c.RegisteredAt < cursor && len(out) < limit {
			out = append(out, domain.Scored[domain.UserCard]{Item: c, Score: c.RegisteredAt})
		}
	}
	return out, nil
}

func (u userStore) FetchAllWithScore(context.Context, domain.Partition) ([]domain.IndexEntry, error) {
	var out []domain.IndexEntry
	for _, c := range u.sorted() {
		out = append(out, domain.IndexEntry{ID: c.ID, Score: c.RegisteredAt})
	}
	return out, nil
}

func (u userStore) FetchByIDs(_ context.Context, ids []int64) ([]domain.UserCard, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	var out []domain.UserCard
	for _, id := range ids {
		if c, ok := u.s.users[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// ------ недоступные кэши ------

type downIndex struct{}

func (downIndex) Lookup(context.Context, domain.Partition, int64, int) ([]domain.IndexEntry, bool, error) {
	return nil, false, errCacheDown
}
func (downIndex) Upsert(context.Context, domain.Partition, int64, int64) error { return errCacheDown }
func (downIndex) Remove(context.Context, domain.Partition, int64) error        { return errCacheDown }
func (downIndex) Rebuild(context.Context, domain.Partition, []domain.IndexEntry, time.Duration) error {
	return errCacheDown
}
func (downIndex) Exists(context.Context, domain.Partition) (bool, error) { return false, errCacheDown }
func (downIndex) Drop(context.Context, domain.Partition) error           { return errCacheDown }

type downCards[V domain.Projection] struct{}

func (downCards[V]) BatchGet(context.Context, []int64) (map[int64]V, error) { return nil, errCacheDown }
func (downCards[V]) BatchPut(context.Context, []V, time.Duration, time.Duration) error {
	return errCacheDown
}
func (downCards[V]) Invalidate(context.Context, int64) error { return errCacheDown }

type downCounters struct{}

func (downCounters) Get(context.Context, int64) (int64, bool, error) { return 0, false, errCacheDown }
func (downCounters) BatchGet(context.Context, []int64) (map[int64]int64, error) {
	return nil, errCacheDown
}
func (downCounters) IncrementExisting(context.Context, int64, int64, time.Duration) (int64, bool, error) {
	return 0, false, errCacheDown
}
func (downCounters) Seed(context.Context, int64, int64, time.Duration) (bool, error) {
	return false, errCacheDown
}
func (downCounters) BatchSeed(context.Context, map[int64]int64, time.Duration, time.Duration) error {
	return errCacheDown
}
func (downCounters) Delete(context.Context, int64) error { return errCacheDown }

// flakyCounters - кэш счётчиков, который отказывает заданное число раз.
type flakyCounters struct {
	ports.CounterCache
	failIncrements int
}

func (f *flakyCounters) IncrementExisting(ctx context.Context, id, delta int64, ttl time.Duration) (int64, bool, error) {
	if f.failIncrements > 0 {
		f.failIncrements--
		return 0, false, errCacheDown
	}
	return f.CounterCache.IncrementExisting(ctx, id, delta, ttl)
}

// ------ сборка ------

type env struct {
	store    *fakeStore
	index    ports.OrderedIndex
	cards    ports.ProjectionCache[domain.GoodsCard]
	counters ports.CounterCache
	pending  ports.PendingSet
	locker   ports.Locker

	goods      *usecase.PartitionedCursorCache[domain.GoodsCard]
	counterSvc *usecase.CounterService
	reconciler *usecase.Reconciler
	feed       *usecase.GoodsFeed
}

type envOption func(*env)

func withDownIndex() envOption { return func(e *env) { e.index = downIndex{} } }
func withDownCards() envOption {
	return func(e *env) { e.cards = downCards[domain.GoodsCard]{} }
}
func withDownCounters() envOption { return func(e *env) { e.counters = downCounters{} } }

// withFlakyCounters - f оборачивает in-memory кэш, с которым работает pending.
func withFlakyCounters(f *flakyCounters) envOption {
	return func(e *env) { f.CounterCache = e.counters; e.counters = f }
}

func newEnv(store *fakeStore, opts ...envOption) *env {
	counters := memory.NewCounterCache(1000, jitter.New(1))
	e := &env{
		store:    store,
		index:    memory.NewOrderedIndex(),
		cards:    memory.NewProjectionCache[domain.GoodsCard]("cards", 1000, jitter.New(1)),
		counters: counters,
		pending:  memory.NewPendingSet(counters, 24*time.Hour),
		locker:   memory.NewLocker(),
	}
	for _, opt := range opts {
		opt(e)
	}

	log := noopLogger{}
	e.counterSvc = usecase.NewCounterService(e.counters, e.pending, store, log, usecase.DefaultCounterConfig())
	e.reconciler = usecase.NewReconciler(e.counterSvc, e.pending, e.locker, log, usecase.DefaultReconcilerConfig())
	e.goods = usecase.NewPartitionedCursorCache[domain.GoodsCard](
		e.index, e.cards, store, log, usecase.DefaultCursorCacheConfig(),
		usecase.WithOverlay[domain.GoodsCard](e.counterSvc.OverlayCards),
		usecase.WithCachePrepare(domain.GoodsCard.WithoutCounter),
	)
	users := usecase.NewPartitionedCursorCache[domain.UserCard](
		memory.NewOrderedIndex(),
		memory.NewProjectionCache[domain.UserCard]("users", 1000, jitter.New(1)),
		userStore{store}, log, usecase.DefaultCursorCacheConfig(),
	)
	e.feed = usecase.NewGoodsFeed(e.goods, users, store, e.counterSvc, e.reconciler, log)
	return e
}

func ids(cards []domain.GoodsCard) []int64 {
	out := make([]int64, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func int64p(v int64) *int64 { return &v }

// gatedStore - FetchAllWithScore ждёт открытия gate.
type gatedStore struct {
	*fakeStore
	gate chan struct{}
}

func (g *gatedStore) FetchAllWithScore(ctx context.Context, p domain.Partition) ([]domain.IndexEntry, error) {
	<-g.gate
	return g.fakeStore.FetchAllWithScore(ctx, p)
}

// failingUpsertIndex - Upsert отказывает, пока поднят fail.
type failingUpsertIndex struct {
	ports.OrderedIndex
	fail atomic.Bool
}

func (x *failingUpsertIndex) Upsert(ctx context.Context, p domain.Partition, id, score int64) error {
	if x.fail.Load() {
		return errCacheDown
	}
	return x.OrderedIndex.Upsert(ctx, p, id, score)
}

// snapshotGatedStore - FetchAllWithScore снимает содержимое партиции,
// сигналит в fetched и ждёт gate перед возвратом.
type snapshotGatedStore struct {
	*fakeStore
	fetched chan struct{}
	gate    chan struct{}
}

func newSnapshotGatedStore(s *fakeStore) *snapshotGatedStore {
	return &snapshotGatedStore{fakeStore: s, fetched: make(chan struct{}, 1), gate: make(chan struct{})}
}

func (g *snapshotGatedStore) FetchAllWithScore(ctx context.Context, p domain.Partition) ([]domain.IndexEntry, error) {
	entries, err := g.fakeStore.FetchAllWithScore(ctx, p)
	select {
	case g.fetched <- struct{}{}:
	default:
	}
	<-g.gate
	return entries, err
}

func newGoodsCache(e *env, source ports.PageSource[domain.GoodsCard]) *usecase.PartitionedCursorCache[domain.GoodsCard] {
	return usecase.NewPartitionedCursorCache[domain.GoodsCard](
		e.index, e.cards, source, noopLogger{}, usecase.DefaultCursorCacheConfig(),
		usecase.WithOverlay[domain.GoodsCard](e.counterSvc.OverlayCards),
	)
}
