package usecase

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/pkg/metrics"
	"github.com/Gunvolt24/goodsfeed/pkg/telemetry"
)

// CursorCacheConfig - параметры постраничного чтения и TTL.
type CursorCacheConfig struct {
	DefaultSize int
	MaxSize     int

	CardTTL    time.Duration
	CardJitter time.Duration

	IndexTTL      time.Duration
	EmptyIndexTTL time.Duration // для пустых партиций; короче, чтобы не держать "пусто" долго

	RebuildTimeout time.Duration
}

// DefaultCursorCacheConfig - значения по умолчанию.
func DefaultCursorCacheConfig() CursorCacheConfig {
	return CursorCacheConfig{
		DefaultSize:    10,
		MaxSize:        50,
		CardTTL:        30 * time.Minute,
		CardJitter:     5 * time.Minute,
		IndexTTL:       60 * time.Minute,
		EmptyIndexTTL:  time.Minute,
		RebuildTimeout: 30 * time.Second,
	}
}

// Overlay - накладывает живые значения на карточки страницы (например, счётчики).
type Overlay[V any] func(ctx context.Context, items []V) error

// CursorCacheOption - необязательные зависимости PartitionedCursorCache.
type CursorCacheOption[V domain.Projection] func(*PartitionedCursorCache[V])

// WithOverlay - функция наложения на итоговую страницу.
func WithOverlay[V domain.Projection](fn Overlay[V]) CursorCacheOption[V] {
	return func(c *PartitionedCursorCache[V]) { c.overlay = fn }
}

// WithCachePrepare - преобразование карточки перед записью в кэш.
func WithCachePrepare[V domain.Projection](fn func(V) V) CursorCacheOption[V] {
	return func(c *PartitionedCursorCache[V]) { c.prepare = fn }
}

// WithClock - источник "сейчас" для курсора по умолчанию.
func WithClock[V domain.Projection](now func() time.Time) CursorCacheOption[V] {
	return func(c *PartitionedCursorCache[V]) { c.now = now }
}

// PartitionedCursorCache - курсорная пагинация по партициям поверх
// упорядоченного индекса и кэша карточек, с хранилищем как источником истины.
//
// Ошибки кэша никогда не доходят до вызывающего: при любой из них страница
// собирается из хранилища. Наружу уходят только ошибки хранилища.
type PartitionedCursorCache[V domain.Projection] struct {
	index  ports.OrderedIndex
	cards  ports.ProjectionCache[V]
	source ports.PageSource[V]
	log    ports.Logger
	cfg    CursorCacheConfig

	overlay Overlay[V]
	prepare func(V) V
	now     func() time.Time

	rebuilds singleflight.Group
	pending  sync.WaitGroup

	// журналы хуков, пришедших во время перестроения партиции
	journalMu sync.Mutex
	journals  map[domain.Partition][]*buildJournal
}

// hookWrite - запись хука в индекс: Upsert или Remove.
type hookWrite struct {
	id     int64
	score  int64
	remove bool
}

type buildJournal struct {
	writes []hookWrite
}

// NewPartitionedCursorCache - DI-конструктор.
func NewPartitionedCursorCache[V domain.Projection](
	index ports.OrderedIndex,
	cards ports.ProjectionCache[V],
	source ports.PageSource[V],
	log ports.Logger,
	cfg CursorCacheConfig,
	opts ...CursorCacheOption[V],
) *PartitionedCursorCache[V] {
	c := &PartitionedCursorCache[V]{
		index:  index,
		cards:  cards,
		source: source,
		log:    log,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPage - страница партиции со score строго меньше cursor.
//
// cursor <= 0 означает "с самого нового" (текущее время в мс).
// size вне [1, MaxSize] приводится к DefaultSize / MaxSize.
func (c *PartitionedCursorCache[V]) GetPage(ctx context.Context, p domain.Partition, cursor int64, size int) (page domain.Page[V], err error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.page",
		attribute.String("feed.partition", p.String()),
		attribute.Int64("feed.cursor", cursor),
		attribute.Int("feed.size", size),
	)
	defer func() { telemetry.End(span, err) }()

	if err := p.Validate(); err != nil {
		return domain.Page[V]{}, err
	}
	if cursor <= 0 {
		cursor = c.now().UnixMilli()
	}
	size = c.normalizeSize(size)
	fetch := size + 1 // лишний элемент показывает, есть ли продолжение

	entries, present, lookupErr := c.index.Lookup(ctx, p, cursor, fetch)
	if lookupErr != nil {
		c.log.Warnf(ctx, "index lookup failed partition=%s err=%v, falling back to store", p, lookupErr)
		present = false
	}

	var scored []domain.Scored[V]
	if present {
		span.SetAttributes(attribute.String("feed.source", "index"))
		metrics.PageRequests.WithLabelValues(string(p.Kind), "index").Inc()
		scored, err = c.resolve(ctx, entries)
	} else {
		span.SetAttributes(attribute.String("feed.source", "store"))
		metrics.PageRequests.WithLabelValues(string(p.Kind), "store").Inc()
		scored, err = c.fromStore(ctx, p, cursor, fetch)
		// при недоступном кэше перестраивать некуда
		if err == nil && lookupErr == nil {
			c.scheduleRebuild(ctx, p)
		}
	}
	if err != nil {
		return domain.Page[V]{}, err
	}
	return c.assemble(ctx, scored, size)
}

// Rebuild - полностью перестроить индекс партиции из хранилища.
func (c *PartitionedCursorCache[V]) Rebuild(ctx context.Context, p domain.Partition) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.rebuild", attribute.String("feed.partition", p.String()))
	defer func() { telemetry.End(span, err) }()

	if err := p.Validate(); err != nil {
		return err
	}
	start := time.Now()

	// хуки с этого момента пишутся в журнал: снимок хранилища может их не увидеть
	j := c.beginBuild(p)
	entries, err := c.source.FetchAllWithScore(ctx, p)
	if err != nil {
		c.endBuild(p, j)
		metrics.IndexRebuilds.WithLabelValues(string(p.Kind), "error").Inc()
		return storeErr("fetch partition "+p.String(), err)
	}
	ttl := c.cfg.IndexTTL
	if len(entries) == 0 {
		ttl = c.cfg.EmptyIndexTTL
	}
	span.SetAttributes(attribute.Int("feed.entries", len(entries)))
	if err := c.index.Rebuild(ctx, p, entries, ttl); err != nil {
		c.endBuild(p, j)
		metrics.IndexRebuilds.WithLabelValues(string(p.Kind), "error").Inc()
		return fmt.Errorf("rebuild index %s: %w", p, err)
	}

	writes := c.endBuild(p, j)
	if err := c.replay(ctx, p, writes); err != nil {
		// индекс без части записей хуков отдавать нельзя: пусть соберётся заново
		if rmErr := c.index.Drop(ctx, p); rmErr != nil {
			c.log.Warnf(ctx, "drop index after failed replay partition=%s err=%v", p, rmErr)
		}
		metrics.IndexRebuilds.WithLabelValues(string(p.Kind), "error").Inc()
		return fmt.Errorf("replay hooks into index %s: %w", p, err)
	}

	metrics.IndexRebuilds.WithLabelValues(string(p.Kind), "ok").Inc()
	c.log.Infof(ctx, "index rebuilt partition=%s entries=%d replayed=%d ttl=%s took=%s",
		p, len(entries), len(writes), ttl, time.Since(start))
	return nil
}

// Wait - дождаться фоновых перестроений (для остановки и тестов).
func (c *PartitionedCursorCache[V]) Wait() { c.pending.Wait() }

// ------ хуки мутаций ------

// Place - добавить id в индексы партиций. Непостроенные индексы не трогаются:
// они соберутся целиком при следующем чтении. Если партиция сейчас
// перестраивается, запись попадёт в индекс после перестроения.
func (c *PartitionedCursorCache[V]) Place(ctx context.Context, id, score int64, partitions ...domain.Partition) error {
	var errs []error
	for _, p := range partitions {
		c.record(p, hookWrite{id: id, score: score})
		built, err := c.index.Exists(ctx, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !built {
			continue
		}
		if err := c.index.Upsert(ctx, p, id, score); err != nil {
			errs = append(errs, err)
		}
	}
	return joinHookErrors("place", id, errs)
}

// Displace - убрать id из индексов партиций.
func (c *PartitionedCursorCache[V]) Displace(ctx context.Context, id int64, partitions ...domain.Partition) error {
	var errs []error
	for _, p := range partitions {
		c.record(p, hookWrite{id: id, remove: true})
		if err := c.index.Remove(ctx, p, id); err != nil {
			errs = append(errs, err)
		}
	}
	return joinHookErrors("displace", id, errs)
}

// OnItemCreated - новый элемент попадает во все свои партиции.
func (c *PartitionedCursorCache[V]) OnItemCreated(ctx context.Context, id, score int64, memberships []domain.Partition) error {
	return c.Place(ctx, id, score, memberships...)
}

// OnItemMutated - убрать из партиций, где элемента больше нет, обновить score
// в текущих и сбросить карточку.
func (c *PartitionedCursorCache[V]) OnItemMutated(ctx context.Context, id, score int64, stale, memberships []domain.Partition) error {
	var errs []error
	if err := c.Displace(ctx, id, stale...); err != nil {
		errs = append(errs, err)
	}
	if err := c.Place(ctx, id, score, memberships...); err != nil {
		errs = append(errs, err)
	}
	if err := c.cards.Invalidate(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("invalidate card id=%d: %w", id, err))
	}
	return joinErrors(errs)
}

// OnItemRemoved - убрать из всех партиций и сбросить карточку.
func (c *PartitionedCursorCache[V]) OnItemRemoved(ctx context.Context, id int64, memberships []domain.Partition) error {
	var errs []error
	if err := c.Displace(ctx, id, memberships...); err != nil {
		errs = append(errs, err)
	}
	if err := c.cards.Invalidate(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("invalidate card id=%d: %w", id, err))
	}
	return joinErrors(errs)
}

// ------вспомогательные функции------

func (c *PartitionedCursorCache[V]) normalizeSize(size int) int {
	if size <= 0 {
		return c.cfg.DefaultSize
	}
	if size > c.cfg.MaxSize {
		return c.cfg.MaxSize
	}
	return size
}

// fromStore - страница напрямую из хранилища; карточки пишутся в кэш.
func (c *PartitionedCursorCache[V]) fromStore(ctx context.Context, p domain.Partition, cursor int64, limit int) ([]domain.Scored[V], error) {
	scored, err := c.source.FetchPage(ctx, p, cursor, limit)
	if err != nil {
		return nil, storeErr("fetch page "+p.String(), err)
	}
	items := make([]V, len(scored))
	for i, s := range scored {
		items[i] = s.Item
	}
	c.writeBack(ctx, items)
	return scored, nil
}

// resolve - карточки для записей индекса: сначала кэш, промахи из хранилища.
// Записи, которых нет ни там, ни там (удалены из хранилища), пропускаются.
func (c *PartitionedCursorCache[V]) resolve(ctx context.Context, entries []domain.IndexEntry) ([]domain.Scored[V], error) {
	if len(entries) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	found, err := c.cards.BatchGet(ctx, ids)
	if err != nil {
		c.log.Warnf(ctx, "card cache batch get failed ids=%d err=%v", len(ids), err)
		found = nil
	}

	var misses []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			misses = append(misses, id)
		}
	}
	if len(misses) > 0 {
		fetched, err := c.source.FetchByIDs(ctx, misses)
		if err != nil {
			return nil, storeErr("fetch cards", err)
		}
		c.writeBack(ctx, fetched)
		if found == nil {
			found = make(map[int64]V, len(fetched))
		}
		for _, item := range fetched {
			found[item.ProjectionID()] = item
		}
	}

	out := make([]domain.Scored[V], 0, len(entries))
	for _, e := range entries {
		item, ok := found[e.ID]
		if !ok {
			c.log.Warnf(ctx, "indexed id=%d not found in store, skipped", e.ID)
			continue
		}
		out = append(out, domain.Scored[V]{Item: item, Score: e.Score})
	}
	return out, nil
}

func (c *PartitionedCursorCache[V]) writeBack(ctx context.Context, items []V) {
	if len(items) == 0 {
		return
	}
	toCache := items
	if c.prepare != nil {
		toCache = make([]V, len(items))
		for i, item := range items {
			toCache[i] = c.prepare(item)
		}
	}
	if err := c.cards.BatchPut(ctx, toCache, c.cfg.CardTTL, c.cfg.CardJitter); err != nil {
		c.log.Warnf(ctx, "card cache write-back failed items=%d err=%v", len(items), err)
	}
}

// assemble - обрезать до size, наложить живые значения, вычислить курсор.
// nextCursor - score последнего элемента в этой партиции.
func (c *PartitionedCursorCache[V]) assemble(ctx context.Context, scored []domain.Scored[V], size int) (domain.Page[V], error) {
	hasMore := len(scored) > size
	if hasMore {
		scored = scored[:size]
	}
	if len(scored) == 0 {
		return domain.EmptyPage[V](), nil
	}

	items := make([]V, len(scored))
	for i, s := range scored {
		items[i] = s.Item
	}
	if c.overlay != nil {
		if err := c.overlay(ctx, items); err != nil {
			return domain.Page[V]{}, err
		}
	}

	next := scored[len(scored)-1].Score
	return domain.Page[V]{Items: items, NextCursor: &next, HasMore: hasMore}, nil
}

// ------журнал перестроения------

func (c *PartitionedCursorCache[V]) beginBuild(p domain.Partition) *buildJournal {
	c.journalMu.Lock()
	defer c.journalMu.Unlock()
	if c.journals == nil {
		c.journals = make(map[domain.Partition][]*buildJournal)
	}
	j := &buildJournal{}
	c.journals[p] = append(c.journals[p], j)
	return j
}

func (c *PartitionedCursorCache[V]) record(p domain.Partition, w hookWrite) {
	c.journalMu.Lock()
	defer c.journalMu.Unlock()
	for _, j := range c.journals[p] {
		j.writes = append(j.writes, w)
	}
}

// endBuild - снять журнал и вернуть накопленные записи.
func (c *PartitionedCursorCache[V]) endBuild(p domain.Partition, j *buildJournal) []hookWrite {
	c.journalMu.Lock()
	defer c.journalMu.Unlock()
	rest := slices.DeleteFunc(c.journals[p], func(x *buildJournal) bool { return x == j })
	if len(rest) == 0 {
		delete(c.journals, p)
	} else {
		c.journals[p] = rest
	}
	return j.writes
}

// replay - повторить записи хуков поверх свежего индекса в порядке поступления.
func (c *PartitionedCursorCache[V]) replay(ctx context.Context, p domain.Partition, writes []hookWrite) error {
	for _, w := range writes {
		var err error
		if w.remove {
			err = c.index.Remove(ctx, p, w.id)
		} else {
			err = c.index.Upsert(ctx, p, w.id, w.score)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// scheduleRebuild - асинхронное перестроение индекса; одновременные запросы
// к одной партиции запускают одно перестроение.
func (c *PartitionedCursorCache[V]) scheduleRebuild(ctx context.Context, p domain.Partition) {
	bg := context.WithoutCancel(ctx)
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		_, _, _ = c.rebuilds.Do(p.String(), func() (any, error) {
			timeout := c.cfg.RebuildTimeout
			if timeout <= 0 {
				timeout = 30 * time.Second
			}
			rctx, cancel := context.WithTimeout(bg, timeout)
			defer cancel()
			if err := c.Rebuild(rctx, p); err != nil {
				c.log.Warnf(rctx, "async index rebuild failed partition=%s err=%v", p, err)
				return nil, err
			}
			return nil, nil
		})
	}()
}
