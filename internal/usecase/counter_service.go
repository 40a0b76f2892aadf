package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/pkg/metrics"
)

// CounterConfig - TTL счётчиков в кэше.
type CounterConfig struct {
	TTL    time.Duration // продлевается на каждом инкременте
	Jitter time.Duration // разброс для значений, дочитанных из хранилища
}

func DefaultCounterConfig() CounterConfig {
	return CounterConfig{TTL: 60 * time.Minute, Jitter: 5 * time.Minute}
}

// CounterService - счётчик избранного: быстрые инкременты в кэше,
// отложенная запись в хранилище через PendingSet.
//
// Инвариант: значение в кэше + bypass = значение в хранилище + сумма ещё не записанных дельт.
// bypass - дельты, записанные в хранилище мимо недоступного кэша; при первой
// возможности они переносятся в кэш (foldBypass).
type CounterService struct {
	cache   ports.CounterCache
	pending ports.PendingSet
	store   ports.CounterStore
	log     ports.Logger
	cfg     CounterConfig

	bypass bypassLedger
}

// bypassLedger - дельты по id, уже записанные в хранилище, но не попавшие в кэш.
type bypassLedger struct {
	mu     sync.Mutex
	deltas map[int64]int64
}

func (l *bypassLedger) add(id, delta int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deltas == nil {
		l.deltas = make(map[int64]int64)
	}
	if l.deltas[id] += delta; l.deltas[id] == 0 {
		delete(l.deltas, id)
	}
}

func (l *bypassLedger) get(id int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deltas[id]
}

// take - забрать дельту id целиком.
func (l *bypassLedger) take(id int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.deltas[id]
	delete(l.deltas, id)
	return d
}

func (l *bypassLedger) ids() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int64, 0, len(l.deltas))
	for id := range l.deltas {
		out = append(out, id)
	}
	return out
}

// NewCounterService - DI-конструктор.
func NewCounterService(
	cache ports.CounterCache,
	pending ports.PendingSet,
	store ports.CounterStore,
	log ports.Logger,
	cfg CounterConfig,
) *CounterService {
	return &CounterService{cache: cache, pending: pending, store: store, log: log, cfg: cfg}
}

// Increment - прибавить delta (+1 добавление в избранное, -1 удаление) и вернуть новое значение.
//
// Значение в кэше создаётся только из хранилища (Seed), никогда из нуля.
// Если кэш недоступен, дельта сразу пишется в хранилище.
func (s *CounterService) Increment(ctx context.Context, id, delta int64) (int64, error) {
	v, ok, err := s.cache.IncrementExisting(ctx, id, delta, s.cfg.TTL)
	if err != nil {
		s.log.Warnf(ctx, "counter cache increment failed id=%d err=%v, writing to store", id, err)
		return s.applyDirect(ctx, id, delta)
	}

	if !ok {
		// значения в кэше нет: хранилище уже содержит всё, что писалось мимо кэша
		s.bypass.take(id)
		durable, err := s.readDurable(ctx, id)
		if err != nil {
			return 0, err
		}
		if _, err := s.cache.Seed(ctx, id, durable, s.cfg.TTL); err != nil {
			s.log.Warnf(ctx, "counter seed failed id=%d err=%v, writing to store", id, err)
			return s.applyDirect(ctx, id, delta)
		}
		v, ok, err = s.cache.IncrementExisting(ctx, id, delta, s.cfg.TTL)
		if err != nil || !ok {
			// вытеснено между Seed и инкрементом
			s.log.Warnf(ctx, "counter increment after seed failed id=%d ok=%t err=%v, writing to store", id, ok, err)
			return s.applyDirect(ctx, id, delta)
		}
	}

	folded, err := s.foldBypass(ctx, id)
	if err != nil {
		s.log.Warnf(ctx, "counter bypass fold failed id=%d err=%v", id, err)
	}
	v += folded

	if err := s.pending.Add(ctx, id); err != nil {
		// без отметки дельта не дойдёт до хранилища - согласуем сразу
		s.log.Warnf(ctx, "pending add failed id=%d err=%v, syncing now", id, err)
		if _, syncErr := s.Reconcile(ctx, id); syncErr != nil {
			s.log.Errorf(ctx, "immediate counter sync failed id=%d err=%v", id, syncErr)
		}
	}
	return v, nil
}

// Get - текущее значение: из кэша, при промахе из хранилища (с записью в кэш).
func (s *CounterService) Get(ctx context.Context, id int64) (int64, error) {
	got, err := s.BatchGet(ctx, []int64{id})
	if err != nil {
		return 0, err
	}
	v, ok := got[id]
	if !ok {
		return 0, fmt.Errorf("goods %d: %w", id, domain.ErrNotFound)
	}
	return v, nil
}

// BatchGet - значения для нескольких id; промахи дочитываются из хранилища
// и записываются в кэш только если там всё ещё пусто.
func (s *CounterService) BatchGet(ctx context.Context, ids []int64) (map[int64]int64, error) {
	if len(ids) == 0 {
		return map[int64]int64{}, nil
	}
	out, err := s.cache.BatchGet(ctx, ids)
	cacheOK := err == nil
	if !cacheOK {
		s.log.Warnf(ctx, "counter cache batch get failed ids=%d err=%v", len(ids), err)
		out = nil
	}
	if out == nil {
		out = make(map[int64]int64, len(ids))
	}

	var misses []int64
	for _, id := range ids {
		if _, ok := out[id]; ok {
			out[id] += s.bypass.get(id)
			continue
		}
		if cacheOK {
			// будет засеяно из хранилища, где эта дельта уже есть
			s.bypass.take(id)
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	durable, err := s.store.ReadCounters(ctx, misses)
	if err != nil {
		return nil, storeErr("read counters", err)
	}
	if err := s.cache.BatchSeed(ctx, durable, s.cfg.TTL, s.cfg.Jitter); err != nil {
		s.log.Warnf(ctx, "counter cache seed failed ids=%d err=%v", len(durable), err)
	}
	for id, v := range durable {
		out[id] = v
	}
	return out, nil
}

// OverlayCards - подставить живые счётчики в карточки страницы.
func (s *CounterService) OverlayCards(ctx context.Context, cards []domain.GoodsCard) error {
	ids := make([]int64, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	values, err := s.BatchGet(ctx, ids)
	if err != nil {
		return err
	}
	for i := range cards {
		if v, ok := values[cards[i].ID]; ok {
			cards[i].CollectNum = max(v, 0)
		}
	}
	return nil
}

// Reconcile - записать в хранилище накопленную в кэше дельту одного счётчика.
//
// Запись условная (compare-and-add от прочитанного значения хранилища), поэтому
// одновременные согласования одного id не применяют дельту дважды.
// id убирается из PendingSet, только если после записи не пришло новых дельт.
func (s *CounterService) Reconcile(ctx context.Context, id int64) (domain.SyncOutcome, error) {
	if _, err := s.foldBypass(ctx, id); err != nil {
		return "", fmt.Errorf("fold bypassed delta id=%d: %w", id, err)
	}

	// хранилище читается раньше кэша: если между чтениями запись успела
	// согласовать новые дельты, compare-and-add не пройдёт
	durables, err := s.store.ReadCounters(ctx, []int64{id})
	if err != nil {
		return "", storeErr("read counter", err)
	}

	cached, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("read cached counter id=%d: %w", id, err)
	}
	if !ok {
		// значение вытеснено: согласовывать нечего
		s.log.Warnf(ctx, "pending counter id=%d has no cached value, dropped", id)
		return domain.SyncDropped, s.pending.Remove(ctx, id)
	}

	durable, found := durables[id]
	if !found {
		s.log.Warnf(ctx, "pending counter id=%d: goods not in store, dropped", id)
		if err := s.cache.Delete(ctx, id); err != nil {
			s.log.Warnf(ctx, "counter cache delete failed id=%d err=%v", id, err)
		}
		return domain.SyncDropped, s.pending.Remove(ctx, id)
	}

	outcome := domain.SyncUnchanged
	if delta := cached - durable; delta != 0 {
		applied, err := s.store.CompareAndAddCounter(ctx, id, durable, delta)
		if err != nil {
			return "", storeErr("apply counter delta", err)
		}
		if !applied {
			return domain.SyncConflict, nil
		}
		outcome = domain.SyncApplied
	}

	if _, err := s.pending.Settle(ctx, id, cached); err != nil {
		return outcome, fmt.Errorf("settle pending id=%d: %w", id, err)
	}
	return outcome, nil
}

func (s *CounterService) readDurable(ctx context.Context, id int64) (int64, error) {
	durables, err := s.store.ReadCounters(ctx, []int64{id})
	if err != nil {
		return 0, storeErr("read counter", err)
	}
	v, ok := durables[id]
	if !ok {
		return 0, fmt.Errorf("goods %d: %w", id, domain.ErrNotFound)
	}
	return v, nil
}

// BypassedIDs - id с дельтами, записанными мимо кэша и ещё не перенесёнными в него.
func (s *CounterService) BypassedIDs() []int64 { return s.bypass.ids() }

// applyDirect - путь деградации: дельта сразу в хранилище.
//
// Значение в кэше не трогается: оно может содержать ещё не записанные дельты.
// Записанная мимо кэша дельта запоминается и позже переносится в кэш (foldBypass),
// чтобы согласование не вычло её из хранилища.
// Возвращает значение хранилища, без учёта несогласованных дельт кэша.
func (s *CounterService) applyDirect(ctx context.Context, id, delta int64) (int64, error) {
	metrics.CacheOps.WithLabelValues("counters", "bypass").Inc()
	v, err := s.store.AddCounter(ctx, id, delta)
	if err != nil {
		return 0, storeErr("add counter", err)
	}
	s.bypass.add(id, delta)
	if err := s.pending.Add(ctx, id); err != nil {
		s.log.Warnf(ctx, "pending add after direct write failed id=%d err=%v", id, err)
	}
	return v, nil
}

// foldBypass - перенести в кэш дельту, записанную мимо него. Возвращает перенесённое.
// Если значения в кэше нет, дельта просто забывается: хранилище её уже содержит.
func (s *CounterService) foldBypass(ctx context.Context, id int64) (int64, error) {
	d := s.bypass.take(id)
	if d == 0 {
		return 0, nil
	}
	_, ok, err := s.cache.IncrementExisting(ctx, id, d, s.cfg.TTL)
	if err != nil {
		s.bypass.add(id, d)
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	// кэш снова впереди хранилища: нужен проход согласования
	if err := s.pending.Add(ctx, id); err != nil {
		s.log.Warnf(ctx, "pending add after bypass fold failed id=%d err=%v", id, err)
	}
	return d, nil
}
