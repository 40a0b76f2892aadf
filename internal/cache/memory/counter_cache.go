package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/pkg/jitter"
	"github.com/Gunvolt24/goodsfeed/pkg/metrics"
)

const counterCacheName = "counters"

type counterEntry struct {
	id        int64
	value     int64
	expiresAt time.Time
}

// CounterCache - in-process LRU кэш счётчиков избранного с TTL на запись.
//
// Id из PendingSet закреплены: вытеснение по размеру их пропускает, иначе
// пропали бы ещё не записанные дельты. Истечение TTL действует как в Redis.
type CounterCache struct {
	capacity int // <= 0 - без ограничения
	jitter   *jitter.Source

	mu     sync.Mutex
	ll     *list.List
	index  map[int64]*list.Element
	pinned map[int64]struct{}
	now    func() time.Time
}

var _ ports.CounterCache = (*CounterCache)(nil)

func NewCounterCache(capacity int, src *jitter.Source) *CounterCache {
	if src == nil {
		src = jitter.NewRandom()
	}
	return &CounterCache{
		capacity: capacity,
		jitter:   src,
		ll:       list.New(),
		index:    make(map[int64]*list.Element),
		pinned:   make(map[int64]struct{}),
		now:      time.Now,
	}
}

func (c *CounterCache) Get(_ context.Context, id int64) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.load(id)
	c.record(ok)
	return v, ok, nil
}

func (c *CounterCache) BatchGet(_ context.Context, ids []int64) (map[int64]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[int64]int64, len(ids))
	for _, id := range ids {
		v, ok := c.load(id)
		c.record(ok)
		if ok {
			out[id] = v
		}
	}
	return out, nil
}

func (c *CounterCache) IncrementExisting(_ context.Context, id, delta int64, ttl time.Duration) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.load(id)
	if !ok {
		return 0, false, nil
	}
	v += delta
	c.put(id, v, c.now().Add(ttl))
	return v, true, nil
}

func (c *CounterCache) Seed(_ context.Context, id, value int64, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.load(id); ok {
		return false, nil
	}
	c.pruneExpiredFromBack(c.now())
	c.put(id, value, c.now().Add(ttl))
	return true, nil
}

func (c *CounterCache) BatchSeed(_ context.Context, values map[int64]int64, baseTTL, spread time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneExpiredFromBack(now)
	for id, v := range values {
		if _, ok := c.load(id); ok {
			continue
		}
		c.put(id, v, now.Add(c.jitter.TTL(baseTTL, spread)))
	}
	return nil
}

func (c *CounterCache) Delete(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[id]; ok {
		c.removeElement(elem)
	}
	return nil
}

// Len - число записей, включая ещё не вычищенные истёкшие.
func (c *CounterCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// ------вспомогательные функции------

// pin/unpin/unpinAll вызывает PendingSet; порядок блокировок: множество, затем счётчики.
func (c *CounterCache) pin(id int64) {
	c.mu.Lock()
	c.pinned[id] = struct{}{}
	c.mu.Unlock()
}

func (c *CounterCache) unpin(id int64) {
	c.mu.Lock()
	delete(c.pinned, id)
	c.mu.Unlock()
}

func (c *CounterCache) unpinAll() {
	c.mu.Lock()
	c.pinned = make(map[int64]struct{})
	c.mu.Unlock()
}

// load - значение, если оно есть и не истекло; попадание поднимает запись в LRU. Вызывать под mu.
func (c *CounterCache) load(id int64) (int64, bool) {
	elem, ok := c.index[id]
	if !ok {
		return 0, false
	}
	ent := elem.Value.(*counterEntry)
	if c.now().After(ent.expiresAt) {
		c.removeElement(elem)
		metrics.CacheOps.WithLabelValues(counterCacheName, "expired").Inc()
		return 0, false
	}
	c.ll.MoveToFront(elem)
	return ent.value, true
}

func (c *CounterCache) put(id, value int64, expiresAt time.Time) {
	if elem, ok := c.index[id]; ok {
		ent := elem.Value.(*counterEntry)
		ent.value, ent.expiresAt = value, expiresAt
		c.ll.MoveToFront(elem)
		return
	}
	c.index[id] = c.ll.PushFront(&counterEntry{id: id, value: value, expiresAt: expiresAt})
	if c.capacity > 0 && c.ll.Len() > c.capacity {
		c.evictLRU()
	}
	metrics.CacheSize.WithLabelValues(counterCacheName).Set(float64(len(c.index)))
}

// evictLRU - удаляет самую старую незакреплённую запись. Если закреплены все,
// кэш временно превышает ёмкость.
func (c *CounterCache) evictLRU() {
	for elem := c.ll.Back(); elem != nil; elem = elem.Prev() {
		if _, ok := c.pinned[elem.Value.(*counterEntry).id]; ok {
			continue
		}
		c.removeElement(elem)
		metrics.CacheOps.WithLabelValues(counterCacheName, "evicted").Inc()
		return
	}
}

// pruneExpiredFromBack - удаляет истёкшие записи из хвоста до первой актуальной.
func (c *CounterCache) pruneExpiredFromBack(now time.Time) {
	for {
		back := c.ll.Back()
		if back == nil || !now.After(back.Value.(*counterEntry).expiresAt) {
			return
		}
		c.removeElement(back)
		metrics.CacheOps.WithLabelValues(counterCacheName, "expired").Inc()
	}
}

func (c *CounterCache) removeElement(elem *list.Element) {
	delete(c.index, elem.Value.(*counterEntry).id)
	c.ll.Remove(elem)
}

func (c *CounterCache) record(hit bool) {
	if hit {
		metrics.CacheOps.WithLabelValues(counterCacheName, "hit").Inc()
		return
	}
	metrics.CacheOps.WithLabelValues(counterCacheName, "miss").Inc()
}
