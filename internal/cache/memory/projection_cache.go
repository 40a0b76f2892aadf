package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/pkg/jitter"
	"github.com/Gunvolt24/goodsfeed/pkg/metrics"
)

type entry[V any] struct {
	id        int64
	item      V
	expiresAt time.Time // нулевое значение - без TTL
}

// ProjectionCache - in-process LRU кэш карточек с TTL на запись.
// Используется как бэкенд по умолчанию для одного экземпляра и в тестах.
type ProjectionCache[V domain.Projection] struct {
	name     string
	capacity int
	jitter   *jitter.Source

	ll    *list.List
	index map[int64]*list.Element

	mu  sync.Mutex
	now func() time.Time
}

var (
	_ ports.ProjectionCache[domain.GoodsCard] = (*ProjectionCache[domain.GoodsCard])(nil)
	_ ports.ProjectionCache[domain.UserCard]  = (*ProjectionCache[domain.UserCard])(nil)
)

// NewProjectionCache - name попадает в метку метрик (cards, users).
func NewProjectionCache[V domain.Projection](name string, capacity int, src *jitter.Source) *ProjectionCache[V] {
	if capacity <= 0 {
		capacity = 1
	}
	if src == nil {
		src = jitter.NewRandom()
	}
	return &ProjectionCache[V]{
		name:     name,
		capacity: capacity,
		jitter:   src,
		ll:       list.New(),
		index:    make(map[int64]*list.Element),
		now:      time.Now,
	}
}

func (c *ProjectionCache[V]) BatchGet(_ context.Context, ids []int64) (map[int64]V, error) {
	now := c.now()
	out := make(map[int64]V, len(ids))

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		elem, ok := c.index[id]
		if !ok {
			metrics.CacheOps.WithLabelValues(c.name, "miss").Inc()
			continue
		}
		ent := elem.Value.(*entry[V])
		if isExpired(ent.expiresAt, now) {
			metrics.CacheOps.WithLabelValues(c.name, "expired").Inc()
			c.removeElement(elem)
			continue
		}
		c.ll.MoveToFront(elem)
		metrics.CacheOps.WithLabelValues(c.name, "hit").Inc()
		out[id] = cloneItem(ent.item)
	}
	metrics.CacheSize.WithLabelValues(c.name).Set(float64(len(c.index)))
	return out, nil
}

func (c *ProjectionCache[V]) BatchPut(_ context.Context, items []V, baseTTL, spread time.Duration) error {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneExpiredFromBack(now)
	for _, item := range items {
		c.put(item, c.expiryFrom(now, baseTTL, spread))
	}
	metrics.CacheSize.WithLabelValues(c.name).Set(float64(len(c.index)))
	return nil
}

func (c *ProjectionCache[V]) Invalidate(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[id]; ok {
		c.removeElement(elem)
		metrics.CacheSize.WithLabelValues(c.name).Set(float64(len(c.index)))
	}
	return nil
}

// Len - текущее число записей, включая ещё не вычищенные истёкшие.
func (c *ProjectionCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// ------вспомогательные функции------

func (c *ProjectionCache[V]) put(item V, expiresAt time.Time) {
	id := item.ProjectionID()
	if elem, ok := c.index[id]; ok {
		ent := elem.Value.(*entry[V])
		ent.item = cloneItem(item)
		ent.expiresAt = expiresAt
		c.ll.MoveToFront(elem)
		return
	}

	c.index[id] = c.ll.PushFront(&entry[V]{id: id, item: cloneItem(item), expiresAt: expiresAt})
	if c.ll.Len() > c.capacity {
		c.evictLRU()
	}
}

// evictLRU - удаляет наименее используемый элемент.
func (c *ProjectionCache[V]) evictLRU() {
	if back := c.ll.Back(); back != nil {
		c.removeElement(back)
		metrics.CacheOps.WithLabelValues(c.name, "evicted").Inc()
	}
}

func (c *ProjectionCache[V]) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry[V])
	delete(c.index, ent.id)
	c.ll.Remove(elem)
}

func (c *ProjectionCache[V]) expiryFrom(now time.Time, baseTTL, spread time.Duration) time.Time {
	if baseTTL <= 0 {
		return time.Time{}
	}
	return now.Add(c.jitter.TTL(baseTTL, spread))
}

// pruneExpiredFromBack - удаляет элементы с истекшим TTL из хвоста до первого актуального.
func (c *ProjectionCache[V]) pruneExpiredFromBack(now time.Time) {
	for {
		back := c.ll.Back()
		if back == nil {
			return
		}
		if !isExpired(back.Value.(*entry[V]).expiresAt, now) {
			return
		}
		c.removeElement(back)
		metrics.CacheOps.WithLabelValues(c.name, "expired").Inc()
	}
}

func isExpired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && now.After(expiresAt)
}

// cloneItem - копия проекции, чтобы изменения снаружи не попадали в кэш.
func cloneItem[V any](v V) V {
	if c, ok := any(v).(interface{ Clone() V }); ok {
		return c.Clone()
	}
	return v
}
