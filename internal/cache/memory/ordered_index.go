package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/pkg/metrics"
)

type partitionIndex struct {
	scores    map[int64]int64
	expiresAt time.Time
}

// OrderedIndex - in-process упорядоченный индекс. Партиция присутствует
// только после Rebuild и до истечения её TTL.
type OrderedIndex struct {
	mu    sync.Mutex
	parts map[domain.Partition]*partitionIndex
	now   func() time.Time
}

var _ ports.OrderedIndex = (*OrderedIndex)(nil)

func NewOrderedIndex() *OrderedIndex {
	return &OrderedIndex{parts: make(map[domain.Partition]*partitionIndex), now: time.Now}
}

func (x *OrderedIndex) Lookup(_ context.Context, p domain.Partition, cursor int64, limit int) ([]domain.IndexEntry, bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	part := x.built(p)
	if part == nil {
		metrics.CacheOps.WithLabelValues("index", "miss").Inc()
		return nil, false, nil
	}
	metrics.CacheOps.WithLabelValues("index", "hit").Inc()

	out := make([]domain.IndexEntry, 0, min(limit, len(part.scores)))
	for id, score := range part.scores {
		if score < cursor {
			out = append(out, domain.IndexEntry{ID: id, Score: score})
		}
	}
	slices.SortFunc(out, func(a, b domain.IndexEntry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, true, nil
}

// Upsert для непостроенной партиции ничего не делает: следующее чтение её перестроит.
func (x *OrderedIndex) Upsert(_ context.Context, p domain.Partition, id, score int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if part := x.built(p); part != nil {
		part.scores[id] = score
	}
	return nil
}

func (x *OrderedIndex) Remove(_ context.Context, p domain.Partition, id int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if part := x.built(p); part != nil {
		delete(part.scores, id)
	}
	return nil
}

func (x *OrderedIndex) Rebuild(_ context.Context, p domain.Partition, entries []domain.IndexEntry, ttl time.Duration) error {
	scores := make(map[int64]int64, len(entries))
	for _, e := range entries {
		scores[e.ID] = e.Score
	}

	x.mu.Lock()
	x.parts[p] = &partitionIndex{scores: scores, expiresAt: x.now().Add(ttl)}
	x.mu.Unlock()
	return nil
}

func (x *OrderedIndex) Exists(_ context.Context, p domain.Partition) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.built(p) != nil, nil
}

func (x *OrderedIndex) Drop(_ context.Context, p domain.Partition) error {
	x.mu.Lock()
	delete(x.parts, p)
	x.mu.Unlock()
	return nil
}

// built - построенный и не истёкший индекс партиции; истёкший удаляется. Вызывать под mu.
func (x *OrderedIndex) built(p domain.Partition) *partitionIndex {
	part, ok := x.parts[p]
	if !ok {
		return nil
	}
	if x.now().After(part.expiresAt) {
		delete(x.parts, p)
		metrics.CacheOps.WithLabelValues("index", "expired").Inc()
		return nil
	}
	return part
}
