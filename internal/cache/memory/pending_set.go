package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Gunvolt24/goodsfeed/internal/ports"
)

// PendingSet - in-process множество "грязных" id. Settle сверяется с counters.
type PendingSet struct {
	mu        sync.Mutex
	ids       map[int64]struct{}
	ttl       time.Duration
	expiresAt time.Time
	counters  *CounterCache
	now       func() time.Time
}

var _ ports.PendingSet = (*PendingSet)(nil)

// NewPendingSet - ttl продлевается на каждом Add, как EXPIRE на ключе множества.
func NewPendingSet(counters *CounterCache, ttl time.Duration) *PendingSet {
	return &PendingSet{ids: make(map[int64]struct{}), ttl: ttl, counters: counters, now: time.Now}
}

func (s *PendingSet) Add(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expire()
	s.ids[id] = struct{}{}
	if s.counters != nil {
		s.counters.pin(id)
	}
	if s.ttl > 0 {
		s.expiresAt = s.now().Add(s.ttl)
	}
	return nil
}

func (s *PendingSet) Members(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expire()
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func (s *PendingSet) Settle(_ context.Context, id, observed int64) (bool, error) {
	// Порядок блокировок: сначала множество, затем счётчики. Обратного порядка нигде нет.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counters != nil {
		s.counters.mu.Lock()
		current, ok := s.counters.load(id)
		s.counters.mu.Unlock()
		if ok && current != observed {
			return false, nil
		}
	}
	s.drop(id)
	return true, nil
}

func (s *PendingSet) Remove(_ context.Context, id int64) error {
	s.mu.Lock()
	s.drop(id)
	s.mu.Unlock()
	return nil
}

func (s *PendingSet) expire() {
	if !s.expiresAt.IsZero() && s.now().After(s.expiresAt) {
		s.ids = make(map[int64]struct{})
		s.expiresAt = time.Time{}
		if s.counters != nil {
			s.counters.unpinAll()
		}
	}
}

// drop - убрать id и снять закрепление счётчика. Вызывать под mu.
func (s *PendingSet) drop(id int64) {
	delete(s.ids, id)
	if s.counters != nil {
		s.counters.unpin(id)
	}
}
