// Пакет jitter - случайный разброс TTL, чтобы записи кэша не истекали одновременно.
package jitter

import (
	"math/rand"
	"sync"
	"time"
)

// Source - потокобезопасный источник разброса (rand.Rand сам по себе не потокобезопасен).
type Source struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New - источник с заданным seed (для воспроизводимых тестов).
func New(seed int64) *Source {
	return &Source{rnd: rand.New(rand.NewSource(seed))}
}

// NewRandom - источник с seed от текущего времени.
func NewRandom() *Source { return New(time.Now().UnixNano()) }

// TTL - base + равномерно распределённое значение из [0, spread).
// При spread <= 0 возвращает base.
func (s *Source) TTL(base, spread time.Duration) time.Duration {
	if spread <= 0 {
		return base
	}
	s.mu.Lock()
	n := s.rnd.Int63n(int64(spread))
	s.mu.Unlock()
	return base + time.Duration(n)
}

// Equal - половина d фиксирована, вторая половина случайна: [d/2, d].
// Используется для пауз между повторами, чтобы консьюмеры не ретраили синхронно.
func (s *Source) Equal(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	s.mu.Lock()
	n := s.rnd.Int63n(int64(d-half) + 1)
	s.mu.Unlock()
	return half + time.Duration(n)
}
