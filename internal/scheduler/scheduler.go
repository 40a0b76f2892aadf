package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"

	"github.com/Gunvolt24/goodsfeed/internal/ports"
)

// Job - периодическая задача.
type Job func(ctx context.Context) error

// NextTickFunc - время следующего срабатывания cron-выражения после after.
type NextTickFunc func(expr string, after time.Time) (time.Time, error)

func gronxNextTick(expr string, after time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, after, false)
}

// Option - необязательные параметры Scheduler.
type Option func(*Scheduler)

// WithNextTick - подменить расчёт следующего срабатывания (для тестов).
func WithNextTick(fn NextTickFunc) Option {
	return func(s *Scheduler) { s.next = fn }
}

// WithRetryDelay - пауза после ошибки расчёта расписания.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.retryDelay = d }
}

// Scheduler - запускает Job по cron-расписанию.
// Если предыдущий запуск ещё идёт, очередное срабатывание пропускается.
type Scheduler struct {
	name       string
	expr       string
	job        Job
	log        ports.Logger
	next       NextTickFunc
	retryDelay time.Duration

	running atomic.Bool
	wg      sync.WaitGroup
}

// New - проверяет cron-выражение и собирает планировщик.
func New(name, expr string, job Job, log ports.Logger, opts ...Option) (*Scheduler, error) {
	if !gronx.IsValid(expr) {
		return nil, fmt.Errorf("scheduler %s: invalid cron expression %q", name, expr)
	}
	s := &Scheduler{
		name:       name,
		expr:       expr,
		job:        job,
		log:        log,
		next:       gronxNextTick,
		retryDelay: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run - цикл до отмены ctx. Перед выходом дожидается текущего запуска.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Infof(ctx, "scheduler %s started cron=%q", s.name, s.expr)
	defer func() {
		s.wg.Wait()
		s.log.Infof(ctx, "scheduler %s stopped", s.name)
	}()

	for {
		next, err := s.next(s.expr, time.Now())
		if err != nil {
			s.log.Errorf(ctx, "scheduler %s next tick failed err=%v", s.name, err)
			if !sleep(ctx, s.retryDelay) {
				return nil
			}
			continue
		}
		if !sleep(ctx, time.Until(next)) {
			return nil
		}
		s.Trigger(ctx)
	}
}

// Trigger - запустить задачу в фоне, если она не выполняется. false - запуск пропущен.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warnf(ctx, "scheduler %s: previous run still in progress, tick skipped", s.name)
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		if err := s.job(ctx); err != nil {
			s.log.Errorf(ctx, "scheduler %s run failed err=%v", s.name, err)
		}
	}()
	return true
}

// Running - выполняется ли задача сейчас.
func (s *Scheduler) Running() bool { return s.running.Load() }

// sleep - false, если ctx отменён раньше.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
