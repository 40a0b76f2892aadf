package usecase

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/pkg/metrics"
	"github.com/Gunvolt24/goodsfeed/pkg/telemetry"
)

// ReconcilerState - состояние согласователя.
type ReconcilerState int32

const (
	StateIdle     ReconcilerState = iota // замка нет
	StateLocked                          // замок взят, pending ещё не прочитан
	StateDraining                        // идёт запись дельт
)

func (s ReconcilerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLocked:
		return "locked"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ReconcilerConfig - параметры замка прохода.
type ReconcilerConfig struct {
	LockName string
	LockTTL  time.Duration // аренда; ограничивает и длительность прохода
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{LockName: "goods:collect:sync:lock", LockTTL: 5 * time.Minute}
}

// ReconcilerOption - необязательные параметры Reconciler.
type ReconcilerOption func(*Reconciler)

// WithDrainObserver - вызывается при входе (true) и выходе (false) из StateDraining.
func WithDrainObserver(fn func(draining bool)) ReconcilerOption {
	return func(r *Reconciler) { r.onDrain = fn }
}

// Reconciler - периодическая запись накопленных дельт счётчиков в хранилище.
// Между экземплярами сервиса проход взаимно исключён распределённым замком.
type Reconciler struct {
	counters *CounterService
	pending  ports.PendingSet
	locker   ports.Locker
	log      ports.Logger
	cfg      ReconcilerConfig

	state   atomic.Int32
	onDrain func(bool)
}

// NewReconciler - DI-конструктор.
func NewReconciler(
	counters *CounterService,
	pending ports.PendingSet,
	locker ports.Locker,
	log ports.Logger,
	cfg ReconcilerConfig,
	opts ...ReconcilerOption,
) *Reconciler {
	r := &Reconciler{counters: counters, pending: pending, locker: locker, log: log, cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State - текущее состояние.
func (r *Reconciler) State() ReconcilerState { return ReconcilerState(r.state.Load()) }

// MarkDirty - отметить id как требующий согласования.
func (r *Reconciler) MarkDirty(ctx context.Context, id int64) error {
	return r.pending.Add(ctx, id)
}

// ForceSync - согласовать один id немедленно, без замка прохода.
// Безопасно параллельно с RunScheduledPass: запись в хранилище условная.
func (r *Reconciler) ForceSync(ctx context.Context, id int64) (domain.SyncOutcome, error) {
	outcome, err := r.counters.Reconcile(ctx, id)
	if err != nil {
		metrics.ReconcileItems.WithLabelValues("failed").Inc()
		r.log.Errorf(ctx, "force sync failed id=%d err=%v", id, err)
		return outcome, err
	}
	metrics.ReconcileItems.WithLabelValues(string(outcome)).Inc()
	r.log.Infof(ctx, "force sync id=%d outcome=%s", id, outcome)
	return outcome, nil
}

// RunScheduledPass - один проход: взять замок, прочитать pending, согласовать каждый id.
//
// Если замок занят, проход пропускается (Skipped=true, без ошибки).
// Ошибка по одному id не прерывает проход: id остаётся в pending до следующего.
// После взятия замка проход не прерывается отменой ctx, его ограничивает аренда.
func (r *Reconciler) RunScheduledPass(ctx context.Context) (domain.PassReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "collect.reconcile_pass", attribute.String("collect.lock", r.cfg.LockName))
	report, err := r.runPass(ctx)
	span.SetAttributes(
		attribute.Bool("collect.skipped", report.Skipped),
		attribute.Int("collect.pending", report.Pending),
		attribute.Int("collect.failed", report.Failed),
	)
	telemetry.End(span, err)
	return report, err
}

func (r *Reconciler) runPass(ctx context.Context) (domain.PassReport, error) {
	start := time.Now()
	var report domain.PassReport

	release, acquired, err := r.locker.TryLock(ctx, r.cfg.LockName, r.cfg.LockTTL)
	if err != nil {
		metrics.ReconcilePasses.WithLabelValues("error").Inc()
		return report, fmt.Errorf("acquire reconcile lock: %w", err)
	}
	if !acquired {
		metrics.ReconcilePasses.WithLabelValues("skipped").Inc()
		r.log.Infof(ctx, "reconcile pass skipped: lock %s is held", r.cfg.LockName)
		report.Skipped = true
		return report, nil
	}

	passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.LockTTL)
	defer cancel()

	r.setState(StateLocked)
	defer func() {
		relCtx, relCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer relCancel()
		if err := release(relCtx); err != nil {
			r.log.Warnf(ctx, "reconcile lock release failed err=%v", err)
		}
		r.setState(StateIdle)
	}()

	ids, err := r.pending.Members(passCtx)
	if err != nil {
		metrics.ReconcilePasses.WithLabelValues("error").Inc()
		return report, fmt.Errorf("read pending set: %w", err)
	}
	// дельты, записанные мимо кэша, могли не попасть в pending (кэш был недоступен)
	for _, id := range r.counters.BypassedIDs() {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	report.Pending = len(ids)

	r.setState(StateDraining)
	if r.onDrain != nil {
		r.onDrain(true)
		defer r.onDrain(false)
	}

	for _, id := range ids {
		if passCtx.Err() != nil {
			// аренда истекла: остальное - в следующем проходе
			r.log.Warnf(ctx, "reconcile pass stopped at lease end, left=%d", report.Pending-report.Processed())
			break
		}
		outcome, err := r.counters.Reconcile(passCtx, id)
		if err != nil {
			report.Failed++
			metrics.ReconcileItems.WithLabelValues("failed").Inc()
			r.log.Errorf(passCtx, "reconcile counter failed id=%d err=%v", id, err)
			continue
		}
		report.Add(outcome)
		metrics.ReconcileItems.WithLabelValues(string(outcome)).Inc()
	}

	report.Duration = time.Since(start)
	metrics.ReconcilePasses.WithLabelValues("done").Inc()
	r.log.Infof(ctx, "reconcile pass done pending=%d applied=%d unchanged=%d conflicts=%d dropped=%d failed=%d took=%s",
		report.Pending, report.Applied, report.Unchanged, report.Conflicts, report.Dropped, report.Failed, report.Duration)
	return report, nil
}

func (r *Reconciler) setState(s ReconcilerState) {
	r.state.Store(int32(s))
	metrics.ReconcilerState.Set(float64(s))
}
