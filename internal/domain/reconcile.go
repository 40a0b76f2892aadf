package domain

import "time"

// SyncOutcome - результат согласования одного счётчика.
type SyncOutcome string

const (
	SyncApplied   SyncOutcome = "applied"   // дельта записана в хранилище
	SyncUnchanged SyncOutcome = "unchanged" // кэш и хранилище совпадали
	SyncConflict  SyncOutcome = "conflict"  // хранилище изменилось между чтением и записью; id остаётся в pending
	SyncDropped   SyncOutcome = "dropped"   // нечего согласовывать (нет значения в кэше или товара в хранилище)
)

// PassReport - итог одного прохода согласования.
type PassReport struct {
	Skipped   bool          `json:"skipped"` // замок занят другим экземпляром
	Pending   int           `json:"pending"`
	Applied   int           `json:"applied"`
	Unchanged int           `json:"unchanged"`
	Conflicts int           `json:"conflicts"`
	Dropped   int           `json:"dropped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Add - учесть результат по одному id.
func (r *PassReport) Add(outcome SyncOutcome) {
	switch outcome {
	case SyncApplied:
		r.Applied++
	case SyncUnchanged:
		r.Unchanged++
	case SyncConflict:
		r.Conflicts++
	case SyncDropped:
		r.Dropped++
	}
}

// Processed - сколько id обработано (включая ошибки).
func (r PassReport) Processed() int {
	return r.Applied + r.Unchanged + r.Conflicts + r.Dropped + r.Failed
}
