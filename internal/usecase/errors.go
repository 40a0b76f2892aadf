package usecase

import (
	"errors"
	"fmt"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
)

// storeErr - ошибка хранилища, распознаваемая через errors.Is(err, domain.ErrStoreUnavailable).
// Ошибки валидации (ErrInvalidPartition, ErrNotFound) пропускаются как есть.
func storeErr(op string, err error) error {
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}

func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrInvalidPartition) || errors.Is(err, domain.ErrNotFound)
}

// joinHookErrors - ошибки кэша в хуках мутаций. Хуки идемпотентны, поэтому
// вызывающий (консьюмер событий) может просто повторить их.
func joinHookErrors(op string, id int64, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s id=%d: %w", op, id, errors.Join(errs...))
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
