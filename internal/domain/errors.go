package domain

import "errors"

var (
	// ErrStoreUnavailable - хранилище (источник истины) недоступно; ошибка повторяемая.
	ErrStoreUnavailable = errors.New("backing store unavailable")

	// ErrInvalidPartition - неизвестный вид партиции или некорректный scope-id.
	ErrInvalidPartition = errors.New("invalid partition")

	// ErrNotFound - запись не найдена в хранилище.
	ErrNotFound = errors.New("not found")
)
