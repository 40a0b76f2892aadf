package ports

import "context"

// MessageConsumer - источник событий товаров, избранного и пользователей.
// Run блокируется до отмены ctx; Close освобождает подключение к брокеру.
type MessageConsumer interface {
	Run(ctx context.Context) error
	Close() error
}
