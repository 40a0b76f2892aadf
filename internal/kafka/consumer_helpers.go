package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/events"
	"github.com/Gunvolt24/goodsfeed/pkg/metrics"
)

// permanent - повтор не поможет: событие не разобрать или сущности уже нет в хранилище.
func permanent(err error) bool {
	return errors.Is(err, events.ErrInvalidEvent) || errors.Is(err, domain.ErrNotFound)
}

// handleOnce - одна попытка применения; true, если оффсет можно коммитить.
func (c *Consumer) handleOnce(ctx context.Context, topic string, msg *kafka.Message, attempt int) bool {
	ctxTimeout, cancel := context.WithTimeout(ctx, c.processTimeout)
	err := c.handler.HandleMessage(ctxTimeout, msg.Value)
	cancel()

	switch {
	case err == nil:
		metrics.KafkaMessagesProcessed.WithLabelValues(topic).Inc()
		if attempt > 1 {
			c.log.Infof(ctx, "message offset=%d key=%s applied after %d attempts", msg.Offset, msg.Key, attempt)
		}
		return true
	case permanent(err):
		metrics.KafkaMessagesSkipped.WithLabelValues(topic).Inc()
		c.log.Warnf(ctx, "skip message offset=%d key=%s: %v", msg.Offset, msg.Key, err)
		return true
	default:
		// Redis/БД/таймаут
		metrics.KafkaMessagesFailed.WithLabelValues(topic).Inc()
		c.log.Warnf(ctx, "process failed offset=%d key=%s attempt=%d: %v (will retry)", msg.Offset, msg.Key, attempt, err)
		return false
	}
}

// commitSafely - ошибка коммита только логируется: сообщение придёт повторно, события идемпотентны по индексам.
func (c *Consumer) commitSafely(ctx context.Context, msg *kafka.Message) {
	if commitErr := c.reader.CommitMessages(ctx, *msg); commitErr != nil {
		c.log.Warnf(ctx, "commit failed offset=%d: %v", msg.Offset, commitErr)
	}
}

// sleepCtx ждёт d или отмену контекста; false - контекст отменён.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
