package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/pkg/ctxmeta"
	"github.com/Gunvolt24/goodsfeed/pkg/jitter"
	"github.com/Gunvolt24/goodsfeed/pkg/metrics"
)

//go:generate mockgen -source=consumer.go -destination=mocks/mock_consumer.go -package=mocks

// Проверка, что Consumer удовлетворяет интерфейсу верхнего уровня (порт приложения).
var _ ports.MessageConsumer = (*Consumer)(nil)

// reader - минимальный контракт над источником (kafka.Reader),
// чтобы легко подменять его моками в тестах.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Config() kafka.ReaderConfig
	Close() error
}

// messageHandler - разбор события и применение его к индексам и счётчикам (events.Handler).
// Для неразбираемых сообщений возвращает events.ErrInvalidEvent.
type messageHandler interface {
	HandleMessage(ctx context.Context, raw []byte) error
}

// Consumer - читает события товаров, избранного и пользователей и применяет их по одному.
// Сообщение с временной ошибкой повторяется на месте: следующее не читается, пока
// текущее не применено, иначе счётчик избранного потерял бы инкремент.
type Consumer struct {
	reader         reader
	handler        messageHandler
	log            ports.Logger
	processTimeout time.Duration
	retryInitial   time.Duration
	retryMax       time.Duration
	jitter         *jitter.Source
	closeOnce      sync.Once
}

// NewConsumer - конструктор; reader настроен на ручной коммит оффсетов.
func NewConsumer(cfg *ConsumerConfig, handler messageHandler, log ports.Logger) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := cfg.withDefaults()

	return &Consumer{
		reader:         kafka.NewReader(c.ReaderConfig()),
		handler:        handler,
		log:            log,
		processTimeout: c.ProcessTimeout,
		retryInitial:   c.RetryInitial,
		retryMax:       c.RetryMax,
		jitter:         jitter.NewRandom(),
	}, nil
}

// Run - основной цикл:
// 1) читаем сообщение без авто-коммита;
// 2) применяем его, повторяя временные ошибки с backoff;
// 3) коммитим оффсет после успеха или пропуска невалидного события.
// При отмене контекста во время повторов оффсет не коммитится (at-least-once).
func (c *Consumer) Run(ctx context.Context) error {
	ctx = ctxmeta.WithOrigin(ctx, ctxmeta.OriginKafka)
	rc := c.reader.Config()
	c.log.Infof(ctx, "kafka consumer started topic=%s group_id=%s brokers=%v", rc.Topic, rc.GroupID, rc.Brokers)

	fetchWait := newBackoff(c.retryInitial, c.retryMax, c.jitter)

	for {
		msg, fetchErr := c.reader.FetchMessage(ctx)
		if fetchErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// временная ошибка брокера/сети
			sleep := fetchWait.next()
			c.log.Warnf(ctx, "fetch failed: %v (will retry in %s)", fetchErr, sleep)
			if !sleepCtx(ctx, sleep) {
				return ctx.Err()
			}
			continue
		}
		fetchWait.reset()
		metrics.KafkaMessagesConsumed.WithLabelValues(rc.Topic).Inc()

		if err := c.process(ctx, rc.Topic, &msg); err != nil {
			return err
		}
		c.commitSafely(ctx, &msg)
	}
}

// process - применяет сообщение до успеха или окончательного отказа.
// Ошибку возвращает только при отмене контекста.
func (c *Consumer) process(ctx context.Context, topic string, msg *kafka.Message) error {
	retry := newBackoff(c.retryInitial, c.retryMax, c.jitter)
	for attempt := 1; ; attempt++ {
		if c.handleOnce(ctx, topic, msg, attempt) {
			return nil
		}
		if !sleepCtx(ctx, retry.next()) {
			c.log.Warnf(ctx, "stop retrying offset=%d key=%s after %d attempt(s): %v", msg.Offset, msg.Key, attempt, ctx.Err())
			return ctx.Err()
		}
	}
}

// Close - закрывает reader. Вызывается при остановке приложения.
func (c *Consumer) Close() (retErr error) {
	c.closeOnce.Do(func() {
		retErr = c.reader.Close()
	})
	return retErr
}
