package kafka

import (
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerConfig - параметры чтения топика событий товаров и избранного.
type ConsumerConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	StartOffset string // first | last

	ProcessTimeout time.Duration // на одну попытку применения события
	RetryInitial   time.Duration
	RetryMax       time.Duration
}

// Validate - без брокеров, топика и группы консьюмер не запустится.
func (c *ConsumerConfig) Validate() error {
	var errs []error
	if len(c.Brokers) == 0 {
		errs = append(errs, errors.New("kafka: no brokers"))
	}
	if strings.TrimSpace(c.Topic) == "" {
		errs = append(errs, errors.New("kafka: empty topic"))
	}
	// без группы kafka-go не коммитит оффсеты
	if strings.TrimSpace(c.GroupID) == "" {
		errs = append(errs, errors.New("kafka: empty group id"))
	}
	return errors.Join(errs...)
}

// ReaderConfig - конфиг kafka.Reader с ручным коммитом оффсетов.
func (c *ConsumerConfig) ReaderConfig() kafka.ReaderConfig {
	rc := kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		CommitInterval: 0,
	}

	switch strings.ToLower(strings.TrimSpace(c.StartOffset)) {
	case "first":
		rc.StartOffset = kafka.FirstOffset
	default:
		rc.StartOffset = kafka.LastOffset
	}

	return rc
}

func (c *ConsumerConfig) withDefaults() ConsumerConfig {
	out := *c
	if out.ProcessTimeout <= 0 {
		out.ProcessTimeout = 5 * time.Second
	}
	if out.RetryInitial <= 0 {
		out.RetryInitial = time.Second
	}
	if out.RetryMax <= 0 {
		out.RetryMax = 30 * time.Second
	}
	if out.RetryMax < out.RetryInitial {
		out.RetryMax = out.RetryInitial
	}
	return out
}
