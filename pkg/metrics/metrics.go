package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	KafkaMessagesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Number of messages fetched from Kafka",
		},
		[]string{"topic"},
	)
	KafkaMessagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_processed_total",
			Help: "Number of messages processed successfully",
		},
		[]string{"topic"},
	)
	KafkaMessagesFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_failed_total",
			Help: "Number of failed processing attempts that will be retried",
		},
		[]string{"topic"},
	)
	KafkaMessagesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_skipped_total",
			Help: "Number of messages committed without applying (invalid or unknown entity)",
		},
		[]string{"topic"},
	)
)

var (
	CacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Cache operations",
		},
		[]string{"cache", "op"}, // cache: index|cards|users|counters; op: hit|miss|error|evicted|expired|corrupt
	)
	CacheSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_size",
			Help: "Number of items currently in in-process cache",
		},
		[]string{"cache"},
	)
)

var (
	PageRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_page_requests_total",
			Help: "Page requests by partition kind and source",
		},
		[]string{"kind", "source"}, // source: index|store
	)
	IndexRebuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_index_rebuilds_total",
			Help: "Ordered index rebuilds by partition kind and result",
		},
		[]string{"kind", "result"},
	)
)

var (
	ReconcilePasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collect_reconcile_passes_total",
			Help: "Scheduled reconciliation passes by result",
		},
		[]string{"result"}, // done|skipped|error
	)
	ReconcileItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collect_reconcile_items_total",
			Help: "Reconciled counters by result",
		},
		[]string{"result"}, // applied|unchanged|conflict|dropped|failed
	)
	ReconcilerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "collect_reconciler_state",
			Help: "Reconciler state: 0 idle, 1 locked, 2 draining",
		},
	)
)

var registerOnce sync.Once

// MustRegister - регистрирует метрики в глобальном реестре; повторный вызов безопасен.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			KafkaMessagesConsumed, KafkaMessagesProcessed, KafkaMessagesFailed, KafkaMessagesSkipped,
			CacheOps, CacheSize,
			PageRequests, IndexRebuilds,
			ReconcilePasses, ReconcileItems, ReconcilerState,
		)
	})
}
