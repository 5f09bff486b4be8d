package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events successfully published to the bus.",
	}, []string{"topic"})

	OutboxFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_failed_total",
		Help: "Outbox publish attempts that failed and incremented retry_count.",
	}, []string{"topic"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "producer_breaker_state",
		Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
	}, []string{"name"})

	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_messages_processed_total",
		Help: "Bus messages processed to a committed transaction.",
	}, []string{"topic", "group"})

	MessagesDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_messages_duplicate_total",
		Help: "Redeliveries skipped by the idempotency ledger.",
	}, []string{"topic", "group"})

	MessagesDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_messages_dead_lettered_total",
		Help: "Messages routed to a dead-letter topic after a permanent failure.",
	}, []string{"topic", "group"})

	ApplicationsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "applications_submitted_total",
		Help: "Applications accepted by the intake API.",
	})

	DecisionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decisions_recorded_total",
		Help: "Final decisions committed, by outcome status.",
	}, []string{"status"})
)
