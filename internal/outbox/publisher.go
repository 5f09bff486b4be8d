// Package outbox drains the transactional outbox table and relays pending
// events to the message bus. Rows are claimed, published and marked inside a
// single database transaction per cycle, so a crash mid-cycle leaves every
// row either untouched or consistently updated.
package outbox

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
	"github.com/Zayn-Suleman/loan-preQualification/internal/metrics"
)

const maxErrorLen = 500

// Cycle is one claimed publisher batch. Every Mark* call is staged on the
// same transaction and lands atomically on Commit.
type Cycle interface {
	Drain(ctx context.Context, batchSize, maxRetries int) ([]domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens publisher cycles against the outbox table.
type Store interface {
	BeginCycle(ctx context.Context) (Cycle, error)
}

// Producer delivers one event to the bus. Implementations decide durability
// (the Kafka producer waits for all in-sync replicas) and may fail fast when
// their circuit breaker is open.
type Producer interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// Publisher polls the outbox table and relays pending rows oldest-first.
// Delivery is at-least-once: a crash between broker ack and Commit re-sends
// the row on the next cycle, and consumers dedupe.
type Publisher struct {
	store    Store
	producer Producer
	log      zerolog.Logger

	pollInterval time.Duration
	batchSize    int
	maxRetries   int
}

func NewPublisher(store Store, producer Producer, pollInterval time.Duration, batchSize, maxRetries int, log zerolog.Logger) *Publisher {
	return &Publisher{
		store:        store,
		producer:     producer,
		log:          log.With().Str("component", "outbox_publisher").Logger(),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		maxRetries:   maxRetries,
	}
}

// Run loops until ctx is cancelled. An in-flight cycle is finished before
// returning.
func (p *Publisher) Run(ctx context.Context) error {
	p.log.Info().
		Dur("poll_interval", p.pollInterval).
		Int("batch_size", p.batchSize).
		Int("max_retries", p.maxRetries).
		Msg("outbox publisher started")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("outbox publisher stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.RunCycle(ctx); err != nil {
				p.log.Error().Err(err).Msg("publisher cycle failed")
			}
		}
	}
}

// RunCycle claims one batch and publishes it. Publish failures do not abort
// the cycle: the row's retry_count is bumped and the loop moves on, so one
// poisoned event cannot wedge the stream behind it.
func (p *Publisher) RunCycle(ctx context.Context) error {
	cycle, err := p.store.BeginCycle(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = cycle.Rollback(ctx) }()

	events, err := cycle.Drain(ctx, p.batchSize, p.maxRetries)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return cycle.Commit(ctx)
	}

	published := 0
	for _, ev := range events {
		if err := p.producer.Publish(ctx, ev.TopicName, ev.PartitionKey, ev.Payload); err != nil {
			metrics.OutboxFailed.WithLabelValues(ev.TopicName).Inc()
			p.log.Warn().
				Err(err).
				Int64("event_id", ev.ID).
				Str("event_type", ev.EventType).
				Str("topic", ev.TopicName).
				Int("retry_count", ev.RetryCount+1).
				Msg("publish failed")
			if markErr := cycle.MarkFailed(ctx, ev.ID, truncateError(err)); markErr != nil {
				return markErr
			}
			continue
		}

		metrics.OutboxPublished.WithLabelValues(ev.TopicName).Inc()
		if markErr := cycle.MarkPublished(ctx, ev.ID); markErr != nil {
			return markErr
		}
		published++
	}

	if err := cycle.Commit(ctx); err != nil {
		return err
	}

	p.log.Debug().
		Int("claimed", len(events)).
		Int("published", published).
		Msg("cycle complete")
	return nil
}

// truncateError bounds the stored message so a verbose broker error cannot
// blow up the error_message column. The limit is characters, not bytes, and
// never splits a rune.
func truncateError(err error) string {
	msg := err.Error()
	if utf8.RuneCountInString(msg) <= maxErrorLen {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:maxErrorLen])
}
