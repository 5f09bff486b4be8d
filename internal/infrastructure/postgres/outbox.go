package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
	"github.com/Zayn-Suleman/loan-preQualification/internal/outbox"
)

// InsertOutboxTx writes a pending outbox row inside the caller's
// transaction, so the event intent co-commits with the domain write.
func (r *Repository) InsertOutboxTx(ctx context.Context, tx pgx.Tx, ev *domain.OutboxEvent) error {
	return tx.QueryRow(ctx, `
		INSERT INTO outbox_events (
			aggregate_id, event_type, payload, topic_name, partition_key,
			published, retry_count, created_at
		) VALUES ($1, $2, $3, $4, $5, FALSE, 0, NOW())
		RETURNING id, created_at
	`, ev.AggregateID, ev.EventType, ev.Payload, ev.TopicName, ev.PartitionKey).
		Scan(&ev.ID, &ev.CreatedAt)
}

// BeginCycle opens one publisher batch cycle. All row updates made through
// the returned cycle commit together or not at all.
func (r *Repository) BeginCycle(ctx context.Context) (outbox.Cycle, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &outboxCycle{tx: tx}, nil
}

type outboxCycle struct {
	tx pgx.Tx
}

// Drain claims up to batchSize oldest unpublished rows still under the retry
// ceiling. SKIP LOCKED keeps a second publisher instance from double-sending
// the same rows; the database serializes the rest.
func (c *outboxCycle) Drain(ctx context.Context, batchSize, maxRetries int) ([]domain.OutboxEvent, error) {
	rows, err := c.tx.Query(ctx, `
		SELECT id, aggregate_id, event_type, payload, topic_name,
		       COALESCE(partition_key, ''), retry_count, created_at
		FROM outbox_events
		WHERE published = FALSE
		  AND retry_count < $2
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, batchSize, maxRetries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var ev domain.OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &ev.Payload,
			&ev.TopicName, &ev.PartitionKey, &ev.RetryCount, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (c *outboxCycle) MarkPublished(ctx context.Context, id int64) error {
	_, err := c.tx.Exec(ctx, `
		UPDATE outbox_events
		SET published = TRUE,
		    published_at = $2,
		    error_message = NULL
		WHERE id = $1
	`, id, time.Now().UTC())
	return err
}

func (c *outboxCycle) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := c.tx.Exec(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1,
		    error_message = $2
		WHERE id = $1
	`, id, errMsg)
	return err
}

func (c *outboxCycle) Commit(ctx context.Context) error   { return c.tx.Commit(ctx) }
func (c *outboxCycle) Rollback(ctx context.Context) error { return c.tx.Rollback(ctx) }
