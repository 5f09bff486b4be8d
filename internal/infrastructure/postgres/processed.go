package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// InboundMessage identifies one bus message for the idempotency ledger.
// MessageID is the composite fingerprint aggregate:topic:partition:offset.
type InboundMessage struct {
	MessageID     string
	Topic         string
	Partition     int32
	Offset        int64
	ConsumerGroup string
}

// TryMarkProcessedTx inserts the ledger row once.
//
//	ok=true  -> first delivery
//	ok=false -> duplicate (already processed by this consumer group)
func (r *Repository) TryMarkProcessedTx(ctx context.Context, tx pgx.Tx, msg InboundMessage) (ok bool, err error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO processed_messages (message_id, topic_name, partition_num, offset_num, consumer_group, processed_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (message_id) DO NOTHING
	`, msg.MessageID, msg.Topic, msg.Partition, msg.Offset, msg.ConsumerGroup)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ProcessOnce runs fn inside a DB transaction guarded by the
// processed_messages idempotency fence.
//   - Duplicate delivery: fn is NOT executed; returns processed=false, err=nil.
//   - fn fails: tx rolls back, the marker does not persist, the message can
//     be redelivered.
//   - fn succeeds: side effects and the marker commit atomically.
func (r *Repository) ProcessOnce(ctx context.Context, msg InboundMessage, fn func(tx pgx.Tx) error) (processed bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	first, err := r.TryMarkProcessedTx(ctx, tx, msg)
	if err != nil {
		return false, err
	}
	if !first {
		return false, nil
	}

	if err := fn(tx); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
