package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
	"github.com/Zayn-Suleman/loan-preQualification/internal/metrics"
	"github.com/Zayn-Suleman/loan-preQualification/internal/worker"
)

// Message is one inbound record handed to a Handler.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Handler processes one message. A nil return means the message (or its
// deduped replay) is durably handled and the offset may be committed. Errors
// wrapped by worker.Permanent route the message to the dead-letter topic;
// anything else is transient and the partition is rewound for redelivery.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// ConsumerConfig carries group membership settings. DLQTopic overrides the
// derived "<topic>_dlq" name when set.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	Topic           string
	DLQTopic        string
	SessionTimeout  time.Duration
	MaxPollInterval time.Duration
}

// recordOps are the client actions the dispatch loop takes per record.
// Split from the loop so the commit/dead-letter/rewind branching is testable
// without a broker.
type recordOps interface {
	commit(ctx context.Context, rec *kgo.Record) error
	rewind(rec *kgo.Record)
	deadLetter(ctx context.Context, rec *kgo.Record, cause error) error
}

// Consumer runs the idempotent consumption loop for one topic. Offsets are
// committed only after the handler's database transaction commits, so every
// message is processed at least once and deduped by the ledger.
type Consumer struct {
	client   *kgo.Client
	dispatch *dispatcher
	log      zerolog.Logger
}

func NewConsumer(cfg ConsumerConfig, handler Handler, log zerolog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
		kgo.SessionTimeout(cfg.SessionTimeout),
		kgo.RebalanceTimeout(cfg.MaxPollInterval),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create consumer client: %w", err)
	}

	l := log.With().Str("component", "kafka_consumer").Str("topic", cfg.Topic).Str("group", cfg.GroupID).Logger()
	return &Consumer{
		client: client,
		dispatch: &dispatcher{
			ops:          &clientOps{client: client, dlqTopic: resolveDLQTopic(cfg.DLQTopic, cfg.Topic)},
			handler:      handler,
			topic:        cfg.Topic,
			group:        cfg.GroupID,
			retryBackoff: time.Second,
			log:          l,
		},
		log: l,
	}, nil
}

// resolveDLQTopic honors an operator-configured name; otherwise the DLQ is
// derived per source topic.
func resolveDLQTopic(configured, topic string) string {
	if configured != "" {
		return configured
	}
	return domain.DLQTopicFor(topic)
}

// Run polls until ctx is cancelled. The record being handled when shutdown
// begins is finished and committed before returning.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().Msg("consumer started")
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			c.log.Info().Msg("consumer stopped")
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.log.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("fetch error")
		})

		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			c.dispatch.run(ctx, p.Records)
		})
	}
}

// Close leaves the group cleanly.
func (c *Consumer) Close() {
	c.client.Close()
}

// dispatcher decides, per record and strictly in offset order, whether the
// offset advances (success or dead-lettered poison) or the partition rewinds
// for redelivery (any transient failure).
type dispatcher struct {
	ops          recordOps
	handler      Handler
	topic        string
	group        string
	retryBackoff time.Duration
	log          zerolog.Logger
}

// run handles one partition's records. A transient failure rewinds the
// partition to the failed offset and abandons the rest of the batch,
// preserving per-aggregate ordering.
func (d *dispatcher) run(ctx context.Context, recs []*kgo.Record) {
	for _, rec := range recs {
		if ctx.Err() != nil {
			return
		}

		msg := Message{
			Topic:     rec.Topic,
			Partition: rec.Partition,
			Offset:    rec.Offset,
			Key:       rec.Key,
			Value:     rec.Value,
		}

		err := d.handler.Handle(ctx, msg)
		switch {
		case err == nil:
			if !d.commit(ctx, rec) {
				return
			}
		case worker.IsPermanent(err):
			d.log.Error().
				Err(err).
				Int32("partition", rec.Partition).
				Int64("offset", rec.Offset).
				Msg("permanent failure, dead-lettering")
			if dlqErr := d.ops.deadLetter(ctx, rec, err); dlqErr != nil {
				// DLQ unreachable is itself transient: keep the message.
				d.log.Error().Err(dlqErr).Msg("dead-letter produce failed")
				d.ops.rewind(rec)
				return
			}
			metrics.MessagesDeadLettered.WithLabelValues(d.topic, d.group).Inc()
			if !d.commit(ctx, rec) {
				return
			}
		default:
			d.log.Warn().
				Err(err).
				Int32("partition", rec.Partition).
				Int64("offset", rec.Offset).
				Msg("transient failure, rewinding partition")
			d.ops.rewind(rec)
			select {
			case <-time.After(d.retryBackoff):
			case <-ctx.Done():
			}
			return
		}
	}
}

// commit advances the offset; on failure the partition rewinds so the record
// is redelivered rather than lost.
func (d *dispatcher) commit(ctx context.Context, rec *kgo.Record) bool {
	if err := d.ops.commit(ctx, rec); err != nil {
		d.log.Error().Err(err).Int64("offset", rec.Offset).Msg("offset commit failed")
		d.ops.rewind(rec)
		return false
	}
	metrics.MessagesProcessed.WithLabelValues(d.topic, d.group).Inc()
	return true
}

// clientOps is the broker-backed recordOps.
type clientOps struct {
	client   *kgo.Client
	dlqTopic string
}

func (o *clientOps) commit(ctx context.Context, rec *kgo.Record) error {
	return o.client.CommitRecords(ctx, rec)
}

// rewind points the partition back at the failed record so the next poll
// redelivers it.
func (o *clientOps) rewind(rec *kgo.Record) {
	o.client.SetOffsets(map[string]map[int32]kgo.EpochOffset{
		rec.Topic: {
			rec.Partition: {Epoch: rec.LeaderEpoch, Offset: rec.Offset},
		},
	})
}

// deadLetter copies the poisoned record to the dead-letter topic, tagging it
// with the failure and its original coordinates.
func (o *clientOps) deadLetter(ctx context.Context, rec *kgo.Record, cause error) error {
	var unwrapped error = cause
	var perm *worker.PermanentError
	if errors.As(cause, &perm) {
		unwrapped = perm.Err
	}

	dlqRec := &kgo.Record{
		Topic: o.dlqTopic,
		Key:   rec.Key,
		Value: rec.Value,
		Headers: []kgo.RecordHeader{
			{Key: "error", Value: []byte(unwrapped.Error())},
			{Key: "original_topic", Value: []byte(rec.Topic)},
			{Key: "original_partition", Value: []byte(strconv.FormatInt(int64(rec.Partition), 10))},
			{Key: "original_offset", Value: []byte(strconv.FormatInt(rec.Offset, 10))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return o.client.ProduceSync(ctx, dlqRec).FirstErr()
}
