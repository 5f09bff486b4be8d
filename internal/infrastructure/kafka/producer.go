package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	publishTimeout = 5 * time.Second
	flushTimeout   = 10 * time.Second
)

// Producer is a synchronous bus producer. Every publish waits for all
// in-sync replicas, and at most one produce request is in flight per broker
// so outbox rows reach each partition in claim order.
type Producer struct {
	client  *kgo.Client
	breaker *Breaker
	log     zerolog.Logger
}

func NewProducer(brokers []string, breaker *Breaker, log zerolog.Logger) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.MaxProduceRequestsInflightPerBroker(1),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create producer client: %w", err)
	}
	return &Producer{
		client:  client,
		breaker: breaker,
		log:     log.With().Str("component", "kafka_producer").Logger(),
	}, nil
}

// Publish sends one record keyed for partition ordering and waits for the
// broker ack. While the breaker is open it fails fast with ErrBreakerOpen.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload []byte) error {
	return p.breaker.Do(func() error {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		record := &kgo.Record{
			Topic: topic,
			Key:   []byte(key),
			Value: payload,
		}
		if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce to %s: %w", topic, err)
		}
		return nil
	})
}

// Close flushes buffered records before releasing the client.
func (p *Producer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.log.Warn().Err(err).Msg("flush on close failed")
	}
	p.client.Close()
}
