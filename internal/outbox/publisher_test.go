package outbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
)

type fakeCycle struct {
	events []domain.OutboxEvent

	published  []int64
	failed     map[int64]string
	committed  bool
	rolledBack bool
}

func (c *fakeCycle) Drain(ctx context.Context, batchSize, maxRetries int) ([]domain.OutboxEvent, error) {
	if len(c.events) > batchSize {
		return c.events[:batchSize], nil
	}
	return c.events, nil
}

func (c *fakeCycle) MarkPublished(ctx context.Context, id int64) error {
	c.published = append(c.published, id)
	return nil
}

func (c *fakeCycle) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	if c.failed == nil {
		c.failed = map[int64]string{}
	}
	c.failed[id] = errMsg
	return nil
}

func (c *fakeCycle) Commit(ctx context.Context) error   { c.committed = true; return nil }
func (c *fakeCycle) Rollback(ctx context.Context) error { c.rolledBack = true; return nil }

type fakeStore struct {
	cycle *fakeCycle
}

func (s *fakeStore) BeginCycle(ctx context.Context) (Cycle, error) { return s.cycle, nil }

type fakeProducer struct {
	failTopics map[string]error
	sent       []string
}

func (p *fakeProducer) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if err, ok := p.failTopics[topic]; ok {
		return err
	}
	p.sent = append(p.sent, topic)
	return nil
}

func event(id int64, topic string) domain.OutboxEvent {
	return domain.OutboxEvent{
		ID:           id,
		AggregateID:  uuid.New(),
		EventType:    domain.EventApplicationSubmitted,
		Payload:      []byte(`{"application_id":"x"}`),
		TopicName:    topic,
		PartitionKey: "key",
	}
}

func newTestPublisher(store Store, producer Producer) *Publisher {
	return NewPublisher(store, producer, 10*time.Millisecond, 10, 5, zerolog.Nop())
}

func TestRunCycle_PublishesAndMarks(t *testing.T) {
	cycle := &fakeCycle{events: []domain.OutboxEvent{event(1, "topic.a"), event(2, "topic.a")}}
	producer := &fakeProducer{}
	p := newTestPublisher(&fakeStore{cycle: cycle}, producer)

	require.NoError(t, p.RunCycle(context.Background()))

	assert.Equal(t, []int64{1, 2}, cycle.published)
	assert.Empty(t, cycle.failed)
	assert.True(t, cycle.committed)
	assert.Len(t, producer.sent, 2)
}

func TestRunCycle_FailureMarksFailedAndContinues(t *testing.T) {
	cycle := &fakeCycle{events: []domain.OutboxEvent{event(1, "bad.topic"), event(2, "good.topic")}}
	producer := &fakeProducer{failTopics: map[string]error{"bad.topic": errors.New("broker down")}}
	p := newTestPublisher(&fakeStore{cycle: cycle}, producer)

	require.NoError(t, p.RunCycle(context.Background()))

	// The poisoned row must not block the one behind it.
	assert.Equal(t, []int64{2}, cycle.published)
	assert.Contains(t, cycle.failed[1], "broker down")
	assert.True(t, cycle.committed)
}

func TestRunCycle_TruncatesLongErrors(t *testing.T) {
	longErr := errors.New(strings.Repeat("x", 2000))
	cycle := &fakeCycle{events: []domain.OutboxEvent{event(1, "bad.topic")}}
	producer := &fakeProducer{failTopics: map[string]error{"bad.topic": longErr}}
	p := newTestPublisher(&fakeStore{cycle: cycle}, producer)

	require.NoError(t, p.RunCycle(context.Background()))
	assert.Len(t, cycle.failed[1], maxErrorLen)
}

func TestRunCycle_TruncationNeverSplitsARune(t *testing.T) {
	// 600 two-byte runes: a byte-boundary cut at 500 would land mid-rune.
	longErr := errors.New(strings.Repeat("é", 600))
	cycle := &fakeCycle{events: []domain.OutboxEvent{event(1, "bad.topic")}}
	producer := &fakeProducer{failTopics: map[string]error{"bad.topic": longErr}}
	p := newTestPublisher(&fakeStore{cycle: cycle}, producer)

	require.NoError(t, p.RunCycle(context.Background()))

	stored := cycle.failed[1]
	assert.True(t, utf8.ValidString(stored))
	assert.Equal(t, maxErrorLen, utf8.RuneCountInString(stored))
}

func TestRunCycle_EmptyBatchStillCommits(t *testing.T) {
	cycle := &fakeCycle{}
	p := newTestPublisher(&fakeStore{cycle: cycle}, &fakeProducer{})

	require.NoError(t, p.RunCycle(context.Background()))
	assert.True(t, cycle.committed)
}

func TestRunCycle_RespectsBatchSize(t *testing.T) {
	var events []domain.OutboxEvent
	for i := int64(1); i <= 25; i++ {
		events = append(events, event(i, "topic.a"))
	}
	cycle := &fakeCycle{events: events}
	producer := &fakeProducer{}
	p := NewPublisher(&fakeStore{cycle: cycle}, producer, 10*time.Millisecond, 10, 5, zerolog.Nop())

	require.NoError(t, p.RunCycle(context.Background()))
	assert.Len(t, cycle.published, 10)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cycle := &fakeCycle{}
	p := newTestPublisher(&fakeStore{cycle: cycle}, &fakeProducer{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
