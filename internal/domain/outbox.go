package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is a durable intent to publish, created in the same
// transaction as the domain write that produced it. Once published=true the
// row is never rewritten; rows that exhaust their retries park in place for
// operator reset.
type OutboxEvent struct {
	ID           int64
	AggregateID  uuid.UUID
	EventType    string
	Payload      []byte
	TopicName    string
	PartitionKey string
	Published    bool
	PublishedAt  *time.Time
	ErrorMessage *string
	RetryCount   int
	CreatedAt    time.Time
}
