// Package worker defines the contract between bus consumers and their
// message handlers: explicit transient/permanent failure classification and
// the composite message fingerprint used for idempotency.
package worker

import (
	"errors"
	"fmt"
)

// PermanentError marks a failure that redelivery cannot fix: malformed
// payloads, unsupported schemas, missing aggregates. The consumer routes the
// message to the dead-letter topic and advances.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Permanentf is Permanent(fmt.Errorf(...)).
func Permanentf(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
// Anything else is treated as transient: the transaction rolls back, the
// offset is not advanced, and the message is redelivered.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Fingerprint is the idempotency key of one bus message for one consumer
// group: aggregate_id:topic:partition:offset. Stable across redeliveries.
func Fingerprint(aggregateID, topic string, partition int32, offset int64) string {
	return fmt.Sprintf("%s:%s:%d:%d", aggregateID, topic, partition, offset)
}
