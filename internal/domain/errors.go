package domain

import "errors"

// Domain errors represent error conditions in the recship domain.
// Adapters wrap them with context; callers check them with errors.Is.
var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("recship: invalid configuration")

	// ErrInvalidBatchSize is returned when the batch size is below one.
	ErrInvalidBatchSize = errors.New("recship: batch size must be at least 1")

	// ErrQueueDepth is returned when a queue depth query fails.
	ErrQueueDepth = errors.New("recship: queue depth query failed")

	// ErrPublish is returned when a batch could not be published.
	ErrPublish = errors.New("recship: publish failed")

	// ErrInvalidTransition is returned when a source moves to a state it cannot reach.
	ErrInvalidTransition = errors.New("recship: invalid state transition")
)
