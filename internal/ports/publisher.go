package ports

import (
	"context"

	"github.com/bft-labs/recship/internal/domain"
)

// BatchPublisher emits one batch as a single broker message.
// Implementations open a fresh connection per call and close it before
// returning, so a broken connection cannot affect a later batch.
type BatchPublisher interface {
	// Publish sends batch to the configured exchange and routing key.
	// source names the feed the batch came from and is informational.
	Publish(ctx context.Context, source string, batch domain.Batch) error
}

// QueueInspector reads the depth of downstream queues.
type QueueInspector interface {
	// QueueDepths returns the ready-message count of every named queue.
	// The query is passive: a missing queue is an error, never created.
	QueueDepths(ctx context.Context, queues []string) (map[string]int, error)
}
