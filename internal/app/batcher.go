package app

import "github.com/bft-labs/recship/internal/domain"

// Batcher groups records into batches of a fixed size.
type Batcher struct {
	batch *domain.Batch
	size  int
}

// NewBatcher creates a batcher that flushes every size records.
// Returns domain.ErrInvalidBatchSize if size is below one.
func NewBatcher(size int) (*Batcher, error) {
	if size < 1 {
		return nil, domain.ErrInvalidBatchSize
	}
	return &Batcher{
		batch: domain.NewBatch(size),
		size:  size,
	}, nil
}

// Add appends a record to the current batch.
// Returns true when the batch reached the configured size and should be taken.
func (b *Batcher) Add(r domain.Record) bool {
	b.batch.Add(r)
	return b.batch.Size() >= b.size
}

// Take returns the current batch and starts a new one.
// The returned batch does not share storage with the batcher.
func (b *Batcher) Take() domain.Batch {
	out := b.batch.Clone()
	b.batch.Reset()
	return out
}

// Batch returns the batch being filled.
func (b *Batcher) Batch() *domain.Batch {
	return b.batch
}

// HasPending returns true if there are records waiting to be taken.
func (b *Batcher) HasPending() bool {
	return !b.batch.Empty()
}

// Reset drops any pending records.
func (b *Batcher) Reset() {
	b.batch.Reset()
}

// Size returns the configured batch size.
func (b *Batcher) Size() int {
	return b.size
}
