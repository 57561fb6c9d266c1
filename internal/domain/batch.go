package domain

// Batch is an ordered group of records published as a single message.
// A flushed batch is never empty and never exceeds the configured batch size.
type Batch struct {
	// Records holds the batch contents in arrival order.
	Records []Record
}

// NewBatch creates an empty batch with room for capacity records.
func NewBatch(capacity int) *Batch {
	return &Batch{Records: make([]Record, 0, capacity)}
}

// Add appends a record to the batch.
func (b *Batch) Add(r Record) {
	b.Records = append(b.Records, r)
}

// Size returns the number of records in the batch.
func (b *Batch) Size() int {
	return len(b.Records)
}

// Empty returns true if the batch has no records.
func (b *Batch) Empty() bool {
	return len(b.Records) == 0
}

// Reset clears the batch for reuse.
func (b *Batch) Reset() {
	b.Records = b.Records[:0]
}

// Clone returns a copy that does not share storage with b.
func (b *Batch) Clone() Batch {
	out := make([]Record, len(b.Records))
	copy(out, b.Records)
	return Batch{Records: out}
}

// First returns the first record in the batch, or nil if empty.
func (b *Batch) First() *Record {
	if len(b.Records) == 0 {
		return nil
	}
	return &b.Records[0]
}

// Last returns the last record in the batch, or nil if empty.
func (b *Batch) Last() *Record {
	if len(b.Records) == 0 {
		return nil
	}
	return &b.Records[len(b.Records)-1]
}
