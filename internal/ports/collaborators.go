package ports

import (
	"context"

	"github.com/bft-labs/recship/internal/domain"
)

// RecordLookup decides which records need reprocessing.
type RecordLookup interface {
	// LookupNew returns the records that are unknown or whose fingerprint
	// changed, in input order.
	LookupNew(ctx context.Context, records []domain.Record) ([]domain.Record, error)
}

// LoadOptions selects where record content comes from.
type LoadOptions struct {
	// Files, when non-empty, are local document files used instead of the
	// remote export service.
	Files []string
}

// ContentLoader attaches raw content to records.
type ContentLoader interface {
	LoadContent(ctx context.Context, records []domain.Record, opts LoadOptions) ([]domain.Document, error)
}

// Merger combines the documents of each identifier.
type Merger interface {
	Merge(ctx context.Context, docs []domain.Document) ([]domain.MergedRecord, error)
}

// Persister stores merged records.
type Persister interface {
	Persist(ctx context.Context, merged []domain.MergedRecord) error
}

// ReportWriter writes the merged and non-merged sets to path.
type ReportWriter interface {
	WriteReport(path string, report domain.Report) error
}
