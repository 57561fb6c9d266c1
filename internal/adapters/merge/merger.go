// Package merge provides the default document merger.
package merge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bft-labs/recship/internal/domain"
	"github.com/bft-labs/recship/internal/ports"
)

// ShallowMerger combines the JSON object contents of each identifier's
// documents. Keys from later documents override earlier ones.
type ShallowMerger struct {
	logger ports.Logger
}

// NewShallowMerger creates a merger.
func NewShallowMerger(logger ports.Logger) *ShallowMerger {
	return &ShallowMerger{logger: logger}
}

type group struct {
	rec     domain.Record
	origins []string
	fields  map[string]json.RawMessage
}

// Merge groups docs by identifier in first-seen order. Documents whose
// content is not a JSON object are skipped; an identifier with no object
// content yields no merged record.
func (m *ShallowMerger) Merge(ctx context.Context, docs []domain.Document) ([]domain.MergedRecord, error) {
	var order []string
	groups := make(map[string]*group)
	skipped := 0

	for _, d := range docs {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(d.Content, &fields); err != nil || fields == nil {
			skipped++
			m.logger.Debug("skipping non-object content",
				ports.String("identifier", d.Record.ID),
				ports.String("origin", d.Origin),
			)
			continue
		}

		g, ok := groups[d.Record.ID]
		if !ok {
			g = &group{rec: d.Record, fields: make(map[string]json.RawMessage, len(fields))}
			groups[d.Record.ID] = g
			order = append(order, d.Record.ID)
		}
		g.origins = appendUnique(g.origins, d.Origin)
		for k, v := range fields {
			g.fields[k] = v
		}
	}

	out := make([]domain.MergedRecord, 0, len(order))
	for _, id := range order {
		g := groups[id]
		content, err := json.Marshal(g.fields)
		if err != nil {
			return nil, fmt.Errorf("marshal merged %s: %w", id, err)
		}
		out = append(out, domain.MergedRecord{
			ID:          id,
			Fingerprint: g.rec.Fingerprint,
			Origins:     g.origins,
			Content:     content,
		})
	}

	if skipped > 0 {
		m.logger.Info("merge skipped documents without object content", ports.Int("skipped", skipped))
	}
	return out, nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
