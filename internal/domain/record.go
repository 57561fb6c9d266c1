package domain

import (
	"encoding/json"
	"fmt"
)

// Record pairs a record identifier with the fingerprint of its content.
// Two records are equal when both fields match exactly.
type Record struct {
	ID          string
	Fingerprint string
}

// MarshalJSON encodes the record as a two-element array, the shape workers
// expect on the wire: ["identifier", "fingerprint"].
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{r.ID, r.Fingerprint})
}

// UnmarshalJSON decodes the two-element array form.
func (r *Record) UnmarshalJSON(b []byte) error {
	var pair []string
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("record: want 2 elements, got %d", len(pair))
	}
	r.ID, r.Fingerprint = pair[0], pair[1]
	return nil
}

// IDs returns the identifiers of records in order.
func IDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

// AllowSet restricts parsing to a subset of identifiers.
// A nil AllowSet accepts every identifier.
type AllowSet map[string]struct{}

// NewAllowSet builds an AllowSet from ids. It returns nil when ids is empty,
// which means no filtering.
func NewAllowSet(ids []string) AllowSet {
	if len(ids) == 0 {
		return nil
	}
	s := make(AllowSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Allows reports whether id passes the filter.
func (s AllowSet) Allows(id string) bool {
	if s == nil {
		return true
	}
	_, ok := s[id]
	return ok
}

// SelectChanged returns the records whose identifier is missing from stored
// or whose stored fingerprint differs, in input order.
func SelectChanged(records []Record, stored map[string]string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if fp, ok := stored[r.ID]; ok && fp == r.Fingerprint {
			continue
		}
		out = append(out, r)
	}
	return out
}
