package domain

import "encoding/json"

// Document is a record with raw content attached by a content loader.
// One identifier may have several documents, one per origin.
type Document struct {
	Record  Record          `json:"record"`
	Origin  string          `json:"origin"`
	Content json.RawMessage `json:"content"`
}

// MergedRecord is the combined view of all documents of one identifier.
type MergedRecord struct {
	ID          string          `json:"identifier"`
	Fingerprint string          `json:"fingerprint"`
	Origins     []string        `json:"origins"`
	Content     json.RawMessage `json:"content"`
}

// Report is written in place of persistence when an output file is set.
type Report struct {
	Merged    []MergedRecord `json:"merged"`
	NonMerged []Document     `json:"nonmerged"`
}
