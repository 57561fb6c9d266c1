package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBatch_WireFormat(t *testing.T) {
	b := NewBatch(2)
	b.Add(Record{ID: "A", Fingerprint: "f1"})
	b.Add(Record{ID: "B", Fingerprint: "f2"})

	got, err := json.Marshal(b.Records)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[["A","f1"],["B","f2"]]`
	if string(got) != want {
		t.Errorf("wire = %s, want %s", got, want)
	}
}

func TestRecord_UnmarshalJSON_RejectsWrongArity(t *testing.T) {
	tests := []string{`["A"]`, `["A","f1","x"]`, `[]`, `{"id":"A"}`}
	for _, in := range tests {
		var r Record
		if err := json.Unmarshal([]byte(in), &r); err == nil {
			t.Errorf("Unmarshal(%s) expected error", in)
		}
	}
}

func TestBatch_CloneDoesNotShareStorage(t *testing.T) {
	b := NewBatch(2)
	b.Add(Record{ID: "A", Fingerprint: "f1"})
	c := b.Clone()
	b.Reset()
	b.Add(Record{ID: "Z", Fingerprint: "fz"})

	if c.Records[0].ID != "A" {
		t.Errorf("clone changed after reset: %v", c.Records)
	}
	if b.Last().ID != "Z" || b.First().ID != "Z" {
		t.Errorf("First/Last = %v/%v, want Z", b.First(), b.Last())
	}
}

func TestAllowSet(t *testing.T) {
	var all AllowSet
	if !all.Allows("anything") {
		t.Error("nil AllowSet should accept everything")
	}
	if NewAllowSet(nil) != nil {
		t.Error("NewAllowSet(nil) should be nil")
	}

	s := NewAllowSet([]string{"B"})
	if !s.Allows("B") {
		t.Error("B should be allowed")
	}
	if s.Allows("A") {
		t.Error("A should not be allowed")
	}
}

func TestParseDispatchMode(t *testing.T) {
	tests := []struct {
		in      string
		want    DispatchMode
		wantErr bool
	}{
		{"sync", ModeSync, false},
		{"async", ModeAsync, false},
		{"turbo", ModeSync, true},
	}
	for _, tt := range tests {
		got, err := ParseDispatchMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDispatchMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("error %v should wrap ErrInvalidConfig", err)
		}
		if got != tt.want {
			t.Errorf("ParseDispatchMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if err == nil && got.String() != tt.in {
			t.Errorf("String() = %s, want %s", got.String(), tt.in)
		}
	}
}

func TestSelectChanged(t *testing.T) {
	recs := []Record{
		{ID: "A", Fingerprint: "f1"},
		{ID: "B", Fingerprint: "f2"},
		{ID: "C", Fingerprint: "f3"},
	}
	stored := map[string]string{"A": "f1", "B": "old"}

	got := SelectChanged(recs, stored)
	want := []Record{{ID: "B", Fingerprint: "f2"}, {ID: "C", Fingerprint: "f3"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SelectChanged() mismatch (-want +got):\n%s", diff)
	}

	if got := SelectChanged(recs, nil); len(got) != 3 {
		t.Errorf("SelectChanged(nil stored) = %d records, want 3", len(got))
	}
}
