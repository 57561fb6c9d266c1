package feed

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bft-labs/recship/internal/domain"
	"github.com/bft-labs/recship/internal/ports"
)

// recordingLogger captures warnings for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debug(msg string, fields ...ports.Field) {}
func (l *recordingLogger) Info(msg string, fields ...ports.Field)  {}
func (l *recordingLogger) Error(msg string, fields ...ports.Field) {}
func (l *recordingLogger) Warn(msg string, fields ...ports.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range fields {
		if f.Key == "content" {
			l.warns = append(l.warns, f.Value.(string))
		}
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantKind   LineKind
		wantRecord domain.Record
		wantFields int
	}{
		{"record", "A\tf1", LineRecord, domain.Record{ID: "A", Fingerprint: "f1"}, 2},
		{"surrounding whitespace trimmed", "  A\tf1 \r", LineRecord, domain.Record{ID: "A", Fingerprint: "f1"}, 2},
		{"comment", "#comment", LineComment, domain.Record{}, 0},
		{"comment with tabs", "#A\tf1", LineComment, domain.Record{}, 0},
		{"empty", "", LineBlank, domain.Record{}, 0},
		{"whitespace only", " \t  ", LineBlank, domain.Record{}, 0},
		{"one field", "A", LineMalformed, domain.Record{}, 1},
		{"three fields", "A\tf1\tx", LineMalformed, domain.Record{}, 3},
		{"space separated", "A f1", LineMalformed, domain.Record{}, 1},
		{"empty middle field", "A\t\tf1", LineMalformed, domain.Record{}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, kind, fields := ParseLine(tt.line)
			if kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", kind, tt.wantKind)
			}
			if rec != tt.wantRecord {
				t.Errorf("record = %+v, want %+v", rec, tt.wantRecord)
			}
			if fields != tt.wantFields {
				t.Errorf("fields = %d, want %d", fields, tt.wantFields)
			}
		})
	}
}

func TestReader_SkipsCommentsAndMalformedLines(t *testing.T) {
	in := "A\tf1\nbad line\nB\tf2\n#comment\n\nC\tf3\tf4\nC\tf3\n"
	logger := &recordingLogger{}
	r := NewReader(strings.NewReader(in), "feed.tsv", nil, logger)

	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	want := []domain.Record{
		{ID: "A", Fingerprint: "f1"},
		{ID: "B", Fingerprint: "f2"},
		{ID: "C", Fingerprint: "f3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	wantStats := Stats{Lines: 7, Comments: 1, Blank: 1, Malformed: 2, Accepted: 3}
	if diff := cmp.Diff(wantStats, r.Stats()); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"bad line", "C\tf3\tf4"}, logger.warns); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestReader_AllowSet(t *testing.T) {
	in := "A\tf1\nB\tf2\n#comment\nC\tf3\n"
	r := NewReader(strings.NewReader(in), "feed.tsv", domain.NewAllowSet([]string{"B"}), &recordingLogger{})

	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if diff := cmp.Diff([]domain.Record{{ID: "B", Fingerprint: "f2"}}, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if r.Stats().Filtered != 2 {
		t.Errorf("Filtered = %d, want 2", r.Stats().Filtered)
	}
}

func TestReader_NextReturnsEOFRepeatedly(t *testing.T) {
	r := NewReader(strings.NewReader("A\tf1"), "feed.tsv", nil, &recordingLogger{})

	if _, err := r.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := r.Next(); err != io.EOF {
			t.Errorf("Next after end = %v, want io.EOF", err)
		}
	}
}

func TestOpen_FreshPassPerCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.tsv")
	if err := os.WriteFile(path, []byte("A\tf1\nB\tf2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for pass := 0; pass < 2; pass++ {
		r, err := Open(path, nil, &recordingLogger{})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		got, err := r.ReadAll()
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("pass %d: got %d records, want 2", pass, len(got))
		}
		if err := r.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.tsv"), nil, &recordingLogger{}); err == nil {
		t.Error("Open of missing file should fail")
	}
}

func TestReader_LineTooLong(t *testing.T) {
	long := "A\t" + strings.Repeat("x", maxLineBytes+1) + "\n"
	r := NewReader(strings.NewReader(long), "feed.tsv", nil, &recordingLogger{})
	if _, err := r.Next(); err == nil || err == io.EOF {
		t.Errorf("Next = %v, want read error", err)
	}
}
