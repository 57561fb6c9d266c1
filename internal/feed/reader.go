package feed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bft-labs/recship/internal/domain"
	"github.com/bft-labs/recship/internal/ports"
)

// maxLineBytes bounds a single feed line.
const maxLineBytes = 1 << 20

// LineKind classifies a raw feed line.
type LineKind int

const (
	// LineRecord is an IDENTIFIER<TAB>FINGERPRINT line.
	LineRecord LineKind = iota
	// LineComment starts with '#'.
	LineComment
	// LineBlank is empty or whitespace only.
	LineBlank
	// LineMalformed does not split into exactly two fields.
	LineMalformed
)

// String returns a human-readable representation of the kind.
func (k LineKind) String() string {
	switch k {
	case LineRecord:
		return "record"
	case LineComment:
		return "comment"
	case LineBlank:
		return "blank"
	case LineMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ParseLine classifies line and, for LineRecord, returns the record.
// The returned int is the tab-separated field count, or 0 for comments and
// blank lines.
func ParseLine(line string) (domain.Record, LineKind, int) {
	if strings.HasPrefix(line, "#") {
		return domain.Record{}, LineComment, 0
	}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return domain.Record{}, LineBlank, 0
	}
	fields := strings.Split(trimmed, "\t")
	if len(fields) != 2 || fields[0] == "" {
		return domain.Record{}, LineMalformed, len(fields)
	}
	return domain.Record{ID: fields[0], Fingerprint: fields[1]}, LineRecord, 2
}

// Stats counts what a Reader has seen so far.
type Stats struct {
	Lines     int
	Comments  int
	Blank     int
	Malformed int
	Filtered  int
	Accepted  int
}

// Reader yields the valid, allowed records of one feed.
type Reader struct {
	source  string
	scanner *bufio.Scanner
	closer  io.Closer
	allow   domain.AllowSet
	logger  ports.Logger
	lineNo  int
	stats   Stats
}

// NewReader creates a Reader over r. source names the feed in diagnostics.
// A nil allow set accepts every identifier.
func NewReader(r io.Reader, source string, allow domain.AllowSet, logger ports.Logger) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{
		source:  source,
		scanner: scanner,
		allow:   allow,
		logger:  logger,
	}
}

// Open opens the feed file at path. Relative paths resolve against the
// current working directory. The caller must Close the reader.
func Open(path string, allow domain.AllowSet, logger ports.Logger) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	r := NewReader(f, path, allow, logger)
	r.closer = f
	return r, nil
}

// Next returns the next valid, allowed record.
// Returns io.EOF when the feed is exhausted.
func (r *Reader) Next() (domain.Record, error) {
	for r.scanner.Scan() {
		r.lineNo++
		r.stats.Lines++
		line := r.scanner.Text()

		rec, kind, fields := ParseLine(line)
		switch kind {
		case LineComment:
			r.stats.Comments++
			continue
		case LineBlank:
			r.stats.Blank++
			continue
		case LineMalformed:
			r.stats.Malformed++
			r.logger.Warn("feed line should be \"identifier<TAB>fingerprint\", skipping",
				ports.String("source", r.source),
				ports.Int("line", r.lineNo),
				ports.Int("fields", fields),
				ports.String("content", line),
			)
			continue
		}

		if !r.allow.Allows(rec.ID) {
			r.stats.Filtered++
			continue
		}
		r.stats.Accepted++
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return domain.Record{}, fmt.Errorf("read feed %s line %d: %w", r.source, r.lineNo+1, err)
	}
	return domain.Record{}, io.EOF
}

// ReadAll drains the reader and returns every remaining record.
func (r *Reader) ReadAll() ([]domain.Record, error) {
	var out []domain.Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// Stats returns the counters accumulated so far.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Source returns the name the reader reports in diagnostics.
func (r *Reader) Source() string {
	return r.source
}

// Close releases the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}
