package fs

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bft-labs/recship/internal/domain"
	"github.com/bft-labs/recship/internal/ports"
)

const maxDocumentBytes = 16 << 20

type fileDocument struct {
	Identifier string          `json:"identifier"`
	Origin     string          `json:"origin"`
	Content    json.RawMessage `json:"content"`
}

// ContentFileLoader implements ports.ContentLoader over JSON Lines files of
// {"identifier", "origin", "content"} documents.
type ContentFileLoader struct {
	files  []string
	logger ports.Logger
}

// NewContentFileLoader creates a loader. Files given in LoadOptions take
// precedence over files.
func NewContentFileLoader(files []string, logger ports.Logger) *ContentFileLoader {
	return &ContentFileLoader{files: files, logger: logger}
}

// LoadContent returns the documents of records, grouped in record order and
// in file order within a record. A document without an origin takes the
// base name of its file.
func (l *ContentFileLoader) LoadContent(ctx context.Context, records []domain.Record, opts ports.LoadOptions) ([]domain.Document, error) {
	files := opts.Files
	if len(files) == 0 {
		files = l.files
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no content files configured", domain.ErrInvalidConfig)
	}
	if len(records) == 0 {
		return nil, nil
	}

	wanted := make(map[string]struct{}, len(records))
	for _, r := range records {
		wanted[r.ID] = struct{}{}
	}

	found := make(map[string][]fileDocument, len(records))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := l.scanFile(path, wanted, found); err != nil {
			return nil, err
		}
	}

	var out []domain.Document
	emitted := make(map[string]struct{}, len(found))
	for _, r := range records {
		if _, done := emitted[r.ID]; done {
			continue
		}
		emitted[r.ID] = struct{}{}
		for _, d := range found[r.ID] {
			out = append(out, domain.Document{Record: r, Origin: d.Origin, Content: d.Content})
		}
	}

	l.logger.Debug("loaded content from files",
		ports.Strings("files", files),
		ports.Int("requested", len(records)),
		ports.Int("documents", len(out)),
	)
	return out, nil
}

func (l *ContentFileLoader) scanFile(path string, wanted map[string]struct{}, found map[string][]fileDocument) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open content file: %w", err)
	}
	defer f.Close()

	origin := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxDocumentBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var d fileDocument
		if err := json.Unmarshal([]byte(line), &d); err != nil {
			return fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		if _, ok := wanted[d.Identifier]; !ok {
			continue
		}
		if d.Origin == "" {
			d.Origin = origin
		}
		found[d.Identifier] = append(found[d.Identifier], d)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
