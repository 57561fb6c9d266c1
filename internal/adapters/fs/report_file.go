// Package fs implements file-backed adapters: the merge report writer and
// the local document loader.
package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/recship/internal/domain"
)

// ReportFileWriter implements ports.ReportWriter with JSON files.
type ReportFileWriter struct{}

// NewReportFileWriter creates a report writer.
func NewReportFileWriter() *ReportFileWriter {
	return &ReportFileWriter{}
}

// WriteReport writes report to path atomically (temp file, then rename).
// Missing parent directories are created.
func (w *ReportFileWriter) WriteReport(path string, report domain.Report) error {
	if report.Merged == nil {
		report.Merged = []domain.MergedRecord{}
	}
	if report.NonMerged == nil {
		report.NonMerged = []domain.Document{}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(report, "", " ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}
