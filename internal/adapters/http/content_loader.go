package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bft-labs/recship/internal/domain"
	"github.com/bft-labs/recship/internal/ports"
)

const exportEndpoint = "/v1/records/export"

// maxErrorBody bounds how much of a failed response is quoted in the error.
const maxErrorBody = 4 << 10

// exportRequest is the body POSTed to the export endpoint.
type exportRequest struct {
	Identifiers []string `json:"identifiers"`
}

// exportDocument is one element of the export response.
type exportDocument struct {
	Identifier string          `json:"identifier"`
	Origin     string          `json:"origin"`
	Content    json.RawMessage `json:"content"`
}

// ContentLoader implements ports.ContentLoader against the record export service.
type ContentLoader struct {
	client  ports.HTTPClient
	baseURL string
	token   string
	logger  ports.Logger
}

// NewContentLoader creates a loader for the service at baseURL.
func NewContentLoader(client ports.HTTPClient, baseURL, token string, logger ports.Logger) *ContentLoader {
	return &ContentLoader{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		logger:  logger,
	}
}

// LoadContent fetches the documents of records. Documents for identifiers
// that were not requested are dropped. opts.Files is ignored; file loading is
// handled by the fs adapter.
func (l *ContentLoader) LoadContent(ctx context.Context, records []domain.Record, opts ports.LoadOptions) ([]domain.Document, error) {
	if len(records) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(exportRequest{Identifiers: domain.IDs(records)})
	if err != nil {
		return nil, fmt.Errorf("marshal export request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+exportEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}
	if runID := ports.RunIDFrom(ctx); runID != "" {
		req.Header.Set("X-Recship-Run-Id", runID)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("export service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var docs []exportDocument
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode export response: %w", err)
	}

	byID := make(map[string]domain.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	out := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		rec, ok := byID[d.Identifier]
		if !ok {
			l.logger.Debug("dropping unrequested document", ports.String("identifier", d.Identifier))
			continue
		}
		out = append(out, domain.Document{Record: rec, Origin: d.Origin, Content: d.Content})
	}

	l.logger.Debug("loaded content",
		ports.Int("requested", len(records)),
		ports.Int("documents", len(out)),
	)
	return out, nil
}
