package cliconfig

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/bft-labs/recship/internal/domain"
)

// LoadTargetsFile reads identifiers one per line. Blank lines and lines
// starting with '#' are ignored. Only the first tab-separated field is used,
// so a feed file can double as an allow-list. A missing file or one without
// identifiers is a configuration error.
func LoadTargetsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: targets file: %v", domain.ErrInvalidConfig, err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, _, _ := strings.Cut(line, "\t")
		ids = append(ids, strings.TrimSpace(id))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read targets file %s: %w", path, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: targets file %s has no identifiers", domain.ErrInvalidConfig, path)
	}
	return ids, nil
}
