package cliconfig

import (
	"io"

	"github.com/bft-labs/recship/pkg/log"
)

// NewLogger builds the console logger used by the CLI.
func NewLogger(w io.Writer, level string) (*log.ZerologAdapter, error) {
	return log.NewConsoleLogger(w, level)
}
