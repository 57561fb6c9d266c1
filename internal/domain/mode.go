package domain

import "fmt"

// DispatchMode selects how accepted records are handled for a whole run.
type DispatchMode int

const (
	// ModeSync gathers each source and merges it in-process.
	ModeSync DispatchMode = iota
	// ModeAsync publishes batches to the worker pool.
	ModeAsync
)

// String returns a human-readable representation of the mode.
func (m DispatchMode) String() string {
	switch m {
	case ModeSync:
		return "sync"
	case ModeAsync:
		return "async"
	default:
		return "unknown"
	}
}

// ParseDispatchMode converts "sync" or "async" to a DispatchMode.
func ParseDispatchMode(s string) (DispatchMode, error) {
	switch s {
	case "sync":
		return ModeSync, nil
	case "async":
		return ModeAsync, nil
	default:
		return ModeSync, fmt.Errorf("%w: unknown dispatch mode %q", ErrInvalidConfig, s)
	}
}
