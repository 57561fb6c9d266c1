package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bft-labs/recship/internal/domain"
	"github.com/bft-labs/recship/internal/ports"
)

// Default gate configuration values.
const (
	DefaultMaxQueueDepth = 30
	DefaultGatePoll      = 15 * time.Second
)

// DefaultGateQueues are the worker queues watched before each publish.
var DefaultGateQueues = []string{"UpdateRecordsQueue", "ReadRecordsQueue"}

// GateConfig holds configuration for the queue depth gate.
type GateConfig struct {
	// Queues are checked together on every attempt.
	Queues []string

	// Ceiling is the depth at or above which publishing is held.
	Ceiling int

	// PollInterval is the delay between checks while held.
	PollInterval time.Duration
}

// QueueDepthGate holds publishing while any watched queue is too deep.
// It is advisory: other producers can still push a queue past the ceiling
// between the check and the publish.
type QueueDepthGate struct {
	inspector ports.QueueInspector
	queues    []string
	ceiling   int
	poll      time.Duration
	logger    ports.Logger
	after     func(time.Duration) <-chan time.Time
}

// NewQueueDepthGate creates a gate. The ceiling and poll interval must be positive.
func NewQueueDepthGate(cfg GateConfig, inspector ports.QueueInspector, logger ports.Logger) (*QueueDepthGate, error) {
	if cfg.Ceiling <= 0 {
		return nil, fmt.Errorf("%w: max queue depth must be positive", domain.ErrInvalidConfig)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("%w: gate poll interval must be positive", domain.ErrInvalidConfig)
	}
	if len(cfg.Queues) > 0 && inspector == nil {
		return nil, fmt.Errorf("%w: queue inspector is required", domain.ErrInvalidConfig)
	}
	if len(cfg.Queues) == 0 && logger != nil {
		logger.Warn("queue depth gate has no queues, publishing is never held")
	}
	return &QueueDepthGate{
		inspector: inspector,
		queues:    append([]string(nil), cfg.Queues...),
		ceiling:   cfg.Ceiling,
		poll:      cfg.PollInterval,
		logger:    logger,
		after:     time.After,
	}, nil
}

// Wait blocks until every watched queue is strictly below the ceiling.
// Each attempt takes a fresh snapshot of all queues. It returns the number of
// times publishing was held. A failed depth query aborts with
// domain.ErrQueueDepth.
func (g *QueueDepthGate) Wait(ctx context.Context) (int, error) {
	if len(g.queues) == 0 {
		return 0, nil
	}

	holds := 0
	for {
		depths, err := g.snapshot(ctx)
		if err != nil {
			return holds, err
		}

		over := g.overCeiling(depths)
		if len(over) == 0 {
			return holds, nil
		}

		holds++
		g.logger.Info("queue depth at ceiling, holding publish",
			ports.Strings("queues", over),
			ports.Any("depths", depths),
			ports.Int("ceiling", g.ceiling),
			ports.Duration("retry_in", g.poll),
		)

		select {
		case <-ctx.Done():
			return holds, ctx.Err()
		case <-g.after(g.poll):
		}
	}
}

// snapshot reads every queue depth; a partial result is an error.
func (g *QueueDepthGate) snapshot(ctx context.Context) (map[string]int, error) {
	depths, err := g.inspector.QueueDepths(ctx, g.queues)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrQueueDepth, err)
	}
	for _, q := range g.queues {
		if _, ok := depths[q]; !ok {
			return nil, fmt.Errorf("%w: no depth reported for queue %q", domain.ErrQueueDepth, q)
		}
	}
	return depths, nil
}

// overCeiling returns the watched queues at or above the ceiling, sorted.
func (g *QueueDepthGate) overCeiling(depths map[string]int) []string {
	var over []string
	for _, q := range g.queues {
		if depths[q] >= g.ceiling {
			over = append(over, q)
		}
	}
	sort.Strings(over)
	return over
}

// Queues returns the watched queue names.
func (g *QueueDepthGate) Queues() []string {
	return append([]string(nil), g.queues...)
}
