package recship

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/bft-labs/recship/internal/adapters/amqp"
	"github.com/bft-labs/recship/internal/adapters/clickhouse"
	"github.com/bft-labs/recship/internal/adapters/fs"
	httpadapter "github.com/bft-labs/recship/internal/adapters/http"
	"github.com/bft-labs/recship/internal/adapters/merge"
	"github.com/bft-labs/recship/internal/adapters/postgres"
	"github.com/bft-labs/recship/internal/app"
	"github.com/bft-labs/recship/internal/cliconfig"
	"github.com/bft-labs/recship/internal/domain"
	"github.com/bft-labs/recship/internal/ports"
	"github.com/bft-labs/recship/pkg/log"
)

// Config holds the dispatcher configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// DefaultConfig returns a Config with default values. At minimum Feeds must
// be set, plus the broker (async) or store and content source (sync).
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Re-exported dispatch results and events.
type (
	// State is the lifecycle state of one feed source.
	State = app.State

	// EventHandler receives dispatch progress.
	EventHandler = app.EventHandler

	// SourceSummary describes what happened to one feed source.
	SourceSummary = app.SourceSummary

	// RunSummary describes one run over all feeds.
	RunSummary = app.RunSummary
)

// Lifecycle states.
const (
	StateGathering   = app.StateGathering
	StateDispatching = app.StateDispatching
	StateDone        = app.StateDone
	StateFailed      = app.StateFailed
)

// store is a database that can both look up and persist records.
type store interface {
	ports.RecordLookup
	ports.Persister
	Close() error
}

// Recship dispatches feeds according to its Config. Runs are serialized;
// a Recship may be run repeatedly, as the watch mode does.
type Recship struct {
	cfg    Config
	opts   options
	logger log.Logger
	gate   *app.QueueDepthGate

	mu    sync.Mutex
	store store
}

// New validates cfg and builds the default adapters for every collaborator
// not supplied through an Option. Database connections are opened on the
// first Run.
func New(cfg Config, opts ...Option) (*Recship, error) {
	cfg.Feeds = append([]string(nil), cfg.Feeds...)
	cfg.Targets = append([]string(nil), cfg.Targets...)
	cfg.LoadFrom = append([]string(nil), cfg.LoadFrom...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Recship{cfg: cfg, opts: o, logger: o.logger}

	if cfg.Async {
		if o.inspector == nil {
			o.inspector = amqp.NewInspector(cfg.AMQPURL, nil, o.logger)
		}
		if o.publisher == nil {
			o.publisher = amqp.NewPublisher(amqp.PublisherConfig{
				URL:        cfg.AMQPURL,
				Exchange:   cfg.Exchange,
				RoutingKey: cfg.RoutingKey,
				Timeout:    cfg.PublishTimeout,
				AppID:      "recship",
			}, nil, o.logger)
		}
		gate, err := app.NewQueueDepthGate(app.GateConfig{
			Queues:       cfg.GateQueues,
			Ceiling:      cfg.MaxQueueDepth,
			PollInterval: cfg.GatePoll,
		}, o.inspector, o.logger)
		if err != nil {
			return nil, err
		}
		r.gate = gate
	} else {
		if o.loader == nil {
			o.loader = r.defaultLoader(o)
		}
		if o.merger == nil {
			o.merger = merge.NewShallowMerger(o.logger)
		}
		if o.reports == nil {
			o.reports = fs.NewReportFileWriter()
		}
	}

	r.opts = o
	return r, nil
}

func (r *Recship) defaultLoader(o options) ports.ContentLoader {
	if len(r.cfg.LoadFrom) > 0 {
		return fs.NewContentFileLoader(r.cfg.LoadFrom, o.logger)
	}
	client := o.httpClient
	if client == nil {
		client = &http.Client{Timeout: r.cfg.ContentTimeout}
	}
	return httpadapter.NewContentLoader(client, r.cfg.ContentURL, r.cfg.ContentToken, o.logger)
}

// Config returns the validated configuration.
func (r *Recship) Config() Config {
	return r.cfg
}

// Run dispatches every configured feed once. It returns the summary of the
// sources processed so far along with the first fault.
func (r *Recship) Run(ctx context.Context) (RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deps := app.Dependencies{
		Gate:      r.gate,
		Publisher: r.opts.publisher,
		Lookup:    r.opts.lookup,
		Loader:    r.opts.loader,
		Merger:    r.opts.merger,
		Persister: r.opts.persister,
		Reports:   r.opts.reports,
		Logger:    r.logger,
		Events:    r.opts.eventHandler,
	}

	if !r.cfg.Async && r.needsStore() {
		s, err := r.openStore(ctx)
		if err != nil {
			return RunSummary{Mode: r.cfg.Mode()}, err
		}
		if deps.Lookup == nil {
			deps.Lookup = s
		}
		if deps.Persister == nil {
			deps.Persister = s
		}
	}

	d, err := app.NewDispatcher(app.DispatcherConfig{
		Mode:       r.cfg.Mode(),
		BatchSize:  r.cfg.BatchSize,
		Targets:    domain.NewAllowSet(r.cfg.Targets),
		FeedRoot:   r.cfg.FeedRoot,
		Load:       ports.LoadOptions{Files: r.cfg.LoadFrom},
		ReportPath: r.cfg.Output,
	}, deps)
	if err != nil {
		return RunSummary{Mode: r.cfg.Mode()}, err
	}

	return d.Run(ctx, r.cfg.Feeds)
}

func (r *Recship) needsStore() bool {
	if r.opts.lookup == nil {
		return true
	}
	return r.cfg.Output == "" && r.opts.persister == nil
}

// openStore connects to the configured database once and reuses it.
func (r *Recship) openStore(ctx context.Context) (store, error) {
	if r.store != nil {
		return r.store, nil
	}

	var (
		s   store
		err error
	)
	switch r.cfg.StoreDriver {
	case cliconfig.StoreClickHouse:
		s, err = clickhouse.Open(ctx, r.cfg.StoreDSN, r.logger)
	default:
		s, err = postgres.Open(ctx, r.cfg.StoreDSN, r.logger)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", r.cfg.StoreDriver, err)
	}

	r.logger.Info("store connected", log.String("driver", r.cfg.StoreDriver))
	r.store = s
	return s, nil
}

// Close releases the database connection, if one was opened.
func (r *Recship) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	return err
}
