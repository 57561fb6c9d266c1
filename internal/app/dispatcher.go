package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/recship/internal/domain"
	"github.com/bft-labs/recship/internal/feed"
	"github.com/bft-labs/recship/internal/ports"
)

// DispatcherConfig contains configuration for a dispatch run.
type DispatcherConfig struct {
	Mode      domain.DispatchMode
	BatchSize int

	// Targets restricts parsing to these identifiers; nil accepts all.
	Targets domain.AllowSet

	// FeedRoot is the directory relative feed paths resolve against.
	// Empty means the current working directory.
	FeedRoot string

	// Load is passed through to the content loader in sync mode.
	Load ports.LoadOptions

	// ReportPath, when set, replaces persistence with a report file.
	ReportPath string
}

// Dependencies are the collaborators a Dispatcher drives.
// Async mode needs Gate and Publisher; sync mode needs Lookup, Loader,
// Merger and either Reports (ReportPath set) or Persister.
type Dependencies struct {
	Gate      *QueueDepthGate
	Publisher ports.BatchPublisher
	Lookup    ports.RecordLookup
	Loader    ports.ContentLoader
	Merger    ports.Merger
	Persister ports.Persister
	Reports   ports.ReportWriter
	Logger    ports.Logger
	Events    EventHandler
}

// EventHandler receives dispatch progress. All methods are called from the
// dispatching goroutine.
type EventHandler interface {
	EventEmitter
	OnBatchPublished(source string, records int, duration time.Duration)
	OnGateHold(source string, holds int)
	OnSourceDone(summary SourceSummary)
}

// SourceSummary describes what happened to one feed source.
type SourceSummary struct {
	Source     string
	State      State
	Feed       feed.Stats
	Batches    int
	Published  int
	GateHolds  int
	Gathered   int
	New        int
	Loaded     int
	Merged     int
	ReportPath string
	Duration   time.Duration
}

// RunSummary describes one dispatch run over all sources.
type RunSummary struct {
	RunID    string
	Mode     domain.DispatchMode
	Sources  []SourceSummary
	Duration time.Duration
}

// Dispatcher routes feed records to the worker pool or the merge pipeline.
// Sources are processed one at a time and batches strictly in sequence.
type Dispatcher struct {
	config DispatcherConfig
	deps   Dependencies
	logger ports.Logger
}

// NewDispatcher validates the configuration against the supplied
// dependencies. Configuration faults are reported here, before any
// dispatching starts.
func NewDispatcher(config DispatcherConfig, deps Dependencies) (*Dispatcher, error) {
	if config.BatchSize < 1 {
		return nil, domain.ErrInvalidBatchSize
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required", domain.ErrInvalidConfig)
	}

	var missing []string
	switch config.Mode {
	case domain.ModeAsync:
		if deps.Gate == nil {
			missing = append(missing, "queue depth gate")
		}
		if deps.Publisher == nil {
			missing = append(missing, "publisher")
		}
	case domain.ModeSync:
		if deps.Lookup == nil {
			missing = append(missing, "record lookup")
		}
		if deps.Loader == nil {
			missing = append(missing, "content loader")
		}
		if deps.Merger == nil {
			missing = append(missing, "merger")
		}
		if config.ReportPath != "" && deps.Reports == nil {
			missing = append(missing, "report writer")
		}
		if config.ReportPath == "" && deps.Persister == nil {
			missing = append(missing, "persister")
		}
	default:
		return nil, fmt.Errorf("%w: unknown dispatch mode %d", domain.ErrInvalidConfig, config.Mode)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s mode requires %s", domain.ErrInvalidConfig, config.Mode, strings.Join(missing, ", "))
	}

	return &Dispatcher{
		config: config,
		deps:   deps,
		logger: deps.Logger,
	}, nil
}

// Run dispatches every source in order. The first infrastructure fault
// aborts the run; batches already published stay published.
func (d *Dispatcher) Run(ctx context.Context, sources []string) (RunSummary, error) {
	start := time.Now()
	summary := RunSummary{
		RunID: uuid.NewString(),
		Mode:  d.config.Mode,
	}
	ctx = ports.WithRunID(ctx, summary.RunID)

	if d.config.Mode == domain.ModeSync {
		if err := CheckReportPaths(d.config.ReportPath, sources); err != nil {
			return summary, err
		}
	}

	d.logger.Info("dispatch run started",
		ports.String("run_id", summary.RunID),
		ports.String("mode", d.config.Mode.String()),
		ports.Int("sources", len(sources)),
		ports.Int("batch_size", d.config.BatchSize),
	)

	for _, src := range sources {
		ss, err := d.dispatchSource(ctx, src, len(sources) > 1)
		summary.Sources = append(summary.Sources, ss)
		if d.deps.Events != nil {
			d.deps.Events.OnSourceDone(ss)
		}
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("source %s: %w", src, err)
		}
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// dispatchSource runs one source through Gathering, Dispatching and Done.
func (d *Dispatcher) dispatchSource(ctx context.Context, src string, multi bool) (SourceSummary, error) {
	start := time.Now()
	ss := SourceSummary{Source: src}
	lc := NewSourceLifecycle(src, d.logger, d.deps.Events)

	err := d.runSource(ctx, lc, &ss, multi)
	if err != nil {
		lc.Fail()
	}
	ss.State = lc.State()
	ss.Duration = time.Since(start)

	if err == nil {
		d.logger.Info("source dispatched",
			ports.String("source", src),
			ports.Int("lines", ss.Feed.Lines),
			ports.Int("comments", ss.Feed.Comments),
			ports.Int("blank", ss.Feed.Blank),
			ports.Int("accepted", ss.Feed.Accepted),
			ports.Int("malformed", ss.Feed.Malformed),
			ports.Int("filtered", ss.Feed.Filtered),
			ports.Int("batches", ss.Batches),
			ports.Int("published", ss.Published),
			ports.Int("gate_holds", ss.GateHolds),
			ports.Int("new", ss.New),
			ports.Int("merged", ss.Merged),
			ports.Duration("duration", ss.Duration),
		)
	}
	return ss, err
}

func (d *Dispatcher) runSource(ctx context.Context, lc *SourceLifecycle, ss *SourceSummary, multi bool) error {
	batcher, err := NewBatcher(d.config.BatchSize)
	if err != nil {
		return err
	}
	async := d.config.Mode == domain.ModeAsync
	var gathered []domain.Record

	err = feed.InDir(d.config.FeedRoot, func() error {
		r, err := feed.Open(ss.Source, d.config.Targets, d.logger)
		if err != nil {
			return err
		}
		defer r.Close()
		defer func() { ss.Feed = r.Stats() }()

		for {
			rec, err := r.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if !async {
				gathered = append(gathered, rec)
				continue
			}
			if batcher.Add(rec) {
				if err := d.publishBatch(ctx, lc, ss, batcher.Take(), false); err != nil {
					return err
				}
			}
		}
	})
	if err != nil {
		return err
	}

	if !async {
		return d.dispatchGathered(ctx, lc, ss, gathered, multi)
	}

	// The trailing partial batch only exists once the whole feed was read.
	if batcher.HasPending() {
		return d.publishBatch(ctx, lc, ss, batcher.Take(), true)
	}
	return lc.TransitionTo(StateDone)
}

// publishBatch gates then publishes one batch.
func (d *Dispatcher) publishBatch(ctx context.Context, lc *SourceLifecycle, ss *SourceSummary, batch domain.Batch, final bool) error {
	if err := lc.TransitionTo(StateDispatching); err != nil {
		return err
	}

	holds, err := d.deps.Gate.Wait(ctx)
	ss.GateHolds += holds
	if holds > 0 && d.deps.Events != nil {
		d.deps.Events.OnGateHold(ss.Source, holds)
	}
	if err != nil {
		return err
	}

	start := time.Now()
	if err := d.deps.Publisher.Publish(ctx, ss.Source, batch); err != nil {
		d.logger.Error("publish failed",
			ports.Err(err),
			ports.String("source", ss.Source),
			ports.Int("records", batch.Size()),
			ports.Int("published_batches", ss.Batches),
		)
		return fmt.Errorf("%w: %w", domain.ErrPublish, err)
	}
	duration := time.Since(start)

	ss.Batches++
	ss.Published += batch.Size()
	d.logger.Info("published batch",
		ports.String("source", ss.Source),
		ports.Int("records", batch.Size()),
		ports.String("first", batch.First().ID),
		ports.String("last", batch.Last().ID),
		ports.Duration("duration", duration),
	)
	if d.deps.Events != nil {
		d.deps.Events.OnBatchPublished(ss.Source, batch.Size(), duration)
	}

	if final {
		return lc.TransitionTo(StateDone)
	}
	return lc.TransitionTo(StateGathering)
}

// dispatchGathered hands a whole source to the merge pipeline.
func (d *Dispatcher) dispatchGathered(ctx context.Context, lc *SourceLifecycle, ss *SourceSummary, gathered []domain.Record, multi bool) error {
	ss.Gathered = len(gathered)
	if len(gathered) == 0 {
		d.logger.Info("no records gathered, nothing to merge", ports.String("source", ss.Source))
		return lc.TransitionTo(StateDone)
	}
	if err := lc.TransitionTo(StateDispatching); err != nil {
		return err
	}

	fresh, err := d.deps.Lookup.LookupNew(ctx, gathered)
	if err != nil {
		return fmt.Errorf("lookup new records: %w", err)
	}
	ss.New = len(fresh)
	d.logger.Debug("looked up new records",
		ports.String("source", ss.Source),
		ports.Int("gathered", len(gathered)),
		ports.Int("new", len(fresh)),
	)

	docs, err := d.deps.Loader.LoadContent(ctx, fresh, d.config.Load)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	ss.Loaded = len(docs)

	merged, err := d.deps.Merger.Merge(ctx, docs)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	ss.Merged = len(merged)

	if d.config.ReportPath != "" {
		path := ReportPathFor(d.config.ReportPath, ss.Source, multi)
		report := domain.Report{Merged: merged, NonMerged: docs}
		if err := d.deps.Reports.WriteReport(path, report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		ss.ReportPath = path
		d.logger.Info("wrote report", ports.String("source", ss.Source), ports.String("path", path))
	} else if err := d.deps.Persister.Persist(ctx, merged); err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	return lc.TransitionTo(StateDone)
}

// ReportPathFor returns the report file for source. With several sources the
// source's base name is inserted before the extension so reports do not
// overwrite each other.
func ReportPathFor(base, source string, multi bool) string {
	if !multi {
		return base
	}
	name := filepath.Base(source)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "." + name + ext
}

// CheckReportPaths fails when two sources would write the same report, as
// feeds sharing a base name in different directories do.
func CheckReportPaths(base string, sources []string) error {
	if base == "" {
		return nil
	}
	multi := len(sources) > 1
	owner := make(map[string]string, len(sources))
	for _, src := range sources {
		path := ReportPathFor(base, src, multi)
		if prev, ok := owner[path]; ok {
			return fmt.Errorf("%w: feeds %s and %s would both write report %s",
				domain.ErrInvalidConfig, prev, src, path)
		}
		owner[path] = src
	}
	return nil
}
