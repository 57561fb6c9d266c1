// Package watch re-runs dispatch when feed files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/recship/internal/ports"
)

// DefaultDebounce is the quiet period after the last change before a run.
const DefaultDebounce = 2 * time.Second

// RunFunc performs one full dispatch run.
type RunFunc func(ctx context.Context) error

// Config holds configuration for a Watcher.
type Config struct {
	// Files are the feed files to watch. Their parent directories are
	// watched so that files replaced by rename are still seen.
	Files []string

	// Debounce is the delay after the last change before a run starts.
	Debounce time.Duration
}

// Watcher runs a RunFunc once, then again whenever a watched file is
// written or created. Runs never overlap.
type Watcher struct {
	files    map[string]struct{}
	dirs     []string
	debounce time.Duration
	run      RunFunc
	logger   ports.Logger
	runs     int
}

// New creates a watcher. Files are made absolute against the current
// working directory.
func New(cfg Config, run RunFunc, logger ports.Logger) (*Watcher, error) {
	if len(cfg.Files) == 0 {
		return nil, errors.New("watch: no files to watch")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	w := &Watcher{
		files:    make(map[string]struct{}, len(cfg.Files)),
		debounce: cfg.Debounce,
		run:      run,
		logger:   logger,
	}
	seen := make(map[string]struct{})
	for _, f := range cfg.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", f, err)
		}
		w.files[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := seen[dir]; !ok {
			seen[dir] = struct{}{}
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// Run performs the initial run and then watches until ctx is cancelled.
// A failed run is logged and watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	w.runOnce(ctx, "initial")

	// quiet is nil until a relevant change arms the debounce.
	var quiet <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("feed changed", ports.String("file", event.Name), ports.String("op", event.Op.String()))
			quiet = time.After(w.debounce)

		case <-quiet:
			quiet = nil
			w.runOnce(ctx, "change")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", ports.Err(err))
		}
	}
}

// Runs returns how many runs were started.
func (w *Watcher) Runs() int {
	return w.runs
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	_, ok := w.files[filepath.Clean(event.Name)]
	return ok
}

func (w *Watcher) runOnce(ctx context.Context, trigger string) {
	w.runs++
	if err := w.run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("dispatch run failed, waiting for the next change",
			ports.Err(err),
			ports.String("trigger", trigger),
		)
	}
}
