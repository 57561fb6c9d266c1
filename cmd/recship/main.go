package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/recship/internal/adapters/metrics"
	"github.com/bft-labs/recship/internal/cliconfig"
	"github.com/bft-labs/recship/internal/watch"
	"github.com/bft-labs/recship/pkg/log"
	"github.com/bft-labs/recship/pkg/recship"
)

const helpDescription = `
Feed record identifiers to the merge pipeline without drowning its workers.

Async mode publishes the feed in fixed-size batches and holds each publish
while the worker queues are too deep. Sync mode looks up new or changed
records, loads their content, merges it, and persists the result or writes
it to a JSON report.

Configuration is layered: defaults, config file, .env file, RECSHIP_*
environment variables, then flags.
`

var exampleUsage = strings.TrimSpace(`
  recship --async --feed all.links --feed-root /proj/ads/abstracts/config/links
  recship --feed changed.tsv --targets-file wanted.txt --load-from docs.jsonl --output report.json
  recship --config $HOME/.recship/config.toml --watch
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath, envFile string

	logger, _ := cliconfig.NewLogger(os.Stderr, "info")

	root := &cobra.Command{
		Use:           "recship",
		Short:         "Dispatch record feeds to the merge pipeline with queue-depth backpressure",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			// Positional arguments are feeds too.
			if len(args) > 0 {
				cfg.Feeds = append(cfg.Feeds, args...)
				changed["feed"] = true
			}

			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}
			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if envFile == "" && cliconfig.FileExists(".env") {
				envFile = ".env"
			}
			if envFile != "" {
				if err := cliconfig.LoadEnvFile(envFile); err != nil {
					return err
				}
			}
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			l, err := cliconfig.NewLogger(os.Stderr, cfg.LogLevel)
			if err != nil {
				return err
			}
			logger = l
			zl := logger.Logger()
			zl.Info().Interface("config", redacted(cfg)).Msg("configuration")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.recship/config.toml)")
	f.StringVar(&envFile, "env-file", "", "KEY=VALUE file loaded into the environment (default: ./.env if present)")

	f.StringSliceVar(&cfg.Feeds, "feed", cfg.Feeds, "feed file of identifier<TAB>fingerprint lines (repeatable)")
	f.StringVar(&cfg.FeedRoot, "feed-root", cfg.FeedRoot, "directory relative feed paths are resolved in")
	f.StringSliceVar(&cfg.Targets, "target", cfg.Targets, "only dispatch these identifiers (repeatable)")
	f.StringVar(&cfg.TargetsFile, "targets-file", cfg.TargetsFile, "file of identifiers to dispatch, one per line")

	f.BoolVar(&cfg.Async, "async", cfg.Async, "publish batches to the worker pool instead of merging in-process")
	f.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "records per published batch")
	f.IntVar(&cfg.MaxQueueDepth, "max-queue-depth", cfg.MaxQueueDepth, "hold publishing while a worker queue has this many messages")
	f.DurationVar(&cfg.GatePoll, "gate-poll", cfg.GatePoll, "delay between queue depth checks while held")
	f.StringSliceVar(&cfg.GateQueues, "gate-queue", cfg.GateQueues, "worker queue checked before each publish (repeatable)")
	f.StringVar(&cfg.AMQPURL, "amqp-url", cfg.AMQPURL, "broker URL")
	f.StringVar(&cfg.Exchange, "exchange", cfg.Exchange, "exchange batches are published to")
	f.StringVar(&cfg.RoutingKey, "routing-key", cfg.RoutingKey, "routing key of published batches")
	f.DurationVar(&cfg.PublishTimeout, "publish-timeout", cfg.PublishTimeout, "timeout for one connect and publish")

	f.StringSliceVar(&cfg.LoadFrom, "load-from", cfg.LoadFrom, "JSON Lines document file used instead of the export service (repeatable)")
	f.StringVar(&cfg.Output, "output", cfg.Output, "write a JSON report here instead of persisting")
	f.StringVar(&cfg.StoreDriver, "store-driver", cfg.StoreDriver, "record store: postgres or clickhouse")
	f.StringVar(&cfg.StoreDSN, "store-dsn", cfg.StoreDSN, "record store connection string")
	f.StringVar(&cfg.ContentURL, "content-url", cfg.ContentURL, "base URL of the content export service")
	f.StringVar(&cfg.ContentToken, "content-token", cfg.ContentToken, "bearer token for the content export service")
	f.DurationVar(&cfg.ContentTimeout, "content-timeout", cfg.ContentTimeout, "HTTP timeout for the content export service")

	f.BoolVar(&cfg.Watch, "watch", cfg.Watch, "re-run whenever a feed file changes")
	f.DurationVar(&cfg.WatchDebounce, "watch-debounce", cfg.WatchDebounce, "quiet period after a feed change before re-running")
	f.StringVar(&cfg.PushgatewayURL, "pushgateway-url", cfg.PushgatewayURL, "push run metrics to this Prometheus Pushgateway")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")

	if err := root.Execute(); err != nil {
		logger.Error("recship", log.Err(err))
		os.Exit(1)
	}
}

// run dispatches once, or keeps dispatching on feed changes with --watch.
func run(ctx context.Context, cfg cliconfig.Config, logger log.Logger) error {
	opts := []recship.Option{recship.WithLogger(logger)}

	var recorder *metrics.Recorder
	if cfg.PushgatewayURL != "" {
		recorder = metrics.NewRecorder()
		opts = append(opts, recship.WithEventHandler(recorder))
	}

	r, err := recship.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("create recship: %w", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			logger.Warn("close store", log.Err(err))
		}
	}()

	once := func(ctx context.Context) error {
		summary, err := r.Run(ctx)
		if recorder != nil && summary.RunID != "" {
			recorder.ObserveRun(summary)
			if perr := recorder.Push(ctx, cfg.PushgatewayURL, summary); perr != nil {
				logger.Warn("metrics push failed", log.Err(perr))
			}
		}
		if err != nil {
			return err
		}
		logger.Info("run complete",
			log.String("run_id", summary.RunID),
			log.Int("sources", len(summary.Sources)),
			log.Duration("duration", summary.Duration),
		)
		return nil
	}

	if !cfg.Watch {
		err := once(ctx)
		if errors.Is(err, context.Canceled) {
			logger.Info("interrupted")
			return nil
		}
		return err
	}

	w, err := watch.New(watch.Config{
		Files:    feedPaths(cfg),
		Debounce: cfg.WatchDebounce,
	}, once, logger)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// feedPaths resolves the feeds the way the dispatcher opens them.
func feedPaths(cfg cliconfig.Config) []string {
	paths := make([]string, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		if !filepath.IsAbs(f) && cfg.FeedRoot != "" {
			f = filepath.Join(cfg.FeedRoot, f)
		}
		paths = append(paths, f)
	}
	return paths
}

// redacted masks credentials before the config is logged.
func redacted(cfg cliconfig.Config) cliconfig.Config {
	if cfg.ContentToken != "" {
		cfg.ContentToken = "*****"
	}
	cfg.AMQPURL = redactDSN(cfg.AMQPURL)
	cfg.StoreDSN = redactDSN(cfg.StoreDSN)
	return cfg
}

const redactedSecret = "xxxxx"

// kvPassword matches the password of a libpq key/value DSN, quoted or bare.
var kvPassword = regexp.MustCompile(`(?i)(\bpassword\s*=\s*)('(?:[^'\\]|\\.)*'|\S*)`)

// redactDSN masks the password in URL userinfo, in a password query
// parameter, and in key/value DSNs.
func redactDSN(s string) string {
	if !strings.Contains(s, "://") {
		return kvPassword.ReplaceAllString(s, "${1}"+redactedSecret)
	}
	u, err := url.Parse(s)
	if err != nil {
		return kvPassword.ReplaceAllString(s, "${1}"+redactedSecret)
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), redactedSecret)
		}
	}
	if q := u.Query(); q.Has("password") {
		q.Set("password", redactedSecret)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
