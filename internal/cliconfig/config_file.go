package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Feeds          []string `toml:"feeds"`
	FeedRoot       string   `toml:"feed_root"`
	Targets        []string `toml:"targets"`
	TargetsFile    string   `toml:"targets_file"`
	Async          *bool    `toml:"async"`
	LoadFrom       []string `toml:"load_from"`
	Output         string   `toml:"output"`
	BatchSize      *int     `toml:"batch_size"`
	MaxQueueDepth  *int     `toml:"max_queue_depth"`
	GatePoll       string   `toml:"gate_poll"`
	GateQueues     []string `toml:"gate_queues"`
	AMQPURL        string   `toml:"amqp_url"`
	Exchange       string   `toml:"exchange"`
	RoutingKey     string   `toml:"routing_key"`
	PublishTimeout string   `toml:"publish_timeout"`
	StoreDriver    string   `toml:"store_driver"`
	StoreDSN       string   `toml:"store_dsn"`
	ContentURL     string   `toml:"content_url"`
	ContentToken   string   `toml:"content_token"`
	ContentTimeout string   `toml:"content_timeout"`
	Watch          *bool    `toml:"watch"`
	WatchDebounce  string   `toml:"watch_debounce"`
	PushgatewayURL string   `toml:"pushgateway_url"`
	LogLevel       string   `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.recship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".recship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setStrings("feed", fc.Feeds, &cfg.Feeds)
	s.setString("feed-root", fc.FeedRoot, &cfg.FeedRoot)
	s.setStrings("target", fc.Targets, &cfg.Targets)
	s.setString("targets-file", fc.TargetsFile, &cfg.TargetsFile)
	s.setStrings("load-from", fc.LoadFrom, &cfg.LoadFrom)
	s.setString("output", fc.Output, &cfg.Output)
	s.setStrings("gate-queue", fc.GateQueues, &cfg.GateQueues)
	s.setString("amqp-url", fc.AMQPURL, &cfg.AMQPURL)
	s.setString("exchange", fc.Exchange, &cfg.Exchange)
	s.setString("routing-key", fc.RoutingKey, &cfg.RoutingKey)
	s.setString("store-driver", fc.StoreDriver, &cfg.StoreDriver)
	s.setString("store-dsn", fc.StoreDSN, &cfg.StoreDSN)
	s.setString("content-url", fc.ContentURL, &cfg.ContentURL)
	s.setString("content-token", fc.ContentToken, &cfg.ContentToken)
	s.setString("pushgateway-url", fc.PushgatewayURL, &cfg.PushgatewayURL)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("gate-poll", fc.GatePoll, &cfg.GatePoll); err != nil {
		return err
	}
	if err := s.setDuration("publish-timeout", fc.PublishTimeout, &cfg.PublishTimeout); err != nil {
		return err
	}
	if err := s.setDuration("content-timeout", fc.ContentTimeout, &cfg.ContentTimeout); err != nil {
		return err
	}
	if err := s.setDuration("watch-debounce", fc.WatchDebounce, &cfg.WatchDebounce); err != nil {
		return err
	}

	s.setInt("batch-size", fc.BatchSize, &cfg.BatchSize)
	s.setInt("max-queue-depth", fc.MaxQueueDepth, &cfg.MaxQueueDepth)

	s.setBool("async", fc.Async, &cfg.Async)
	s.setBool("watch", fc.Watch, &cfg.Watch)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
