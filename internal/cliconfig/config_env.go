package cliconfig

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set are not overridden.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnvConfig applies configuration from environment variables (RECSHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setStringsFromString("feed", os.Getenv("RECSHIP_FEEDS"), &cfg.Feeds)
	s.setString("feed-root", os.Getenv("RECSHIP_FEED_ROOT"), &cfg.FeedRoot)
	s.setStringsFromString("target", os.Getenv("RECSHIP_TARGETS"), &cfg.Targets)
	s.setString("targets-file", os.Getenv("RECSHIP_TARGETS_FILE"), &cfg.TargetsFile)
	s.setStringsFromString("load-from", os.Getenv("RECSHIP_LOAD_FROM"), &cfg.LoadFrom)
	s.setString("output", os.Getenv("RECSHIP_OUTPUT"), &cfg.Output)
	s.setStringsFromString("gate-queue", os.Getenv("RECSHIP_GATE_QUEUES"), &cfg.GateQueues)
	s.setString("amqp-url", os.Getenv("RECSHIP_AMQP_URL"), &cfg.AMQPURL)
	s.setString("exchange", os.Getenv("RECSHIP_EXCHANGE"), &cfg.Exchange)
	s.setString("routing-key", os.Getenv("RECSHIP_ROUTING_KEY"), &cfg.RoutingKey)
	s.setString("store-driver", os.Getenv("RECSHIP_STORE_DRIVER"), &cfg.StoreDriver)
	s.setString("store-dsn", os.Getenv("RECSHIP_STORE_DSN"), &cfg.StoreDSN)
	s.setString("content-url", os.Getenv("RECSHIP_CONTENT_URL"), &cfg.ContentURL)
	s.setString("content-token", os.Getenv("RECSHIP_CONTENT_TOKEN"), &cfg.ContentToken)
	s.setString("pushgateway-url", os.Getenv("RECSHIP_PUSHGATEWAY_URL"), &cfg.PushgatewayURL)
	s.setString("log-level", os.Getenv("RECSHIP_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("gate-poll", os.Getenv("RECSHIP_GATE_POLL"), &cfg.GatePoll); err != nil {
		return err
	}
	if err := s.setDuration("publish-timeout", os.Getenv("RECSHIP_PUBLISH_TIMEOUT"), &cfg.PublishTimeout); err != nil {
		return err
	}
	if err := s.setDuration("content-timeout", os.Getenv("RECSHIP_CONTENT_TIMEOUT"), &cfg.ContentTimeout); err != nil {
		return err
	}
	if err := s.setDuration("watch-debounce", os.Getenv("RECSHIP_WATCH_DEBOUNCE"), &cfg.WatchDebounce); err != nil {
		return err
	}

	if err := s.setIntFromString("batch-size", os.Getenv("RECSHIP_BATCH_SIZE"), &cfg.BatchSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-queue-depth", os.Getenv("RECSHIP_MAX_QUEUE_DEPTH"), &cfg.MaxQueueDepth); err != nil {
		return err
	}

	s.setBoolFromString("async", os.Getenv("RECSHIP_ASYNC"), &cfg.Async)
	s.setBoolFromString("watch", os.Getenv("RECSHIP_WATCH"), &cfg.Watch)

	return nil
}
