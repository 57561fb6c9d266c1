package recship

import (
	"github.com/bft-labs/recship/internal/ports"
	"github.com/bft-labs/recship/pkg/log"
)

// HTTPClient is the interface used to call the content export service.
// *http.Client satisfies this interface.
type HTTPClient = ports.HTTPClient

// Re-exported collaborator interfaces.
type (
	BatchPublisher = ports.BatchPublisher
	QueueInspector = ports.QueueInspector
	RecordLookup   = ports.RecordLookup
	ContentLoader  = ports.ContentLoader
	Merger         = ports.Merger
	Persister      = ports.Persister
	ReportWriter   = ports.ReportWriter
)

// Option configures optional behavior of Recship.
type Option func(*options)

// options holds the optional configuration for a Recship instance.
type options struct {
	logger       log.Logger
	httpClient   ports.HTTPClient
	eventHandler EventHandler

	publisher BatchPublisher
	inspector QueueInspector
	lookup    RecordLookup
	loader    ContentLoader
	merger    Merger
	persister Persister
	reports   ReportWriter
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHTTPClient sets the client used for the content export service.
// If not provided, a client with ContentTimeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithEventHandler sets a handler for dispatch events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPublisher replaces the AMQP batch publisher.
func WithPublisher(p BatchPublisher) Option {
	return func(o *options) {
		o.publisher = p
	}
}

// WithQueueInspector replaces the AMQP queue depth inspector.
func WithQueueInspector(i QueueInspector) Option {
	return func(o *options) {
		o.inspector = i
	}
}

// WithLookup replaces the store used to find new records.
func WithLookup(l RecordLookup) Option {
	return func(o *options) {
		o.lookup = l
	}
}

// WithContentLoader replaces the content loader.
func WithContentLoader(l ContentLoader) Option {
	return func(o *options) {
		o.loader = l
	}
}

// WithMerger replaces the document merger.
func WithMerger(m Merger) Option {
	return func(o *options) {
		o.merger = m
	}
}

// WithPersister replaces the store merged records are written to.
func WithPersister(p Persister) Option {
	return func(o *options) {
		o.persister = p
	}
}

// WithReportWriter replaces the report file writer.
func WithReportWriter(w ReportWriter) Option {
	return func(o *options) {
		o.reports = w
	}
}
