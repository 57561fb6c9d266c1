// Package metrics records dispatch events as Prometheus metrics and pushes
// them to a Pushgateway at the end of a run.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/bft-labs/recship/internal/app"
)

const (
	namespace = "recship"
	jobName   = "recship"
)

// Recorder implements app.EventHandler on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	accepted         prometheus.Counter
	malformed        prometheus.Counter
	batchesPublished prometheus.Counter
	recordsPublished prometheus.Counter
	gateHolds        prometheus.Counter
	merged           prometheus.Counter
	sources          *prometheus.CounterVec
	publishSeconds   prometheus.Histogram
	runDuration      prometheus.Gauge
}

// NewRecorder creates a recorder with all metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_accepted_total",
			Help:      "Well-formed feed records that passed the allow-list.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_malformed_total",
			Help:      "Feed lines skipped for having the wrong number of fields.",
		}),
		batchesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_published_total",
			Help:      "Batches published to the broker.",
		}),
		recordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Records published to the broker.",
		}),
		gateHolds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_holds_total",
			Help:      "Times publishing was held because a queue was at its ceiling.",
		}),
		merged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_merged_total",
			Help:      "Merged records produced in sync mode.",
		}),
		sources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_total",
			Help:      "Feed sources processed, by final state.",
		}, []string{"state"}),
		publishSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time to publish one batch, including the broker connection.",
			Buckets:   prometheus.DefBuckets,
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last dispatch run.",
		}),
	}
	r.registry.MustRegister(
		r.accepted,
		r.malformed,
		r.batchesPublished,
		r.recordsPublished,
		r.gateHolds,
		r.merged,
		r.sources,
		r.publishSeconds,
		r.runDuration,
	)
	return r
}

// Registry returns the registry the metrics live in.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// OnStateChange is a no-op; final states are counted in OnSourceDone.
func (r *Recorder) OnStateChange(source string, previous, current app.State) {}

// OnBatchPublished counts one published batch.
func (r *Recorder) OnBatchPublished(source string, records int, d time.Duration) {
	r.batchesPublished.Inc()
	r.recordsPublished.Add(float64(records))
	r.publishSeconds.Observe(d.Seconds())
}

// OnGateHold counts gate holds.
func (r *Recorder) OnGateHold(source string, holds int) {
	r.gateHolds.Add(float64(holds))
}

// OnSourceDone records the feed counters of a finished source.
func (r *Recorder) OnSourceDone(s app.SourceSummary) {
	r.accepted.Add(float64(s.Feed.Accepted))
	r.malformed.Add(float64(s.Feed.Malformed))
	r.merged.Add(float64(s.Merged))
	r.sources.WithLabelValues(s.State.String()).Inc()
}

// ObserveRun records the duration of a finished run.
func (r *Recorder) ObserveRun(summary app.RunSummary) {
	r.runDuration.Set(summary.Duration.Seconds())
}

// Push sends the current metrics to the Pushgateway at url, grouped by mode.
func (r *Recorder) Push(ctx context.Context, url string, summary app.RunSummary) error {
	err := push.New(url, jobName).
		Gatherer(r.registry).
		Grouping("mode", summary.Mode.String()).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
