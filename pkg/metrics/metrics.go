// Package metrics exposes queue activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jdziat/durable-training-queue/pkg/core"
	"github.com/jdziat/durable-training-queue/pkg/scheduler"
)

const namespace = "trainq"

var allStatuses = []core.EntryStatus{
	core.StatusPending,
	core.StatusLaunching,
	core.StatusRunning,
	core.StatusSucceeded,
	core.StatusFailed,
	core.StatusCancelled,
	core.StatusError,
}

// EventSource is a queue's event stream.
type EventSource interface {
	Events() <-chan core.Event
	Unsubscribe(ch <-chan core.Event)
}

// Collector holds the training queue metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	enqueued    *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	deleted     *prometheus.CounterVec
	launches    *prometheus.CounterVec
	archived    *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	ticks       *prometheus.CounterVec
	entries     *prometheus.GaugeVec
	running     *prometheus.GaugeVec
}

// New creates a Collector. Go runtime and process collectors are registered
// alongside the queue metrics.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		enqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_enqueued_total",
				Help:      "Rows accepted into the queue",
			},
			[]string{"queue"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_rejected_total",
				Help:      "Rows refused at submission, by reason",
			},
			[]string{"queue", "reason"},
		),
		deleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_deleted_total",
				Help:      "Entries removed by users",
			},
			[]string{"queue"},
		),
		launches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "launches_total",
				Help:      "Launcher calls, by outcome",
			},
			[]string{"queue", "outcome"},
		),
		archived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_archived_total",
				Help:      "Terminated entries moved to history, by final state",
			},
			[]string{"queue", "state"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Execution duration of archived jobs",
				Buckets:   prometheus.ExponentialBuckets(60, 2, 10),
			},
			[]string{"queue", "state"},
		),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_total",
				Help:      "Scheduler ticks, by result",
			},
			[]string{"result"},
		),
		entries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "entries",
				Help:      "Entries in the queue, by status, as of the last save",
			},
			[]string{"queue", "status"},
		),
		running: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_running",
				Help:      "1 when the queue's running flag is set",
			},
			[]string{"queue"},
		),
	}

	c.registry.MustRegister(
		c.enqueued, c.rejected, c.deleted, c.launches, c.archived,
		c.jobDuration, c.ticks, c.entries, c.running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry holding the metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Observe records one queue event.
func (c *Collector) Observe(e core.Event) {
	switch ev := e.(type) {
	case *core.EntryEnqueued:
		c.enqueued.WithLabelValues(ev.Queue).Inc()
	case *core.EntryRejected:
		c.rejected.WithLabelValues(ev.Queue, string(ev.Rejection.Reason)).Inc()
	case *core.EntryDeleted:
		c.deleted.WithLabelValues(ev.Queue).Inc()
	case *core.EntryLaunched:
		c.launches.WithLabelValues(ev.Queue, "ok").Inc()
	case *core.EntryLaunchFailed:
		c.launches.WithLabelValues(ev.Queue, "error").Inc()
	case *core.EntryArchived:
		state := string(ev.Record.State)
		c.archived.WithLabelValues(ev.Queue, state).Inc()
		if ev.Record.Duration > 0 {
			c.jobDuration.WithLabelValues(ev.Queue, state).Observe(ev.Record.Duration)
		}
	case *core.QueueStateChanged:
		for _, s := range allStatuses {
			c.entries.WithLabelValues(ev.Queue, string(s)).Set(float64(ev.Counts[s]))
		}
		running := 0.0
		if ev.Running {
			running = 1
		}
		c.running.WithLabelValues(ev.Queue).Set(running)
	}
}

// ObserveTick records the outcome of one tick. Its signature matches
// worker.OnTick.
func (c *Collector) ObserveTick(_ *scheduler.TickResult, err error) {
	switch {
	case err == nil:
		c.ticks.WithLabelValues("ok").Inc()
	case errors.Is(err, core.ErrStaleQueue):
		c.ticks.WithLabelValues("conflict").Inc()
	default:
		c.ticks.WithLabelValues("error").Inc()
	}
}

// Watch feeds every event of src into the collector until ctx is done.
func (c *Collector) Watch(ctx context.Context, src EventSource) {
	events := src.Events()
	defer src.Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			c.Observe(e)
		}
	}
}
