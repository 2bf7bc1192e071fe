package scheduler

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jdziat/durable-training-queue/pkg/scheduler"

// Options holds configuration for a Scheduler.
type Options struct {
	ConditionalWrites bool
	Tracer            trace.Tracer
	Logger            *slog.Logger
	Now               func() time.Time
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		ConditionalWrites: true,
		Tracer:            otel.Tracer(tracerName),
		Now:               time.Now,
	}
}

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// WithConditionalWrites selects how a tick persists. When enabled (the
// default) every write is conditional on the marker the tick last saw, and a
// tick that loses the race to lease an entry aborts before launching. When
// disabled, writes are last-writer-wins.
func WithConditionalWrites(enabled bool) Option {
	return optionFunc(func(o *Options) {
		o.ConditionalWrites = enabled
	})
}

// WithTracer sets the tracer for tick spans.
func WithTracer(t trace.Tracer) Option {
	return optionFunc(func(o *Options) {
		if t != nil {
			o.Tracer = t
		}
	})
}

// WithLogger sets the structured logger. Defaults to the queue's logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(o *Options) {
		o.Logger = l
	})
}

// WithClock overrides the clock used for launch timestamps and timing fallbacks.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(o *Options) {
		if now != nil {
			o.Now = now
		}
	})
}
