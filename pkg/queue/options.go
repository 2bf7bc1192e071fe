package queue

import (
	"log/slog"
	"time"

	"github.com/jdziat/durable-training-queue/pkg/core"
	"github.com/jdziat/durable-training-queue/pkg/security"
)

// DefaultConflictRetries is how many times a mutation is re-applied after a
// concurrent write before giving up with core.ErrStaleQueue.
var DefaultConflictRetries = 5

// Options holds configuration for a Queue.
type Options struct {
	Defaults        core.JobParams
	Logger          *slog.Logger
	ConflictRetries int
	Now             func() time.Time
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Logger:          slog.Default(),
		ConflictRetries: DefaultConflictRetries,
		Now:             time.Now,
	}
}

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// WithDefaults sets the params used for fields a submitted row leaves blank.
func WithDefaults(p core.JobParams) Option {
	return optionFunc(func(o *Options) {
		o.Defaults = p
	})
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	})
}

// WithConflictRetries sets how often a mutation is retried after a
// concurrent write. Values are clamped to [0, security.MaxConflictRetries].
func WithConflictRetries(n int) Option {
	return optionFunc(func(o *Options) {
		o.ConflictRetries = security.ClampConflictRetries(n)
	})
}

// WithClock overrides the clock used for submission times and events.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(o *Options) {
		if now != nil {
			o.Now = now
		}
	})
}
