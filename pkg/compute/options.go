package compute

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jdziat/durable-training-queue/pkg/internal/retry"
)

// DefaultTimeout bounds a single request to the compute API.
const DefaultTimeout = 30 * time.Second

// Options holds configuration for an HTTPClient.
type Options struct {
	Token        string
	OutputPrefix string
	HTTPClient   *http.Client
	StatusRetry  retry.Config
	Logger       *slog.Logger

	// Limiter paces requests to the compute API; nil means unlimited.
	Limiter *rate.Limiter
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		HTTPClient:  &http.Client{Timeout: DefaultTimeout},
		StatusRetry: retry.Config{MaxAttempts: 3, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second, BackoffMultiplier: 2.0, JitterFraction: 0.1},
		Logger:      slog.Default(),
	}
}

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return optionFunc(func(o *Options) {
		o.Token = token
	})
}

// WithOutputPrefix sets the root under which output locations are derived.
func WithOutputPrefix(prefix string) Option {
	return optionFunc(func(o *Options) {
		o.OutputPrefix = prefix
	})
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		if d > 0 {
			o.HTTPClient = &http.Client{Timeout: d, Transport: o.HTTPClient.Transport}
		}
	})
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return optionFunc(func(o *Options) {
		if c != nil {
			o.HTTPClient = c
		}
	})
}

// WithStatusRetry sets the backoff used for status reads. Launches are never
// retried.
func WithStatusRetry(cfg retry.Config) Option {
	return optionFunc(func(o *Options) {
		o.StatusRetry = cfg
	})
}

// WithRateLimit caps requests to rps per second with the given burst.
// A non-positive rps removes the limit.
func WithRateLimit(rps float64, burst int) Option {
	return optionFunc(func(o *Options) {
		if rps <= 0 {
			o.Limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
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
