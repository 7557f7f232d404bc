package session

import (
	"log/slog"

	"github.com/pawtrack/walkstream/metric"
	"github.com/pawtrack/walkstream/pkg/retry"
	"github.com/pawtrack/walkstream/reachability"
	"github.com/pawtrack/walkstream/securepipe"
)

// Option configures a Session using the functional options pattern.
type Option func(*sessionOptions)

type sessionOptions struct {
	cfg      Config
	logger   *slog.Logger
	reach    reachability.Monitor
	pipeline *securepipe.Pipeline
	strategy retry.Strategy
	registry *metric.MetricsRegistry
}

// WithConfig overrides the default tuning parameters.
func WithConfig(cfg Config) Option {
	return func(o *sessionOptions) {
		o.cfg = cfg
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *sessionOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithReachability sets the network reachability monitor that gates
// connection attempts. Defaults to a Static monitor reporting reachable.
func WithReachability(m reachability.Monitor) Option {
	return func(o *sessionOptions) {
		if m != nil {
			o.reach = m
		}
	}
}

// WithPipeline sets the security pipeline applied to every frame.
// Defaults to a passthrough pipeline (no compression, no encryption).
func WithPipeline(p *securepipe.Pipeline) Option {
	return func(o *sessionOptions) {
		if p != nil {
			o.pipeline = p
		}
	}
}

// WithRetryStrategy sets the reconnect delay strategy. Defaults to a
// constant delay equal to the configured ReconnectDelay.
func WithRetryStrategy(s retry.Strategy) Option {
	return func(o *sessionOptions) {
		if s != nil {
			o.strategy = s
		}
	}
}

// WithMetrics enables Prometheus metrics export. A nil registry leaves
// metrics disabled.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *sessionOptions) {
		o.registry = registry
	}
}
