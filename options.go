package queuez

import (
	"log/slog"
	"time"

	"github.com/zoobzio/queuez/internal/logging"
)

// Option configures a queue at construction.
type Option func(*options)

type options struct {
	clock         Clock
	logger        *slog.Logger
	log           *slog.Logger
	metrics       Metrics
	executor      Executor
	name          string
	shutdownMode  ShutdownMode
	submitTimeout time.Duration
}

func buildOptions(component, kind string, opts []Option) options {
	o := options{
		clock:        RealClock,
		metrics:      NoopMetrics{},
		shutdownMode: ShutdownGraceful,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.name = defaultID(kind, o.name)
	if o.logger == nil {
		o.logger = logging.Component(component)
	}
	o.log = o.logger.With("queue", o.name)
	return o
}

// WithClock sets the clock used for timestamps and timeouts.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger. Defaults to the package component logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the metrics sink. Defaults to NoopMetrics.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithExecutor makes a parallel queue submit to an external executor instead of
// creating its own pool. The queue never closes an executor it did not create.
func WithExecutor(e Executor) Option {
	return func(o *options) {
		o.executor = e
	}
}

// WithName sets the queue name used in logs, stats, and metrics labels.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithShutdownMode selects how Shutdown treats outstanding deliveries on
// parallel-backed queues. Defaults to ShutdownGraceful.
func WithShutdownMode(mode ShutdownMode) Option {
	return func(o *options) {
		if mode != "" {
			o.shutdownMode = mode
		}
	}
}

// WithSubmitTimeout bounds how long a bounded queue's Process may block waiting
// for capacity. Zero waits until capacity frees or the queue shuts down.
func WithSubmitTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.submitTimeout = d
		}
	}
}
