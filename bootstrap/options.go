package bootstrap

import (
	"time"

	"github.com/Anyuluo996/BotShepherd/logger"
)

// Option adjusts App construction.
type Option func(*options)

type options struct {
	logger          *logger.Logger
	gracefulTimeout time.Duration
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger supplies an already-configured logger. Without it the
// logger is initialized from the config's Logging section, which is
// what production startup does; tests inject their own.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithGracefulTimeout overrides how long shutdown may take before the
// process stops waiting on components. Zero keeps the default.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *options) {
		o.gracefulTimeout = d
	}
}
