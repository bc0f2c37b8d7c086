package unreal

import "log/slog"

type options struct {
	logger  *slog.Logger
	verbose bool
}

// Option configures Load.
type Option func(*options)

// WithLogger routes parse dumps and warnings to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithVerbose logs every header field, name, import, export and mip at debug level.
func WithVerbose(v bool) Option {
	return func(o *options) {
		o.verbose = v
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
