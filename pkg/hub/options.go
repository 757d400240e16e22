package hub

import (
	"github.com/oneconcern/flisthub/pkg/dlogger"
	"go.uber.org/zap"
)

type (
	// Option for the hub
	Option func(*options)

	options struct {
		l *zap.Logger
	}
)

// WithLogger sets the logger of the hub
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.l = l
		}
	}
}

func defaultOptions(opts []Option) *options {
	o := &options{
		l: dlogger.MustGetLogger("info"),
	}
	for _, apply := range opts {
		apply(o)
	}
	return o
}
