package kv

import (
	"github.com/oneconcern/flisthub/pkg/dlogger"
	"go.uber.org/zap"
)

type (
	// Option modifies the behavior of the KV store.
	Option func(*options)

	options struct {
		readOnly bool
		l        *zap.Logger
	}
)

// ReadOnly opens an existing store without allowing any write
func ReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithLogger sets the logger for the store
func WithLogger(zlg *zap.Logger) Option {
	return func(o *options) {
		if zlg != nil {
			o.l = zlg
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
