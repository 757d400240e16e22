package flist

import (
	"github.com/oneconcern/flisthub/pkg/dlogger"
	"go.uber.org/zap"
)

type (
	// Option for archive operations
	Option func(*options)

	options struct {
		l         *zap.Logger
		batchSize int
		parallel  int
	}
)

// DefaultBatchSize is the number of block hashes checked on the backend in a single round trip
const DefaultBatchSize = 4096

// WithLogger sets a logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.l = l
		}
	}
}

// WithBatchSize sets the number of hashes queried in a single backend round trip
func WithBatchSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.batchSize = size
		}
	}
}

// WithConcurrency sets how many batches may be in flight against the backend.
//
// The default is 1: batches are checked in order.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallel = n
		}
	}
}

func defaultOptions(opts []Option) *options {
	o := &options{
		l:         dlogger.MustGetLogger("info"),
		batchSize: DefaultBatchSize,
		parallel:  1,
	}
	for _, apply := range opts {
		apply(o)
	}
	return o
}
