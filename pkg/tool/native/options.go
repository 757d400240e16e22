package native

import (
	"os"
	"path/filepath"

	"github.com/oneconcern/flisthub/pkg/cafs"
	"github.com/oneconcern/flisthub/pkg/dlogger"
	"github.com/oneconcern/flisthub/pkg/flist"
	"github.com/oneconcern/flisthub/pkg/storage"
	"github.com/oneconcern/flisthub/pkg/storage/dialer"
	"github.com/oneconcern/flisthub/pkg/workspace"
	"go.uber.org/zap"
)

type (
	// Option for the native tool
	Option func(*Tool)

	// Dialer resolves a backend address into a block store
	Dialer func(address, password string) (storage.Store, error)
)

// WithLogger sets a logger
func WithLogger(l *zap.Logger) Option {
	return func(t *Tool) {
		if l != nil {
			t.l = l
		}
	}
}

// WithBlockSize sets the size of file blocks
func WithBlockSize(size int64) Option {
	return func(t *Tool) {
		if size > 0 {
			t.blockSize = size
		}
	}
}

// WithConcurrency sets the maximum number of blocks pushed to the backend in parallel
func WithConcurrency(n int) Option {
	return func(t *Tool) {
		if n > 0 {
			t.parallel = n
		}
	}
}

// WithBatchSize sets the number of hashes checked on the backend in a single round trip
func WithBatchSize(n int) Option {
	return func(t *Tool) {
		if n > 0 {
			t.batchSize = n
		}
	}
}

// WithDialer overrides how backends are resolved
func WithDialer(d Dialer) Option {
	return func(t *Tool) {
		if d != nil {
			t.dial = d
		}
	}
}

// WithWorkspaces sets where scratch databases are unpacked
func WithWorkspaces(m *workspace.Manager) Option {
	return func(t *Tool) {
		if m != nil {
			t.ws = m
		}
	}
}

func defaultTool() *Tool {
	t := &Tool{
		blockSize: cafs.DefaultBlockSize,
		parallel:  8,
		batchSize: flist.DefaultBatchSize,
		l:         dlogger.MustGetLogger("info"),
	}
	t.dial = func(address, password string) (storage.Store, error) {
		return dialer.Dial(address, password, t.l)
	}
	return t
}

func (t *Tool) finalize() {
	if t.ws == nil {
		t.ws = workspace.New(filepath.Join(os.TempDir(), "flisthub-native"), workspace.WithLogger(t.l))
	}
}
