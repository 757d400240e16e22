package workspace

import (
	"github.com/oneconcern/flisthub/pkg/dlogger"
	"go.uber.org/zap"
)

type (
	// Option for the workspace manager
	Option func(*Manager)
)

// WithLogger sets a logger for workspace operations
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.l = l
		}
	}
}

// WithAttempts sets how many unique names are tried before giving up
func WithAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.attempts = n
		}
	}
}

func defaultManager(root string) *Manager {
	return &Manager{
		root:     root,
		attempts: 5,
		l:        dlogger.MustGetLogger("info"),
	}
}
