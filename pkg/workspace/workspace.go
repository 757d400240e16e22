// Package workspace allocates ephemeral working directories.
//
// Each workspace is owned by exactly one operation and removed recursively
// when released.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oneconcern/flisthub/pkg/errors"
	"github.com/oneconcern/flisthub/pkg/workspace/status"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// Manager hands out workspaces under a root directory
type Manager struct {
	root     string
	attempts int
	l        *zap.Logger
}

// New workspace manager rooted at some directory.
//
// The root is created on the first acquisition if missing.
func New(root string, opts ...Option) *Manager {
	m := defaultManager(root)
	for _, apply := range opts {
		apply(m)
	}
	return m
}

// Root directory of this manager
func (m *Manager) Root() string {
	return m.root
}

// Acquire a new, empty workspace directory named <root>/<category>-<unique id>.
//
// An existing directory is never reused.
func (m *Manager) Acquire(category string) (*Workspace, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, status.ErrResource.Wrap(err)
	}

	var lastErr error
	for i := 0; i < m.attempts; i++ {
		pth := filepath.Join(m.root, fmt.Sprintf("%s-%s", category, ksuid.New().String()))
		err := os.Mkdir(pth, 0o700)
		if err == nil {
			m.l.Debug("workspace acquired", zap.String("path", pth))
			return &Workspace{path: pth, l: m.l}, nil
		}

		lastErr = err
		if !errors.Is(err, os.ErrExist) {
			break
		}
	}

	return nil, status.ErrResource.Wrap(lastErr)
}

// Workspace is an ephemeral directory
type Workspace struct {
	path     string
	l        *zap.Logger
	mx       sync.Mutex
	released bool
}

// Path to the workspace directory
func (w *Workspace) Path() string {
	return w.path
}

// Join path elements to the workspace directory
func (w *Workspace) Join(elem ...string) string {
	return filepath.Join(append([]string{w.path}, elem...)...)
}

// Mkdir creates a subdirectory in the workspace
func (w *Workspace) Mkdir(elem ...string) (string, error) {
	w.mx.Lock()
	defer w.mx.Unlock()
	if w.released {
		return "", status.ErrReleased
	}

	pth := w.Join(elem...)
	if err := os.MkdirAll(pth, 0o700); err != nil {
		return "", status.ErrResource.Wrap(err)
	}
	return pth, nil
}

// Release removes the workspace and everything in it.
//
// Release is idempotent. Failures are logged and returned.
func (w *Workspace) Release() error {
	w.mx.Lock()
	defer w.mx.Unlock()
	if w.released {
		return nil
	}

	if err := os.RemoveAll(w.path); err != nil {
		w.l.Warn("could not release workspace", zap.String("path", w.path), zap.Error(err))
		return err
	}

	w.released = true
	w.l.Debug("workspace released", zap.String("path", w.path))
	return nil
}
