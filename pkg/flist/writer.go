package flist

import (
	"fmt"
	"os"
	"path"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/flisthub/pkg/flist/status"
	"github.com/oneconcern/flisthub/pkg/kv"
	"go.uber.org/zap"
)

const flushThreshold = 1024

// Writer builds a new archive.
//
// Adding an entry for a path already present replaces it. When a directory
// is replaced by anything else, the entries it contained are dropped.
type Writer struct {
	dir     string
	db      kv.Store
	pending map[string][]byte
	dirs    map[string]struct{}
	count   int
	closed  bool
	l       *zap.Logger
}

// Create a new archive database in dir, which must not exist or be empty.
func Create(dir, rootPath string, opts ...Option) (*Writer, error) {
	o := defaultOptions(opts)
	if rootPath == "" {
		rootPath = "/"
	}
	if path.Clean(rootPath) != rootPath || !path.IsAbs(rootPath) {
		return nil, status.ErrInvalidEntry.Wrap(fmt.Errorf("invalid root path %q", rootPath))
	}

	db, err := kv.Open(dir, kv.WithLogger(o.l))
	if err != nil {
		return nil, err
	}
	if err = db.Set([]byte(rootKey), []byte(rootPath)); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Writer{
		dir:     dir,
		db:      db,
		pending: make(map[string][]byte, flushThreshold),
		dirs:    make(map[string]struct{}),
		l:       o.l,
	}, nil
}

// Add an entry to the archive
func (w *Writer) Add(entry Entry) error {
	if w.closed {
		return status.ErrCommitted
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	data, err := jsoniter.Marshal(entry)
	if err != nil {
		return status.ErrInvalidEntry.Wrap(err)
	}

	if entry.Kind == KindDirectory {
		w.dirs[entry.Path] = struct{}{}
	} else if _, wasDir := w.dirs[entry.Path]; wasDir {
		if err = w.dropChildren(entry.Path); err != nil {
			return err
		}
	}
	w.pending[entry.Path] = data
	w.count++

	if len(w.pending) >= flushThreshold {
		return w.flush()
	}
	return nil
}

// dropChildren removes everything found under a directory
func (w *Writer) dropChildren(dir string) error {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	for pth := range w.dirs {
		if pth == dir || strings.HasPrefix(pth, prefix) {
			delete(w.dirs, pth)
		}
	}
	for pth := range w.pending {
		if strings.HasPrefix(pth, prefix) {
			delete(w.pending, pth)
		}
	}
	if err := w.db.DeletePrefix(entryKey(prefix)); err != nil {
		return err
	}
	w.l.Debug("directory replaced", zap.String("path", dir))
	return nil
}

// Added returns how many entries were added so far, replacements included
func (w *Writer) Added() int {
	return w.count
}

func (w *Writer) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	pairs := make([]kv.Pair, 0, len(w.pending))
	for pth, data := range w.pending {
		pairs = append(pairs, kv.Pair{Key: entryKey(pth), Value: data})
	}
	if err := w.db.SetMany(pairs); err != nil {
		return err
	}
	w.pending = make(map[string][]byte, flushThreshold)
	return nil
}

// Commit the archive to archivePath.
//
// The archive file appears at its destination only once complete.
// The writer may not be used afterwards.
func (w *Writer) Commit(archivePath string) error {
	if w.closed {
		return status.ErrCommitted
	}
	w.closed = true

	if err := w.flush(); err != nil {
		_ = w.db.Close()
		return err
	}
	if err := w.db.Compact(); err != nil {
		_ = w.db.Close()
		return err
	}
	if err := w.db.Close(); err != nil {
		return err
	}
	if err := packFile(w.dir, archivePath); err != nil {
		return fmt.Errorf("writing flist %s: %w", archivePath, err)
	}

	w.l.Debug("flist committed", zap.String("archive", archivePath), zap.Int("entries", w.count))
	return nil
}

// Abort discards the archive database
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.db.Close()
	return os.RemoveAll(w.dir)
}
