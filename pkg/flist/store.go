package flist

import (
	"context"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/flisthub/pkg/errors"
	"github.com/oneconcern/flisthub/pkg/flist/status"
	"github.com/oneconcern/flisthub/pkg/kv"
	"github.com/oneconcern/flisthub/pkg/workspace"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

const (
	entryPrefix = "entry:"
	rootKey     = "meta:root"
)

var entryPrefixBytes = []byte(entryPrefix)

func entryKey(pth string) []byte {
	return []byte(entryPrefix + pth)
}

// Store is a read-only view of an flist archive
type Store struct {
	archive string
	root    string
	db      kv.Store
}

// Open an existing archive for reading.
//
// The archive is unpacked into a fresh directory of the provided workspace,
// which the caller releases when done.
func Open(ctx context.Context, archivePath string, ws *workspace.Workspace, opts ...Option) (*Store, error) {
	o := defaultOptions(opts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fi, err := os.Open(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, status.ErrNotFound.Wrap(err)
		}
		return nil, status.ErrCorrupt.Wrap(err)
	}
	defer func() {
		_ = fi.Close()
	}()

	info, err := fi.Stat()
	if err != nil {
		return nil, status.ErrCorrupt.Wrap(err)
	}
	if info.IsDir() {
		return nil, status.ErrCorrupt.Wrap(fmt.Errorf("%s is a directory", archivePath))
	}

	dir, err := ws.Mkdir("flist-" + ksuid.New().String())
	if err != nil {
		return nil, err
	}

	if err = unpack(fi, dir); err != nil {
		return nil, status.ErrCorrupt.Wrap(err)
	}

	db, err := kv.Open(dir, kv.ReadOnly(true), kv.WithLogger(o.l))
	if err != nil {
		return nil, status.ErrCorrupt.Wrap(err)
	}

	root, err := db.Get([]byte(rootKey))
	if err != nil {
		_ = db.Close()
		return nil, status.ErrCorrupt.Wrap(fmt.Errorf("missing root marker: %w", err))
	}

	o.l.Debug("flist opened", zap.String("archive", archivePath), zap.String("root", string(root)))

	return &Store{
		archive: archivePath,
		root:    string(root),
		db:      db,
	}, nil
}

// Archive path this store was opened from
func (s *Store) Archive() string {
	return s.archive
}

// Root path recorded in the archive
func (s *Store) Root() string {
	return s.root
}

// Get the entry for some path
func (s *Store) Get(pth string) (Entry, error) {
	data, err := s.db.Get(entryKey(pth))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Entry{}, status.ErrEntryNotFound.Wrap(fmt.Errorf("%q", pth))
		}
		return Entry{}, status.ErrCorrupt.Wrap(err)
	}
	return decodeEntry(data)
}

// Count the entries in the archive
func (s *Store) Count() (int, error) {
	return s.db.Count(entryPrefixBytes)
}

// Close the archive
func (s *Store) Close() error {
	return s.db.Close()
}

// iterate over all entries, in key order
func (s *Store) iterate(ctx context.Context, fn func(Entry) error) error {
	return s.db.Iterate(entryPrefixBytes, func(_, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, err := decodeEntry(value)
		if err != nil {
			return err
		}
		return fn(entry)
	})
}

func decodeEntry(data []byte) (Entry, error) {
	var entry Entry
	if err := jsoniter.Unmarshal(data, &entry); err != nil {
		return Entry{}, status.ErrCorrupt.Wrap(err)
	}
	if !entry.Kind.IsValid() {
		return Entry{}, status.ErrCorrupt.Wrap(fmt.Errorf("%s: %v", entry.Path, entry.Kind))
	}
	return entry, nil
}
