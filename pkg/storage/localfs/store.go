// Copyright © 2018 One Concern

// Package localfs implements a block backend on a local file system.
//
// Blocks are stored as files named after their key, fanned out in
// sub-directories named after the first two characters of the key.
package localfs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oneconcern/flisthub/pkg/storage"
	"github.com/oneconcern/flisthub/pkg/storage/status"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
)

const (
	// staging area for atomic puts, within the afero.Fs itself
	nestedPutStageName = ".put-stage"
)

var _ storage.Store = &localFS{}

// New creates a new local file system backed block store.
//
// Puts are made atomic by writing to a staging area then renaming into place.
func New(fs afero.Fs) (storage.Store, error) {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".flisthub", "blocks"))
	}
	if err := fs.MkdirAll(nestedPutStageName, 0700); err != nil {
		return nil, fmt.Errorf("ensuring put staging directory for %q: %v", nestedPutStageName, err)
	}
	return &localFS{
		fs: fs,
	}, nil
}

// NewAt creates a block store rooted at some directory of the OS file system
func NewAt(dir string) (storage.Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, status.ErrUnavailable.Wrap(err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

type localFS struct {
	fs afero.Fs
}

func keyPath(key string) (string, error) {
	if len(key) < 3 || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", status.ErrInvalidKey.Wrap(fmt.Errorf("key %q", key))
	}
	return filepath.Join(key[:2], key), nil
}

func (l *localFS) Has(ctx context.Context, key string) (bool, error) {
	pth, err := keyPath(key)
	if err != nil {
		return false, err
	}

	fi, err := l.fs.Stat(pth)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, status.ErrUnavailable.Wrap(err)
	}

	return !fi.IsDir(), nil
}

func (l *localFS) HasMany(ctx context.Context, keys []string) ([]bool, error) {
	result := make([]bool, len(keys))
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, status.ErrUnavailable.Wrap(err)
		}
		has, err := l.Has(ctx, key)
		if err != nil {
			return nil, err
		}
		result[i] = has
	}
	return result, nil
}

// Get the content of a block. This is not part of the Store interface and is mostly used by tests.
func (l *localFS) Get(ctx context.Context, key string) ([]byte, error) {
	pth, err := keyPath(key)
	if err != nil {
		return nil, err
	}
	return afero.ReadFile(l.fs, pth)
}

// Delete a block. This is not part of the Store interface and is mostly used by tests.
func (l *localFS) Delete(ctx context.Context, key string) error {
	pth, err := keyPath(key)
	if err != nil {
		return err
	}
	if err := l.fs.Remove(pth); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %q: %v", key, err)
	}
	return nil
}

func (l *localFS) Put(ctx context.Context, key string, data []byte) error {
	pth, err := keyPath(key)
	if err != nil {
		return err
	}

	staged := filepath.Join(nestedPutStageName, ksuid.New().String())
	if err = afero.WriteReader(l.fs, staged, bytes.NewReader(data)); err != nil {
		return status.ErrUnavailable.Wrap(fmt.Errorf("write record for %q: %v", key, err))
	}

	/* Rename() doesn't create directories automatically */
	if err = l.fs.MkdirAll(filepath.Dir(pth), 0700); err != nil {
		_ = l.fs.Remove(staged)
		return status.ErrUnavailable.Wrap(fmt.Errorf("ensuring directories for %q: %v", key, err))
	}
	if err = l.fs.Rename(staged, pth); err != nil {
		_ = l.fs.Remove(staged)
		return status.ErrUnavailable.Wrap(fmt.Errorf("rename record for %q: %v", key, err))
	}
	return nil
}

func (l *localFS) Close() error {
	return nil
}

func (l *localFS) String() string {
	const localfs = "localfs"
	switch fs := l.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return localfs
		}
		return localfs + "@" + pp
	default:
		return localfs
	}
}
