package flist

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/oneconcern/flisthub/pkg/storage"
	"github.com/oneconcern/flisthub/pkg/storage/localfs"
	"github.com/oneconcern/flisthub/pkg/workspace"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func regular(pth string, hashes ...string) Entry {
	blocks := make([]Block, 0, len(hashes))
	for _, h := range hashes {
		blocks = append(blocks, Block{Hash: h})
	}
	return Entry{Path: pth, Kind: KindRegular, Size: int64(len(hashes) * 10), Blocks: blocks}
}

func dir(pth string) Entry {
	return Entry{Path: pth, Kind: KindDirectory, Mode: 0o755}
}

func symlink(pth, target string) Entry {
	return Entry{Path: pth, Kind: KindSymlink, Target: target}
}

func special(pth string) Entry {
	return Entry{Path: pth, Kind: KindSpecial}
}

// buildArchive writes an archive with some entries and returns its path
func buildArchive(t testing.TB, entries ...Entry) string {
	base := t.TempDir()
	w, err := Create(filepath.Join(base, "db"), "/", WithLogger(zap.NewNop()))
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, w.Add(e))
	}
	archive := filepath.Join(base, "test.flist")
	require.NoError(t, w.Commit(archive))
	return archive
}

func testWorkspace(t testing.TB) *workspace.Workspace {
	ws, err := workspace.New(t.TempDir(), workspace.WithLogger(zap.NewNop())).Acquire("test")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ws.Release()
	})
	return ws
}

func openArchive(t testing.TB, archive string) *Store {
	store, err := Open(context.Background(), archive, testWorkspace(t), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func memBackend(t testing.TB, keys ...string) storage.Store {
	backend, err := localfs.New(afero.NewMemMapFs())
	require.NoError(t, err)
	for _, k := range keys {
		require.NoError(t, backend.Put(context.Background(), k, []byte(k)))
	}
	return backend
}

// failingBackend answers some calls to HasMany then fails
type failingBackend struct {
	storage.Store
	mx        sync.Mutex
	succeed   int
	calls     int
	batchSize []int
}

func (f *failingBackend) HasMany(ctx context.Context, keys []string) ([]bool, error) {
	f.mx.Lock()
	f.calls++
	f.batchSize = append(f.batchSize, len(keys))
	call := f.calls
	f.mx.Unlock()

	if call > f.succeed {
		return nil, fmt.Errorf("connection refused")
	}
	return f.Store.HasMany(ctx, keys)
}
