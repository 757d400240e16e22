package flist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oneconcern/flisthub/pkg/errors"
	"github.com/oneconcern/flisthub/pkg/flist/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreateOpen(t *testing.T) {
	archive := buildArchive(t,
		dir("/"),
		dir("/etc"),
		regular("/etc/hosts", "aaa111", "bbb222"),
		symlink("/etc/localtime", "/usr/share/zoneinfo/UTC"),
		special("/dev/null"),
	)

	store := openArchive(t, archive)
	assert.Equal(t, "/", store.Root())
	assert.Equal(t, archive, store.Archive())

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	e, err := store.Get("/etc/hosts")
	require.NoError(t, err)
	assert.Equal(t, KindRegular, e.Kind)
	assert.Equal(t, []Block{{Hash: "aaa111"}, {Hash: "bbb222"}}, e.Blocks)
	assert.Equal(t, "hosts", e.Name())

	_, err = store.Get("/etc/passwd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrEntryNotFound))
}

func TestWriterReplacesEntries(t *testing.T) {
	archive := buildArchive(t,
		dir("/"),
		regular("/file", "aaa111"),
		symlink("/file", "/elsewhere"),
	)
	store := openArchive(t, archive)

	e, err := store.Get("/file")
	require.NoError(t, err)
	assert.Equal(t, KindSymlink, e.Kind)
	assert.Equal(t, "/elsewhere", e.Target)
}

func TestWriterReplacesDirectory(t *testing.T) {
	archive := buildArchive(t,
		dir("/"),
		dir("/bin"),
		regular("/bin/sh", "aaa111"),
		dir("/bin/sub"),
		regular("/bin/sub/ls", "bbb222"),
		regular("/bin-extra", "ccc333"),
		dir("/etc"),
		regular("/etc/hosts", "ddd444"),
		dir("/etc"),
		symlink("/bin", "/usr/bin"),
	)
	store := openArchive(t, archive)

	var paths []string
	require.NoError(t, Walk(context.Background(), store, VisitorFuncs{
		Directory: func(e Entry) error { paths = append(paths, e.Path); return nil },
		Regular:   func(e Entry) error { paths = append(paths, e.Path); return nil },
		Symlink:   func(e Entry) error { paths = append(paths, e.Path); return nil },
	}))
	// a directory replaced by a directory keeps its content
	assert.Equal(t, []string{"/", "/bin", "/bin-extra", "/etc", "/etc/hosts"}, paths)

	e, err := store.Get("/bin")
	require.NoError(t, err)
	assert.Equal(t, KindSymlink, e.Kind)
	_, err = store.Get("/bin/sub/ls")
	assert.True(t, errors.Is(err, status.ErrEntryNotFound))
}

func TestWriterRejectsInvalidEntries(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "db"), "/", WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer func() {
		_ = w.Abort()
	}()

	for _, e := range []Entry{
		{Path: "relative", Kind: KindDirectory},
		{Path: "/a/../b", Kind: KindDirectory},
		{Path: "/a", Kind: Kind(42)},
		{Path: "/a", Kind: KindDirectory, Size: 12},
		{Path: "/a", Kind: KindSymlink},
		{Path: "/a", Kind: KindRegular, Target: "/b"},
		{Path: "/a", Kind: KindRegular, Blocks: []Block{{}}},
	} {
		err := w.Add(e)
		require.Errorf(t, err, "expected %v to be rejected", e)
		assert.True(t, errors.Is(err, status.ErrInvalidEntry))
	}

	_, err = Create(filepath.Join(t.TempDir(), "db"), "not/absolute")
	assert.True(t, errors.Is(err, status.ErrInvalidEntry))
}

func TestWriterClosed(t *testing.T) {
	base := t.TempDir()
	w, err := Create(filepath.Join(base, "db"), "/", WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, w.Add(dir("/")))
	assert.Equal(t, 1, w.Added())
	require.NoError(t, w.Commit(filepath.Join(base, "out.flist")))

	assert.True(t, errors.Is(w.Add(dir("/x")), status.ErrCommitted))
	assert.True(t, errors.Is(w.Commit(filepath.Join(base, "again.flist")), status.ErrCommitted))
	require.NoError(t, w.Abort())

	// aborted writers leave nothing behind
	w, err = Create(filepath.Join(base, "db2"), "/", WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	_, err = os.Stat(filepath.Join(base, "db2"))
	assert.True(t, os.IsNotExist(err))
}

func TestOpenFailures(t *testing.T) {
	ws := testWorkspace(t)
	ctx := context.Background()
	base := t.TempDir()

	_, err := Open(ctx, filepath.Join(base, "missing.flist"), ws, WithLogger(zap.NewNop()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotFound))
	assert.Equal(t, 404, errors.Code(err))

	garbage := filepath.Join(base, "garbage.flist")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not an archive"), 0o600))
	_, err = Open(ctx, garbage, ws, WithLogger(zap.NewNop()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrCorrupt))
	assert.Equal(t, 422, errors.Code(err))

	_, err = Open(ctx, base, ws, WithLogger(zap.NewNop()))
	assert.True(t, errors.Is(err, status.ErrCorrupt))

	// a valid tar.gz which does not hold a database
	empty := filepath.Join(base, "empty.flist")
	fo, err := os.Create(empty)
	require.NoError(t, err)
	require.NoError(t, pack(t.TempDir(), fo))
	require.NoError(t, fo.Close())
	_, err = Open(ctx, empty, ws, WithLogger(zap.NewNop()))
	assert.True(t, errors.Is(err, status.ErrCorrupt))
}

func TestEntryKindText(t *testing.T) {
	for _, k := range []Kind{KindDirectory, KindRegular, KindSymlink, KindSpecial} {
		text, err := k.MarshalText()
		require.NoError(t, err)

		var parsed Kind
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, k, parsed)
	}

	var k Kind
	require.Error(t, k.UnmarshalText([]byte("socket")))
	_, err := Kind(0).MarshalText()
	require.Error(t, err)
	assert.Equal(t, "kind(0)", Kind(0).String())
}
