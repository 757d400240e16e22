// Copyright © 2018 One Concern

package localfs

import (
	"context"
	"testing"

	"github.com/oneconcern/flisthub/pkg/errors"
	"github.com/oneconcern/flisthub/pkg/storage"
	"github.com/oneconcern/flisthub/pkg/storage/status"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sixteen   = "16aa0000ffff"
	seventeen = "17bb0000ffff"
	fifteen   = "15cc0000ffff"
)

func setupStore(t testing.TB) (storage.Store, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	bs, err := New(fs)
	require.NoError(t, err)

	require.NoError(t, bs.Put(context.Background(), sixteen, []byte("this is the text")))
	require.NoError(t, bs.Put(context.Background(), seventeen, []byte("this is the text for another thing")))

	return bs, fs
}

func TestHas(t *testing.T) {
	bs, _ := setupStore(t)

	has, err := bs.Has(context.Background(), sixteen)
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), seventeen)
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), fifteen)
	require.NoError(t, err)
	require.False(t, has)
}

func TestHasMany(t *testing.T) {
	bs, _ := setupStore(t)

	found, err := bs.HasMany(context.Background(), []string{fifteen, sixteen, seventeen, fifteen})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, true, false}, found)

	found, err = bs.HasMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, found)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = bs.HasMany(ctx, []string{sixteen})
	require.Error(t, err)
	assert.True(t, status.IsRetryable(err))
}

func TestPutLayout(t *testing.T) {
	bs, fs := setupStore(t)

	b, err := afero.ReadFile(fs, "16/"+sixteen)
	require.NoError(t, err)
	assert.Equal(t, "this is the text", string(b))

	// staging area is left clean
	staged, err := afero.ReadDir(fs, nestedPutStageName)
	require.NoError(t, err)
	assert.Empty(t, staged)

	// overwriting is allowed: content-addressed blocks are immutable anyway
	require.NoError(t, bs.Put(context.Background(), sixteen, []byte("this is the text")))
}

func TestGetDelete(t *testing.T) {
	bs, _ := setupStore(t)
	l := bs.(*localFS)

	b, err := l.Get(context.Background(), seventeen)
	require.NoError(t, err)
	assert.Equal(t, "this is the text for another thing", string(b))

	require.NoError(t, l.Delete(context.Background(), seventeen))
	require.NoError(t, l.Delete(context.Background(), seventeen))

	has, err := bs.Has(context.Background(), seventeen)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestInvalidKeys(t *testing.T) {
	bs, _ := setupStore(t)

	for _, key := range []string{"", "ab", "../etc/passwd", "a/bcdef", ".put-stage"} {
		_, err := bs.Has(context.Background(), key)
		require.Errorf(t, err, "key %q", key)
		assert.Truef(t, errors.Is(err, status.ErrInvalidKey), "key %q", key)

		err = bs.Put(context.Background(), key, []byte("x"))
		assert.Truef(t, errors.Is(err, status.ErrInvalidKey), "key %q", key)
	}
}

func TestNewAt(t *testing.T) {
	dir := t.TempDir()
	bs, err := NewAt(dir)
	require.NoError(t, err)
	assert.Contains(t, bs.String(), "localfs@")

	require.NoError(t, bs.Put(context.Background(), sixteen, []byte("x")))
	has, err := bs.Has(context.Background(), sixteen)
	require.NoError(t, err)
	assert.True(t, has)
}
