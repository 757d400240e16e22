package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oneconcern/flisthub/pkg/errors"
	"github.com/oneconcern/flisthub/pkg/workspace/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAcquireRelease(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")
	m := New(root, WithLogger(zap.NewNop()))
	assert.Equal(t, root, m.Root())

	ws1, err := m.Acquire("flist")
	require.NoError(t, err)
	ws2, err := m.Acquire("flist")
	require.NoError(t, err)

	assert.NotEqual(t, ws1.Path(), ws2.Path())
	assert.Equal(t, root, filepath.Dir(ws1.Path()))
	assert.True(t, strings.HasPrefix(filepath.Base(ws1.Path()), "flist-"))
	assert.Equal(t, filepath.Join(ws1.Path(), "a", "b"), ws1.Join("a", "b"))

	sub, err := ws1.Mkdir("extract", "root")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "file"), []byte("data"), 0o600))

	require.NoError(t, ws1.Release())
	_, err = os.Stat(ws1.Path())
	assert.True(t, os.IsNotExist(err))

	// idempotent
	require.NoError(t, ws1.Release())

	_, err = ws1.Mkdir("again")
	assert.True(t, errors.Is(err, status.ErrReleased))

	_, err = os.Stat(ws2.Path())
	require.NoError(t, err)
	require.NoError(t, ws2.Release())
}

func TestAcquireFailure(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	m := New(filepath.Join(blocker, "work"), WithLogger(zap.NewNop()), WithAttempts(2))
	_, err := m.Acquire("merge")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrResource))
	assert.Equal(t, 500, errors.Code(err))
}
