package dialer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/oneconcern/flisthub/pkg/errors"
	"github.com/oneconcern/flisthub/pkg/storage/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDial(t *testing.T) {
	for _, tc := range []struct {
		address  string
		password string
		expected string
	}{
		{address: "127.0.0.1:9900", expected: "redis@127.0.0.1:9900"},
		{address: "zdb://hub.local:9900/public", password: "secret", expected: "redis@hub.local:9900/public"},
		{address: "redis://hub.local:6379", password: "secret", expected: "redis@hub.local:6379"},
		{address: "rediss://hub.local:6380/ns", expected: "redis@hub.local:6380/ns"},
	} {
		s, err := Dial(tc.address, tc.password, nil)
		require.NoErrorf(t, err, "address %q", tc.address)
		assert.Equal(t, tc.expected, s.String())
		require.NoError(t, s.Close())
	}
}

func TestDialLocal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blocks")
	s, err := Dial("file://"+dir, "", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "localfs@"+dir, s.String())

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "abcdef", []byte("block")))
	found, err := s.HasMany(ctx, []string{"abcdef", "fedcba"})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, found)
}

func TestDialInvalid(t *testing.T) {
	for _, address := range []string{"", "ftp://somewhere:21", "redis://nohost", "file://", "zdb://:9900"} {
		_, err := Dial(address, "", nil)
		require.Errorf(t, err, "address %q", address)
		assert.Truef(t, errors.Is(err, status.ErrInvalidAddress), "address %q: %v", address, err)
	}
}
