package unpack

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/oneconcern/flisthub/internal/rand"
	"github.com/oneconcern/flisthub/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type member struct {
	hdr  tar.Header
	data []byte
}

func makeTar(t testing.TB, members ...member) []byte {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, m := range members {
		hdr := m.hdr
		hdr.Size = int64(len(m.data))
		if hdr.Mode == 0 {
			hdr.Mode = 0o644
		}
		if hdr.ModTime.IsZero() {
			hdr.ModTime = time.Unix(1600000000, 0)
		}
		require.NoError(t, tw.WriteHeader(&hdr))
		if len(m.data) > 0 {
			_, err := tw.Write(m.data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func gzipped(t testing.TB, data []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zstded(t testing.TB, data []byte) []byte {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer func() {
		_ = enc.Close()
	}()
	return enc.EncodeAll(data, nil)
}

func sampleTar(t testing.TB, content []byte) []byte {
	return makeTar(t,
		member{hdr: tar.Header{Name: "./", Typeflag: tar.TypeDir, Mode: 0o755}},
		member{hdr: tar.Header{Name: "bin/", Typeflag: tar.TypeDir, Mode: 0o555}},
		member{hdr: tar.Header{Name: "bin/app", Typeflag: tar.TypeReg, Mode: 0o755}, data: content},
		member{hdr: tar.Header{Name: "bin/app-link", Typeflag: tar.TypeSymlink, Linkname: "app"}},
		member{hdr: tar.Header{Name: "bin/app-hard", Typeflag: tar.TypeLink, Linkname: "bin/app"}},
		member{hdr: tar.Header{Name: "etc/config", Typeflag: tar.TypeReg}, data: []byte("key: value\n")},
		member{hdr: tar.Header{Name: "run/pipe", Typeflag: tar.TypeFifo, Mode: 0o600}},
	)
}

func TestExtract(t *testing.T) {
	content := rand.Bytes(100000)
	plain := sampleTar(t, content)

	for _, toPin := range []struct {
		Name    string
		Payload []byte
	}{
		{Name: "app.tar", Payload: plain},
		{Name: "app.tar.gz", Payload: gzipped(t, plain)},
		{Name: "app.tar.zst", Payload: zstded(t, plain)},
	} {
		tc := toPin
		t.Run(tc.Name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "root")
			stats, err := Extract(context.Background(), bytes.NewReader(tc.Payload), tc.Name, dest, WithLogger(zap.NewNop()))
			require.NoError(t, err)

			assert.Equal(t, 2, stats.Directories)
			assert.Equal(t, 2, stats.Files)
			assert.Equal(t, 1, stats.Symlinks)
			assert.Equal(t, 1, stats.Hardlinks)
			assert.Equal(t, 1, stats.Specials+stats.Skipped)
			assert.Equal(t, int64(2*len(content)+len("key: value\n")), stats.Bytes)

			got, err := os.ReadFile(filepath.Join(dest, "bin", "app"))
			require.NoError(t, err)
			assert.Equal(t, content, got)

			hard, err := os.ReadFile(filepath.Join(dest, "bin", "app-hard"))
			require.NoError(t, err)
			assert.Equal(t, content, hard)

			link, err := os.Readlink(filepath.Join(dest, "bin", "app-link"))
			require.NoError(t, err)
			assert.Equal(t, "app", link)

			info, err := os.Stat(filepath.Join(dest, "bin", "app"))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
			assert.Equal(t, int64(1600000000), info.ModTime().Unix())

			info, err = os.Stat(filepath.Join(dest, "bin"))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
		})
	}
}

func TestExtractRejectsUnsafePaths(t *testing.T) {
	for _, toPin := range []struct {
		Name    string
		Members []member
	}{
		{
			Name:    "parent",
			Members: []member{{hdr: tar.Header{Name: "../evil", Typeflag: tar.TypeReg}, data: []byte("x")}},
		},
		{
			Name:    "nested parent",
			Members: []member{{hdr: tar.Header{Name: "a/../../evil", Typeflag: tar.TypeReg}, data: []byte("x")}},
		},
		{
			Name:    "absolute",
			Members: []member{{hdr: tar.Header{Name: "/etc/evil", Typeflag: tar.TypeReg}, data: []byte("x")}},
		},
		{
			Name: "through symlink",
			Members: []member{
				{hdr: tar.Header{Name: "escape", Typeflag: tar.TypeSymlink, Linkname: "/tmp"}},
				{hdr: tar.Header{Name: "escape/evil", Typeflag: tar.TypeReg}, data: []byte("x")},
			},
		},
		{
			Name:    "hard link outside",
			Members: []member{{hdr: tar.Header{Name: "passwd", Typeflag: tar.TypeLink, Linkname: "../../etc/passwd"}}},
		},
		{
			Name:    "hard link to nothing",
			Members: []member{{hdr: tar.Header{Name: "ghost", Typeflag: tar.TypeLink, Linkname: "nothing"}}},
		},
	} {
		tc := toPin
		t.Run(tc.Name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "root")
			_, err := Extract(context.Background(), bytes.NewReader(makeTar(t, tc.Members...)), "evil.tar", dest, WithLogger(zap.NewNop()))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArchive))
			assert.Equal(t, 422, errors.Code(err))
		})
	}
}

func TestExtractDoesNotFollowSymlinks(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret")
	require.NoError(t, os.WriteFile(secret, []byte("TOP-SECRET"), 0o600))
	victim := filepath.Join(outside, "victim")
	require.NoError(t, os.Mkdir(victim, 0o700))

	t.Run("hard link to a symlink", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "root")
		payload := makeTar(t,
			member{hdr: tar.Header{Name: "s", Typeflag: tar.TypeSymlink, Linkname: secret}},
			member{hdr: tar.Header{Name: "h", Typeflag: tar.TypeLink, Linkname: "s"}},
		)

		_, err := Extract(context.Background(), bytes.NewReader(payload), "leak.tar", dest, WithLogger(zap.NewNop()))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidArchive))

		_, err = os.Stat(filepath.Join(dest, "h"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("directory over a symlink", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "root")
		payload := makeTar(t,
			member{hdr: tar.Header{Name: "d", Typeflag: tar.TypeSymlink, Linkname: victim}},
			member{hdr: tar.Header{Name: "d/", Typeflag: tar.TypeDir, Mode: 0o777}},
		)

		_, err := Extract(context.Background(), bytes.NewReader(payload), "chmod.tar", dest, WithLogger(zap.NewNop()))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidArchive))

		info, err := os.Stat(victim)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	})
}

func TestExtractInvalidPayload(t *testing.T) {
	dest := t.TempDir()

	_, err := Extract(context.Background(), bytes.NewReader([]byte("definitely not a tarball")), "x.tar", dest, WithLogger(zap.NewNop()))
	assert.True(t, errors.Is(err, ErrInvalidArchive))

	_, err = Extract(context.Background(), bytes.NewReader([]byte{0x1f, 0x8b, 0x00}), "x.tar.gz", dest, WithLogger(zap.NewNop()))
	assert.True(t, errors.Is(err, ErrInvalidArchive))

	truncated := gzipped(t, sampleTar(t, rand.Bytes(5000)))
	_, err = Extract(context.Background(), io.LimitReader(bytes.NewReader(truncated), int64(len(truncated)/2)), "x.tar.gz", filepath.Join(dest, "t"), WithLogger(zap.NewNop()))
	require.Error(t, err)
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Extract(ctx, bytes.NewReader(sampleTar(t, []byte("x"))), "x.tar", t.TempDir(), WithLogger(zap.NewNop()))
	assert.True(t, errors.Is(err, context.Canceled))
}
