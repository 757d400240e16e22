// Package unpack extracts uploaded tar archives, plain or compressed.
package unpack

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/oneconcern/flisthub/pkg/dlogger"
	"github.com/oneconcern/flisthub/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ErrInvalidArchive is returned when the payload is not a readable tar archive, or is unsafe to extract
var ErrInvalidArchive = errors.New("invalid archive").WithCode(422)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Stats counts what was extracted
type Stats struct {
	Directories int   `json:"directories" yaml:"directories"`
	Files       int   `json:"files" yaml:"files"`
	Symlinks    int   `json:"symlinks" yaml:"symlinks"`
	Hardlinks   int   `json:"hardlinks" yaml:"hardlinks"`
	Specials    int   `json:"specials" yaml:"specials"`
	Skipped     int   `json:"skipped" yaml:"skipped"`
	Bytes       int64 `json:"bytes" yaml:"bytes"`
}

// Option for extraction
type Option func(*extractor)

// WithLogger sets a logger
func WithLogger(l *zap.Logger) Option {
	return func(x *extractor) {
		if l != nil {
			x.l = l
		}
	}
}

type extractor struct {
	dest  string
	l     *zap.Logger
	stats Stats
	dirs  []dirMeta
}

type dirMeta struct {
	path  string
	mode  os.FileMode
	mtime time.Time
}

// Extract a tar archive read from payload into dest.
//
// The compression (gzip, zstd or none) is detected from the content. Hard links
// are extracted as copies. Devices and fifos are created when permitted and skipped otherwise.
// Entries that would land outside dest are rejected.
func Extract(ctx context.Context, payload io.Reader, name, dest string, opts ...Option) (Stats, error) {
	x := &extractor{
		dest: filepath.Clean(dest),
		l:    dlogger.MustGetLogger("info"),
	}
	for _, apply := range opts {
		apply(x)
	}
	x.l = x.l.With(zap.String("archive", name))

	if err := os.MkdirAll(x.dest, 0o755); err != nil {
		return Stats{}, err
	}

	rdr, closer, err := decompress(payload)
	if err != nil {
		return Stats{}, ErrInvalidArchive.Wrap(err)
	}
	defer closer()

	tr := tar.NewReader(rdr)
	for {
		if err = ctx.Err(); err != nil {
			return x.stats, err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return x.stats, ErrInvalidArchive.Wrap(err)
		}

		if err = x.extract(hdr, tr); err != nil {
			return x.stats, err
		}
	}

	// directory permissions are applied last, so that read-only directories may be populated
	for i := len(x.dirs) - 1; i >= 0; i-- {
		d := x.dirs[i]
		info, err := os.Lstat(d.path)
		if err != nil {
			return x.stats, err
		}
		if !info.IsDir() {
			return x.stats, ErrInvalidArchive.Wrap(fmt.Errorf("%s is no longer a directory", d.path))
		}
		if err = os.Chmod(d.path, d.mode); err != nil {
			return x.stats, err
		}
		_ = os.Chtimes(d.path, d.mtime, d.mtime)
	}

	x.l.Debug("archive extracted",
		zap.Int("directories", x.stats.Directories),
		zap.Int("files", x.stats.Files),
		zap.Int("symlinks", x.stats.Symlinks),
		zap.Int("skipped", x.stats.Skipped),
	)
	return x.stats, nil
}

func decompress(payload io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(payload)
	magic, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, nil, err
	}

	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil

	case bytes.HasPrefix(magic, zstdMagic):
		dec, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil

	default:
		return br, func() {}, nil
	}
}

// resolve the destination of an archive member, rejecting anything outside dest
func (x *extractor) resolve(name string) (string, string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(name)))
	if clean == "" || clean == "." {
		return x.dest, ".", nil
	}
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", "", ErrInvalidArchive.Wrap(fmt.Errorf("unsafe archive path: %s", name))
	}

	target := filepath.Join(x.dest, clean)
	if !isWithin(target, x.dest) {
		return "", "", ErrInvalidArchive.Wrap(fmt.Errorf("archive path escapes destination: %s", name))
	}

	// no parent may be a symlink: it could point anywhere
	if err := x.checkParents(clean); err != nil {
		return "", "", err
	}

	return target, clean, nil
}

func (x *extractor) checkParents(clean string) error {
	parts := strings.Split(filepath.Dir(clean), string(filepath.Separator))
	current := x.dest
	for _, part := range parts {
		if part == "." || part == "" {
			continue
		}
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return ErrInvalidArchive.Wrap(fmt.Errorf("archive path traverses a symlink: %s", clean))
		}
	}
	return nil
}

func isWithin(pth, dir string) bool {
	rel, err := filepath.Rel(dir, pth)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (x *extractor) extract(hdr *tar.Header, r io.Reader) error {
	target, clean, err := x.resolve(hdr.Name)
	if err != nil {
		return err
	}
	mode := hdr.FileInfo().Mode().Perm()

	if hdr.Typeflag != tar.TypeDir {
		if clean == "." {
			return nil
		}
		if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err = removeExisting(target); err != nil {
			return err
		}
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		// MkdirAll would follow a symlink left by an earlier member
		if info, e := os.Lstat(target); e == nil && info.Mode()&os.ModeSymlink != 0 {
			return ErrInvalidArchive.Wrap(fmt.Errorf("directory %s replaces a symlink", clean))
		}
		if err = os.MkdirAll(target, 0o755); err != nil {
			return err
		}
		// the owner keeps full access, or the workspace could not be released
		x.dirs = append(x.dirs, dirMeta{path: target, mode: mode | 0o700, mtime: hdr.ModTime})
		x.stats.Directories++

	case tar.TypeReg:
		n, err := writeFile(target, r, mode)
		if err != nil {
			return err
		}
		_ = os.Chtimes(target, hdr.ModTime, hdr.ModTime)
		x.stats.Files++
		x.stats.Bytes += n

	case tar.TypeSymlink:
		if err = os.Symlink(hdr.Linkname, target); err != nil {
			return err
		}
		x.stats.Symlinks++

	case tar.TypeLink:
		source, _, err := x.resolve(hdr.Linkname)
		if err != nil {
			return err
		}
		info, err := os.Lstat(source)
		if err != nil {
			return ErrInvalidArchive.Wrap(fmt.Errorf("hard link %s to unknown %s: %w", hdr.Name, hdr.Linkname, err))
		}
		if !info.Mode().IsRegular() {
			return ErrInvalidArchive.Wrap(fmt.Errorf("hard link %s to %s: not a regular file", hdr.Name, hdr.Linkname))
		}
		fi, err := os.OpenFile(source, os.O_RDONLY|unix.O_NOFOLLOW, 0)
		if err != nil {
			return ErrInvalidArchive.Wrap(fmt.Errorf("hard link %s to %s: %w", hdr.Name, hdr.Linkname, err))
		}
		n, err := writeFile(target, fi, mode)
		_ = fi.Close()
		if err != nil {
			return err
		}
		x.stats.Hardlinks++
		x.stats.Bytes += n

	case tar.TypeFifo, tar.TypeChar, tar.TypeBlock:
		if err = mknod(target, hdr); err != nil {
			x.l.Debug("skipped special file", zap.String("path", clean), zap.Error(err))
			x.stats.Skipped++
			return nil
		}
		x.stats.Specials++

	default:
		// pax headers and unsupported types
		x.l.Debug("skipped archive entry", zap.String("path", clean), zap.Int("type", int(hdr.Typeflag)))
		x.stats.Skipped++
	}

	return nil
}

func removeExisting(target string) error {
	info, err := os.Lstat(target)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return ErrInvalidArchive.Wrap(fmt.Errorf("cannot replace directory %s", target))
	}
	return os.Remove(target)
}

func writeFile(target string, r io.Reader, mode os.FileMode) (int64, error) {
	fo, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(fo, r)
	if err != nil {
		_ = fo.Close()
		return n, ErrInvalidArchive.Wrap(err)
	}
	if err = fo.Close(); err != nil {
		return n, err
	}
	return n, os.Chmod(target, mode)
}

func mknod(target string, hdr *tar.Header) error {
	mode := uint32(hdr.Mode & 0o7777)
	switch hdr.Typeflag {
	case tar.TypeFifo:
		return unix.Mkfifo(target, mode)
	case tar.TypeChar:
		mode |= unix.S_IFCHR
	case tar.TypeBlock:
		mode |= unix.S_IFBLK
	}
	dev := unix.Mkdev(uint32(hdr.Devmajor), uint32(hdr.Devminor))
	return unix.Mknod(target, mode, int(dev))
}
