package flist

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/segmentio/ksuid"
)

// pack writes the content of a database directory as a gzip-compressed tar stream
func pack(dir string, w io.Writer) error {
	zw := gzip.NewWriter(w)
	tw := tar.NewWriter(zw)

	err := filepath.Walk(dir, func(pth string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, pth)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return fmt.Errorf("unexpected file in database: %s", rel)
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err = tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		fi, err := os.Open(pth)
		if err != nil {
			return err
		}
		defer func() {
			_ = fi.Close()
		}()
		_, err = io.Copy(tw, fi)
		return err
	})
	if err != nil {
		return err
	}

	if err = tw.Close(); err != nil {
		return err
	}
	return zw.Close()
}

// unpack extracts a gzip-compressed tar stream into dir
func unpack(r io.Reader, dir string) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer func() {
		_ = zr.Close()
	}()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		name := filepath.Clean(filepath.FromSlash(hdr.Name))
		if filepath.IsAbs(name) || name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)) {
			return fmt.Errorf("illegal path in archive: %q", hdr.Name)
		}
		target := filepath.Join(dir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(target, 0o700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err = os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
				return err
			}
			if err = writeFile(target, tr); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected entry type %q in archive: %q", hdr.Typeflag, hdr.Name)
		}
	}
}

func writeFile(target string, r io.Reader) error {
	fo, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err = io.Copy(fo, r); err != nil {
		_ = fo.Close()
		return err
	}
	return fo.Close()
}

// packFile packs a database directory into a file, atomically
func packFile(dir, archivePath string) error {
	tmp := filepath.Join(filepath.Dir(archivePath), fmt.Sprintf(".%s.%s.tmp", filepath.Base(archivePath), ksuid.New().String()))
	fo, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp)
	}()

	if err = pack(dir, fo); err != nil {
		_ = fo.Close()
		return err
	}
	if err = fo.Sync(); err != nil {
		_ = fo.Close()
		return err
	}
	if err = fo.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, archivePath)
}
