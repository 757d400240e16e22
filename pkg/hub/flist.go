package hub

import (
	"crypto/md5" // #nosec: md5 is the published checksum format of archives, not a security feature
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oneconcern/flisthub/pkg/hub/status"
)

// Extension of archive files
const Extension = ".flist"

const checksumChunkSize = 4096

// Flist identifies an archive in the public repository
type Flist struct {
	root      string
	Namespace string `json:"namespace" yaml:"namespace"`
	Name      string `json:"name" yaml:"name"`
}

// NewFlist identifies an archive in a namespace. The name is suffixed with .flist when it is not already.
func NewFlist(root, namespace, name string) (*Flist, error) {
	if err := validateName("namespace", namespace); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(name, Extension) {
		name += Extension
	}
	if err := validateName("flist", strings.TrimSuffix(name, Extension)); err != nil {
		return nil, err
	}

	return &Flist{
		root:      root,
		Namespace: namespace,
		Name:      name,
	}, nil
}

func validateName(what, name string) error {
	switch {
	case name == "":
		return status.ErrInvalidName.Wrap(fmt.Errorf("empty %s name", what))
	case name == "." || name == "..":
		return status.ErrInvalidName.Wrap(fmt.Errorf("%s name not allowed: %q", what, name))
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return status.ErrInvalidName.Wrap(fmt.Errorf("%s name may not contain a path separator: %q", what, name))
	case strings.HasPrefix(name, "."):
		return status.ErrInvalidName.Wrap(fmt.Errorf("%s name may not start with a dot: %q", what, name))
	}
	return nil
}

// String representation as namespace/name
func (f *Flist) String() string {
	return f.Namespace + "/" + f.Name
}

// Target is the path to the archive file
func (f *Flist) Target() string {
	return filepath.Join(f.root, f.Namespace, f.Name)
}

// NamespacePath is the path to the namespace directory
func (f *Flist) NamespacePath() string {
	return filepath.Join(f.root, f.Namespace)
}

// NamespaceExists tells if the namespace directory exists
func (f *Flist) NamespaceExists() bool {
	info, err := os.Stat(f.NamespacePath())
	return err == nil && info.IsDir()
}

// EnsureNamespace creates the namespace directory if missing
func (f *Flist) EnsureNamespace() error {
	err := os.Mkdir(f.NamespacePath(), 0o755)
	if err == nil || (os.IsExist(err) && f.NamespaceExists()) {
		return nil
	}
	return status.ErrResource.Wrap(err)
}

// Exists tells if the archive exists, as a regular file or a symlink
func (f *Flist) Exists() bool {
	info, err := os.Lstat(f.Target())
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() || info.Mode()&os.ModeSymlink != 0
}

// IsSymlink tells if the archive is a symbolic link
func (f *Flist) IsSymlink() bool {
	info, err := os.Lstat(f.Target())
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// Checksum computes the md5 digest of the archive, as an hex string.
//
// When the archive doesn't exist, Checksum returns false and no error.
func (f *Flist) Checksum() (string, bool, error) {
	fi, err := os.Open(f.Target())
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, status.ErrResource.Wrap(err)
	}
	defer func() {
		_ = fi.Close()
	}()

	info, err := fi.Stat()
	if err != nil {
		return "", false, status.ErrResource.Wrap(err)
	}
	if !info.Mode().IsRegular() {
		return "", false, nil
	}

	h := md5.New() // #nosec
	buf := make([]byte, checksumChunkSize)
	for {
		n, err := fi.Read(buf)
		if n > 0 {
			_, _ = h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", false, status.ErrResource.Wrap(err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), true, nil
}
