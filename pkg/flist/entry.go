package flist

import (
	"fmt"
	"path"
	"strings"

	"github.com/oneconcern/flisthub/pkg/flist/status"
)

// Kind of filesystem entry
type Kind uint8

// Entry kinds
const (
	KindDirectory Kind = iota + 1
	KindRegular
	KindSymlink
	KindSpecial
)

var kindNames = map[Kind]string{
	KindDirectory: "directory",
	KindRegular:   "regular",
	KindSymlink:   "symlink",
	KindSpecial:   "special",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsValid tells if this is a known kind
func (k Kind) IsValid() bool {
	_, ok := kindNames[k]
	return ok
}

// MarshalText renders a kind by its name
func (k Kind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("unknown entry kind %d", uint8(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText parses a kind name
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown entry kind %q", text)
}

// Block is a content block of a regular file.
//
// Hash identifies the block on the backend. Key is the decryption key of the block,
// empty when blocks are stored in clear.
type Block struct {
	Hash string `json:"hash" yaml:"hash"`
	Key  string `json:"key,omitempty" yaml:"key,omitempty"`
}

// Entry describes one path in an archive
type Entry struct {
	Path   string  `json:"path" yaml:"path"`
	Kind   Kind    `json:"kind" yaml:"kind"`
	Size   int64   `json:"size" yaml:"size"`
	Blocks []Block `json:"blocks,omitempty" yaml:"blocks,omitempty"`
	Target string  `json:"target,omitempty" yaml:"target,omitempty"`
	Mode   uint32  `json:"mode,omitempty" yaml:"mode,omitempty"`
	Mtime  int64   `json:"mtime,omitempty" yaml:"mtime,omitempty"`
}

// Name of the entry, i.e. the last element of its path
func (e Entry) Name() string {
	return path.Base(e.Path)
}

// Validate the consistency of an entry
func (e Entry) Validate() error {
	switch {
	case !strings.HasPrefix(e.Path, "/") || path.Clean(e.Path) != e.Path:
		return status.ErrInvalidEntry.Wrap(fmt.Errorf("path must be absolute and clean: %q", e.Path))
	case !e.Kind.IsValid():
		return status.ErrInvalidEntry.Wrap(fmt.Errorf("%s: %v", e.Path, e.Kind))
	case e.Kind != KindRegular && (e.Size != 0 || len(e.Blocks) > 0):
		return status.ErrInvalidEntry.Wrap(fmt.Errorf("%s: only regular files have content", e.Path))
	case e.Kind == KindSymlink && e.Target == "":
		return status.ErrInvalidEntry.Wrap(fmt.Errorf("%s: symlink without target", e.Path))
	case e.Kind != KindSymlink && e.Target != "":
		return status.ErrInvalidEntry.Wrap(fmt.Errorf("%s: only symlinks have a target", e.Path))
	case e.Size < 0:
		return status.ErrInvalidEntry.Wrap(fmt.Errorf("%s: negative size", e.Path))
	}

	for i, b := range e.Blocks {
		if b.Hash == "" {
			return status.ErrInvalidEntry.Wrap(fmt.Errorf("%s: block %d has no hash", e.Path, i))
		}
	}
	return nil
}
