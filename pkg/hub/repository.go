package hub

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/oneconcern/flisthub/pkg/flist"
	"github.com/oneconcern/flisthub/pkg/hub/status"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// Entry types reported by Contents and Info
const (
	TypeRegular = "regular"
	TypeSymlink = "symlink"
)

type (
	// Repository is a namespace of the hub
	Repository struct {
		Name     string `json:"name" yaml:"name"`
		Official bool   `json:"official" yaml:"official"`
	}

	// Content describes an archive in a namespace
	Content struct {
		Name    string    `json:"name" yaml:"name"`
		Size    string    `json:"size" yaml:"size"`
		Updated time.Time `json:"updated" yaml:"updated"`
		Type    string    `json:"type" yaml:"type"`
		Target  string    `json:"target,omitempty" yaml:"target,omitempty"`
	}

	// Info describes an archive, with its checksum
	Info struct {
		Content  `yaml:",inline"`
		Checksum string `json:"md5,omitempty" yaml:"md5,omitempty"`
	}

	// Readme holds what users need to know to fetch an archive
	Readme struct {
		Name     string `json:"name" yaml:"name"`
		Uploader string `json:"uploader" yaml:"uploader"`
		Source   string `json:"source" yaml:"source"`
		Storage  string `json:"storage" yaml:"storage"`
		Checksum string `json:"md5" yaml:"md5"`
	}
)

// existing identifies an archive which must be present
func (h *Hub) existing(namespace, name string) (*Flist, error) {
	f, err := h.Flist(namespace, name)
	if err != nil {
		return nil, err
	}
	if !f.NamespaceExists() {
		return nil, status.ErrNotFound.Wrap(fmt.Errorf("namespace %q", namespace))
	}
	if !f.Exists() {
		return nil, status.ErrNotFound.Wrap(fmt.Errorf("flist %s", f))
	}
	return f, nil
}

// Promote copies an archive into another namespace.
//
// Both namespaces must exist. An archive already present at the destination is replaced.
func (h *Hub) Promote(ctx context.Context, srcNamespace, srcName, dstNamespace, dstName string) (err error) {
	done := h.m.used("promote")
	defer func() {
		done(err)
	}()

	src, err := h.existing(srcNamespace, srcName)
	if err != nil {
		return err
	}
	dst, err := h.Flist(dstNamespace, dstName)
	if err != nil {
		return err
	}
	if !dst.NamespaceExists() {
		return status.ErrNotFound.Wrap(fmt.Errorf("namespace %q", dstNamespace))
	}

	unlock, err := h.locks.lock(ctx, src, dst)
	if err != nil {
		return err
	}
	defer unlock()

	if err = h.place(src.Target(), dst); err != nil {
		return err
	}
	h.l.Info("flist promoted", zap.Stringer("source", src), zap.Stringer("destination", dst))
	return nil
}

// Link creates or repoints a symbolic link to an archive of the same namespace.
//
// A regular file in the way of the link is never replaced.
func (h *Hub) Link(ctx context.Context, namespace, source, linkName string) (err error) {
	done := h.m.used("link")
	defer func() {
		done(err)
	}()

	src, err := h.existing(namespace, source)
	if err != nil {
		return err
	}
	link, err := h.Flist(namespace, linkName)
	if err != nil {
		return err
	}
	if link.Name == src.Name {
		return status.ErrConflict.Wrap(fmt.Errorf("%s may not link to itself", link))
	}

	unlock, err := h.locks.lock(ctx, link)
	if err != nil {
		return err
	}
	defer unlock()

	if link.Exists() && !link.IsSymlink() {
		return status.ErrConflict.Wrap(fmt.Errorf("%s is a regular file", link))
	}

	tmp := filepath.Join(link.NamespacePath(), fmt.Sprintf(".%s.%s.tmp", link.Name, ksuid.New().String()))
	if err = os.Symlink(src.Name, tmp); err != nil {
		return status.ErrResource.Wrap(err)
	}
	if err = os.Rename(tmp, link.Target()); err != nil {
		_ = os.Remove(tmp)
		return status.ErrResource.Wrap(err)
	}

	h.l.Info("flist linked", zap.Stringer("link", link), zap.String("target", src.Name))
	return nil
}

// Rename an archive within its namespace.
//
// As for links, a regular file in the way is never replaced: only a symlink destination is.
func (h *Hub) Rename(ctx context.Context, namespace, source, destination string) (err error) {
	done := h.m.used("rename")
	defer func() {
		done(err)
	}()

	src, err := h.existing(namespace, source)
	if err != nil {
		return err
	}
	dst, err := h.Flist(namespace, destination)
	if err != nil {
		return err
	}
	if src.Name == dst.Name {
		return nil
	}

	unlock, err := h.locks.lock(ctx, src, dst)
	if err != nil {
		return err
	}
	defer unlock()

	if dst.Exists() && !dst.IsSymlink() {
		return status.ErrConflict.Wrap(fmt.Errorf("%s already exists", dst))
	}

	if err = os.Rename(src.Target(), dst.Target()); err != nil {
		if os.IsNotExist(err) {
			return status.ErrNotFound.Wrap(err)
		}
		return status.ErrResource.Wrap(err)
	}

	h.l.Info("flist renamed", zap.Stringer("source", src), zap.Stringer("destination", dst))
	return nil
}

// Delete an archive or a link. Blocks on the backend are left untouched.
func (h *Hub) Delete(ctx context.Context, namespace, name string) (err error) {
	done := h.m.used("delete")
	defer func() {
		done(err)
	}()

	f, err := h.existing(namespace, name)
	if err != nil {
		return err
	}

	unlock, err := h.locks.lock(ctx, f)
	if err != nil {
		return err
	}
	defer unlock()

	if err = os.Remove(f.Target()); err != nil {
		if os.IsNotExist(err) {
			return status.ErrNotFound.Wrap(err)
		}
		return status.ErrResource.Wrap(err)
	}

	h.l.Info("flist deleted", zap.Stringer("flist", f))
	return nil
}

// Checksum of an archive. It returns false when the archive doesn't exist.
func (h *Hub) Checksum(namespace, name string) (string, bool, error) {
	f, err := h.Flist(namespace, name)
	if err != nil {
		return "", false, err
	}
	return f.Checksum()
}

// Repositories lists the namespaces of the hub
func (h *Hub) Repositories() ([]Repository, error) {
	entries, err := os.ReadDir(h.cfg.PublicDirectory)
	if err != nil {
		return nil, status.ErrResource.Wrap(err)
	}

	repos := make([]Repository, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		repos = append(repos, Repository{
			Name:     entry.Name(),
			Official: h.cfg.IsOfficial(entry.Name()),
		})
	}
	// ReadDir sorts by name
	return repos, nil
}

// Contents lists the archives and links of a namespace
func (h *Hub) Contents(namespace string) ([]Content, error) {
	if err := validateName("namespace", namespace); err != nil {
		return nil, err
	}

	dir := filepath.Join(h.cfg.PublicDirectory, namespace)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, status.ErrNotFound.Wrap(fmt.Errorf("namespace %q", namespace))
		}
		return nil, status.ErrResource.Wrap(err)
	}

	contents := make([]Content, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		content, ok, err := describe(filepath.Join(dir, entry.Name()))
		if err != nil {
			h.l.Warn("skipping unreadable entry", zap.String("namespace", namespace), zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		if ok {
			contents = append(contents, content)
		}
	}
	return contents, nil
}

// describe an archive or link from lstat. Other file types are ignored.
func describe(pth string) (Content, bool, error) {
	info, err := os.Lstat(pth)
	if err != nil {
		return Content{}, false, err
	}

	content := Content{
		Name:    info.Name(),
		Updated: info.ModTime().UTC(),
	}
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(pth)
		if err != nil {
			return Content{}, false, err
		}
		content.Type = TypeSymlink
		content.Size = "--"
		content.Target = target
	case info.Mode().IsRegular():
		content.Type = TypeRegular
		content.Size = units.HumanSize(float64(info.Size()))
	default:
		return Content{}, false, nil
	}
	return content, true, nil
}

// AllFlists lists every archive of the hub, as namespace/name
func (h *Hub) AllFlists() ([]string, error) {
	repos, err := h.Repositories()
	if err != nil {
		return nil, err
	}

	var all []string
	for _, repo := range repos {
		contents, err := h.Contents(repo.Name)
		if err != nil {
			return nil, err
		}
		for _, content := range contents {
			if strings.HasSuffix(content.Name, Extension) {
				all = append(all, repo.Name+"/"+content.Name)
			}
		}
	}
	sort.Strings(all)
	return all, nil
}

// Info about an archive
func (h *Hub) Info(namespace, name string) (Info, error) {
	f, err := h.existing(namespace, name)
	if err != nil {
		return Info{}, err
	}

	content, ok, err := describe(f.Target())
	if err != nil || !ok {
		return Info{}, status.ErrNotFound.Wrap(fmt.Errorf("flist %s", f))
	}

	checksum, _, err := f.Checksum()
	if err != nil {
		return Info{}, err
	}
	return Info{Content: content, Checksum: checksum}, nil
}

// Readme of an archive
func (h *Hub) Readme(namespace, name string) (Readme, error) {
	f, err := h.existing(namespace, name)
	if err != nil {
		return Readme{}, err
	}

	checksum, _, err := f.Checksum()
	if err != nil {
		return Readme{}, err
	}

	return Readme{
		Name:     f.Name,
		Uploader: f.Namespace,
		Source:   strings.TrimSuffix(h.cfg.PublicWebsite, "/") + "/" + f.String(),
		Storage:  h.cfg.PublicBackend.Display(),
		Checksum: checksum,
	}, nil
}

// Inspect lists the content of an archive
func (h *Hub) Inspect(ctx context.Context, namespace, name string) (flist.Listing, error) {
	f, err := h.existing(namespace, name)
	if err != nil {
		return flist.Listing{}, err
	}

	listing, err := h.tool.List(ctx, f.Target())
	if err != nil {
		return flist.Listing{}, status.FromLower(err)
	}
	return listing, nil
}

// Check that all the content of an archive is present on the backend
func (h *Hub) Check(ctx context.Context, namespace, name string) (_ flist.Result, err error) {
	done := h.m.used("check")
	defer func() {
		done(err)
	}()

	f, err := h.existing(namespace, name)
	if err != nil {
		return flist.Result{}, err
	}

	result, err := h.tool.Check(ctx, f.Target(), h.backend())
	if err != nil {
		return flist.Result{}, status.FromLower(err)
	}
	h.m.checked(result)
	return result, nil
}
