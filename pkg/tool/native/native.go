// Package native implements the archive tool in process.
//
// Regular files are split in fixed-size blocks hashed with blake2b-512.
// Blocks are pushed to the backend unless already there.
package native

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/oneconcern/flisthub/pkg/cafs"
	"github.com/oneconcern/flisthub/pkg/flist"
	"github.com/oneconcern/flisthub/pkg/storage"
	"github.com/oneconcern/flisthub/pkg/tool"
	"github.com/oneconcern/flisthub/pkg/tool/status"
	"github.com/oneconcern/flisthub/pkg/workspace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var _ tool.Tool = &Tool{}

// Tool builds and inspects archives in process
type Tool struct {
	blockSize int64
	parallel  int
	batchSize int
	dial      Dialer
	ws        *workspace.Manager
	l         *zap.Logger
}

// New native tool
func New(opts ...Option) *Tool {
	t := defaultTool()
	for _, apply := range opts {
		apply(t)
	}
	t.finalize()
	return t
}

// Build an archive from a directory tree
func (t *Tool) Build(ctx context.Context, req tool.BuildRequest) (tool.BuildResult, error) {
	if err := req.Validate(); err != nil {
		return tool.BuildResult{}, err
	}
	l := t.l.With(zap.String("root", req.RootDir), zap.String("archive", req.Output))

	info, err := os.Stat(req.RootDir)
	if err != nil {
		return tool.BuildResult{}, status.ErrToolFailure.Wrap(err)
	}
	if !info.IsDir() {
		return tool.BuildResult{}, status.ErrToolFailure.Wrap(fmt.Errorf("%s is not a directory", req.RootDir))
	}

	backend, err := t.dial(req.Backend.Address, req.Backend.Password)
	if err != nil {
		return tool.BuildResult{}, status.ErrToolFailure.Wrap(err)
	}
	defer func() {
		_ = backend.Close()
	}()

	ws, err := t.ws.Acquire("build")
	if err != nil {
		return tool.BuildResult{}, err
	}
	defer func() {
		_ = ws.Release()
	}()

	w, err := flist.Create(ws.Join("db"), "/", flist.WithLogger(t.l))
	if err != nil {
		return tool.BuildResult{}, status.ErrToolFailure.Wrap(err)
	}

	b := &builder{
		Tool:    t,
		root:    req.RootDir,
		writer:  w,
		backend: backend,
		pushed:  make(map[cafs.Key]struct{}),
	}
	b.group, b.ctx = errgroup.WithContext(ctx)
	b.group.SetLimit(t.parallel)

	walkErr := filepath.WalkDir(req.RootDir, b.visit)
	if err = b.group.Wait(); err == nil {
		// a failed push cancels the walk: report the push failure first
		err = walkErr
	}
	if err != nil {
		_ = w.Abort()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return tool.BuildResult{}, status.ErrToolFailure.Wrap(err)
	}

	if err = w.Commit(req.Output); err != nil {
		return tool.BuildResult{}, status.ErrToolFailure.Wrap(err)
	}

	b.result.Success = true
	l.Info("flist built",
		zap.Int("entries", b.result.EntryCount()),
		zap.Int("failures", b.result.Failure),
		zap.Int64("size", b.result.Size),
		zap.Int("blocks pushed", b.pushCount),
	)
	return b.result, nil
}

type builder struct {
	*Tool
	root    string
	writer  *flist.Writer
	backend storage.Store
	result  tool.BuildResult

	ctx   context.Context
	group *errgroup.Group

	mx        sync.Mutex
	pushed    map[cafs.Key]struct{}
	pushCount int
}

func (b *builder) fail(pth string, err error) {
	b.result.Failure++
	b.result.Errors = append(b.result.Errors, fmt.Sprintf("%s: %v", pth, err))
}

func (b *builder) visit(pth string, d fs.DirEntry, err error) error {
	if e := b.ctx.Err(); e != nil {
		return e
	}

	rel, e := filepath.Rel(b.root, pth)
	if e != nil {
		return e
	}
	entryPath := "/" + filepath.ToSlash(rel)
	if rel == "." {
		entryPath = "/"
	}

	if err != nil {
		if rel == "." {
			return err
		}
		b.fail(entryPath, err)
		return nil
	}

	info, err := d.Info()
	if err != nil {
		b.fail(entryPath, err)
		return nil
	}

	entry := flist.Entry{
		Path:  entryPath,
		Mode:  uint32(info.Mode().Perm()),
		Mtime: info.ModTime().Unix(),
	}

	switch mode := info.Mode(); {
	case mode.IsDir():
		entry.Kind = flist.KindDirectory
		b.result.Directory++

	case mode&fs.ModeSymlink != 0:
		target, err := os.Readlink(pth)
		if err != nil {
			b.fail(entryPath, err)
			return nil
		}
		entry.Kind = flist.KindSymlink
		entry.Target = target
		b.result.Symlink++

	case mode.IsRegular():
		blocks, size, err := b.pushFile(pth)
		if err != nil {
			if b.ctx.Err() != nil {
				return b.ctx.Err()
			}
			b.fail(entryPath, err)
			return nil
		}
		entry.Kind = flist.KindRegular
		entry.Blocks = blocks
		entry.Size = size
		b.result.Regular++
		b.result.Size += size

	default:
		entry.Kind = flist.KindSpecial
		b.result.Special++
	}

	return b.writer.Add(entry)
}

// pushFile hashes the blocks of a file and schedules pushes for the ones not seen yet
func (b *builder) pushFile(pth string) ([]flist.Block, int64, error) {
	fi, err := os.Open(pth)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = fi.Close()
	}()

	var blocks []flist.Block
	size, err := cafs.Split(b.ctx, fi, b.blockSize, func(block cafs.Block) error {
		blocks = append(blocks, flist.Block{Hash: block.Key.String()})

		b.mx.Lock()
		_, seen := b.pushed[block.Key]
		b.pushed[block.Key] = struct{}{}
		b.mx.Unlock()
		if seen {
			return nil
		}

		data := make([]byte, len(block.Data))
		copy(data, block.Data)
		key := block.Key.String()
		b.group.Go(func() error {
			return b.push(key, data)
		})
		return nil
	})
	if blocks == nil {
		blocks = []flist.Block{}
	}
	return blocks, size, err
}

func (b *builder) push(key string, data []byte) error {
	exists, err := b.backend.Has(b.ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err = b.backend.Put(b.ctx, key, data); err != nil {
		return err
	}

	b.mx.Lock()
	b.pushCount++
	b.mx.Unlock()
	return nil
}

// Merge sources into a new archive at target. Entries of later sources replace earlier ones.
func (t *Tool) Merge(ctx context.Context, target string, sources []string) error {
	if err := tool.ValidateMergeRequest(target, sources); err != nil {
		return err
	}

	ws, err := t.ws.Acquire("merge")
	if err != nil {
		return err
	}
	defer func() {
		_ = ws.Release()
	}()

	var w *flist.Writer
	for _, source := range sources {
		store, err := flist.Open(ctx, source, ws, flist.WithLogger(t.l))
		if err != nil {
			if w != nil {
				_ = w.Abort()
			}
			return status.ErrToolFailure.Wrap(err)
		}

		if w == nil {
			if w, err = flist.Create(ws.Join("db"), store.Root(), flist.WithLogger(t.l)); err != nil {
				_ = store.Close()
				return status.ErrToolFailure.Wrap(err)
			}
		}

		add := w.Add
		err = flist.Walk(ctx, store, flist.VisitorFuncs{
			Directory: add,
			Regular:   add,
			Symlink:   add,
			Special:   add,
		})
		_ = store.Close()
		if err != nil {
			_ = w.Abort()
			return status.ErrToolFailure.Wrap(err)
		}
	}

	if err = w.Commit(target); err != nil {
		return status.ErrToolFailure.Wrap(err)
	}

	t.l.Info("flists merged", zap.String("target", target), zap.Strings("sources", sources), zap.Int("entries", w.Added()))
	return nil
}

// List the content of an archive
func (t *Tool) List(ctx context.Context, archive string) (flist.Listing, error) {
	var listing flist.Listing
	err := t.withArchive(ctx, archive, func(store *flist.Store) error {
		var err error
		listing, err = flist.List(ctx, store)
		return err
	})
	return listing, err
}

// Check that all blocks referenced by an archive exist on a backend
func (t *Tool) Check(ctx context.Context, archive string, backend tool.Backend) (flist.Result, error) {
	blocks, err := t.dial(backend.Address, backend.Password)
	if err != nil {
		return flist.Result{}, status.ErrToolFailure.Wrap(err)
	}
	defer func() {
		_ = blocks.Close()
	}()

	var result flist.Result
	err = t.withArchive(ctx, archive, func(store *flist.Store) error {
		var err error
		result, err = flist.Validate(ctx, store, blocks, flist.WithBatchSize(t.batchSize), flist.WithLogger(t.l))
		return err
	})
	return result, err
}

func (t *Tool) withArchive(ctx context.Context, archive string, fn func(*flist.Store) error) error {
	ws, err := t.ws.Acquire("inspect")
	if err != nil {
		return err
	}
	defer func() {
		_ = ws.Release()
	}()

	store, err := flist.Open(ctx, archive, ws, flist.WithLogger(t.l))
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	return fn(store)
}
