package hub

import (
	"context"
	"fmt"
	"strings"

	"github.com/oneconcern/flisthub/pkg/hub/status"
	"go.uber.org/zap"
)

// ValidateMerge checks the arguments of a merge and yields the target archive name
func ValidateMerge(sources []string, target string) (string, error) {
	if len(sources) == 0 {
		return "", status.ErrInvalidName.Wrap(fmt.Errorf("no source found"))
	}
	if target == "" {
		return "", status.ErrInvalidName.Wrap(fmt.Errorf("missing build (target) name"))
	}
	if strings.ContainsAny(target, `/\`) {
		return "", status.ErrInvalidName.Wrap(fmt.Errorf("build name not allowed"))
	}
	if !strings.HasSuffix(target, Extension) {
		target += Extension
	}
	return target, nil
}

// Merge sources into a new archive of a namespace.
//
// Sources are either names in the namespace or namespace/name references.
// Entries of later sources override earlier ones.
func (h *Hub) Merge(ctx context.Context, namespace, target string, sources []string) (_ *Flist, err error) {
	done := h.m.used("merge")
	defer func() {
		done(err)
	}()

	name, err := ValidateMerge(sources, target)
	if err != nil {
		return nil, err
	}
	dst, err := h.Flist(namespace, name)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(sources))
	for _, source := range sources {
		src, e := h.resolve(namespace, source)
		if e != nil {
			return nil, e
		}
		if !src.Exists() {
			return nil, status.ErrNotFound.Wrap(fmt.Errorf("source %s", src))
		}
		paths = append(paths, src.Target())
	}

	ws, err := h.workspaces.Acquire("merge")
	if err != nil {
		return nil, status.FromLower(err)
	}
	defer func() {
		_ = ws.Release()
	}()

	merged := ws.Join(dst.Name)
	if err = h.tool.Merge(ctx, merged, paths); err != nil {
		return nil, status.FromLower(err)
	}

	if err = h.publish(ctx, merged, dst); err != nil {
		return nil, err
	}

	h.l.Info("flists merged", zap.Stringer("flist", dst), zap.Strings("sources", sources))
	return dst, nil
}

// MergeAsync schedules a merge. The job yields the merged *Flist.
func (h *Hub) MergeAsync(ctx context.Context, namespace, target string, sources []string) (<-chan JobResult, error) {
	if _, err := ValidateMerge(sources, target); err != nil {
		return nil, err
	}

	return h.scheduler.Submit(ctx, func(jobCtx context.Context) (interface{}, error) {
		return h.Merge(jobCtx, namespace, target, sources)
	})
}
