// Package tool defines the archive tool: the component which builds, merges,
// lists and checks flist archives.
//
// Implementations are synchronous: each call returns once the archive tool is done.
package tool

import (
	"context"
	"fmt"

	"github.com/oneconcern/flisthub/pkg/flist"
	"github.com/oneconcern/flisthub/pkg/tool/status"
)

type (
	// Tool builds and inspects flist archives
	Tool interface {
		// Build an archive from a directory tree, pushing file content to the backend
		Build(context.Context, BuildRequest) (BuildResult, error)

		// Merge sources into a new target archive. On collisions, the last source wins.
		Merge(ctx context.Context, target string, sources []string) error

		// List the content of an archive
		List(ctx context.Context, archive string) (flist.Listing, error)

		// Check that all blocks referenced by an archive exist on a backend
		Check(ctx context.Context, archive string, backend Backend) (flist.Result, error)
	}

	// Backend to push blocks to, or check blocks against
	Backend struct {
		Address  string `json:"address" yaml:"address"`
		Password string `json:"-" yaml:"-"`
	}

	// BuildRequest describes an archive to build
	BuildRequest struct {
		RootDir string
		Output  string
		Backend Backend
	}

	// BuildResult summarizes a build.
	//
	// Errors holds partial failures reported by the tool, verbatim.
	BuildResult struct {
		Success   bool     `json:"success" yaml:"success"`
		Regular   int      `json:"regular" yaml:"regular"`
		Directory int      `json:"directory" yaml:"directory"`
		Symlink   int      `json:"symlink" yaml:"symlink"`
		Special   int      `json:"special" yaml:"special"`
		Failure   int      `json:"failure" yaml:"failure"`
		Size      int64    `json:"size" yaml:"size"`
		Errors    []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	}
)

// EntryCount is the number of entries recorded in the archive
func (r BuildResult) EntryCount() int {
	return r.Regular + r.Directory + r.Symlink + r.Special
}

// Validate a build request
func (r BuildRequest) Validate() error {
	switch {
	case r.RootDir == "":
		return status.ErrInvalidRequest.Wrap(fmt.Errorf("missing root directory"))
	case r.Output == "":
		return status.ErrInvalidRequest.Wrap(fmt.Errorf("missing output archive"))
	case r.Backend.Address == "":
		return status.ErrInvalidRequest.Wrap(fmt.Errorf("missing backend"))
	}
	return nil
}

// ValidateMergeRequest checks the arguments of a merge
func ValidateMergeRequest(target string, sources []string) error {
	if target == "" {
		return status.ErrInvalidRequest.Wrap(fmt.Errorf("missing merge target"))
	}
	if len(sources) == 0 {
		return status.ErrInvalidRequest.Wrap(fmt.Errorf("no source to merge"))
	}
	return nil
}
