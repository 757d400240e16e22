// Package status declares the errors reported by hub operations.
//
// Each error carries a status code (see errors.Code) which front ends
// may use as is, e.g. as an HTTP status.
package status

import (
	"github.com/oneconcern/flisthub/pkg/errors"
	fliststatus "github.com/oneconcern/flisthub/pkg/flist/status"
	storagestatus "github.com/oneconcern/flisthub/pkg/storage/status"
	toolstatus "github.com/oneconcern/flisthub/pkg/tool/status"
	"github.com/oneconcern/flisthub/pkg/unpack"
	wsstatus "github.com/oneconcern/flisthub/pkg/workspace/status"
)

var (
	// ErrNotFound indicates a missing namespace, source or flist
	ErrNotFound = errors.New("not found").WithCode(404)

	// ErrConflict indicates that the operation would overwrite something it may not
	ErrConflict = errors.New("conflict").WithCode(409)

	// ErrInvalidName indicates an unacceptable namespace or flist name
	ErrInvalidName = errors.New("invalid name").WithCode(400)

	// ErrNotAllowed indicates an upload with a file type which is not accepted
	ErrNotAllowed = errors.New("this file is not allowed").WithCode(400)

	// ErrCorrupt indicates an unreadable archive or upload
	ErrCorrupt = errors.New("corrupt archive").WithCode(422)

	// ErrIncomplete indicates an archive referencing content which is not present on the backend
	ErrIncomplete = errors.New("unauthorized upload, contents is not fully present on backend").WithCode(412)

	// ErrUnavailable indicates that the backend could not be reached
	ErrUnavailable = errors.New("backend unavailable").WithCode(503)

	// ErrToolFailure indicates a failure reported by the archive tool
	ErrToolFailure = errors.New("archive tool failure").WithCode(502)

	// ErrResource indicates a local resource failure, such as disk space or permissions
	ErrResource = errors.New("resource failure").WithCode(500)

	// ErrLocked indicates that another operation holds the target for too long
	ErrLocked = errors.New("target is locked by another operation").WithCode(423)

	// ErrTimeout indicates that the caller gave up waiting for a scheduled job
	ErrTimeout = errors.New("timed out waiting for job").WithCode(504)

	hubErrors = []*errors.Error{
		ErrNotFound, ErrConflict, ErrInvalidName, ErrNotAllowed, ErrCorrupt, ErrIncomplete,
		ErrUnavailable, ErrToolFailure, ErrResource, ErrLocked, ErrTimeout,
	}
)

// FromLower translates errors from lower level packages into hub errors.
//
// The original error remains in the chain. Hub errors and nil are returned unchanged.
func FromLower(err error) error {
	if err == nil {
		return nil
	}

	for _, known := range hubErrors {
		if errors.Is(err, known) {
			return err
		}
	}

	switch {
	case errors.Is(err, storagestatus.ErrUnavailable), errors.Is(err, storagestatus.ErrRejected):
		return ErrUnavailable.Wrap(err)
	case errors.Is(err, toolstatus.ErrInvalidRequest), errors.Is(err, storagestatus.ErrInvalidAddress):
		return ErrInvalidName.Wrap(err)
	case errors.Is(err, toolstatus.ErrToolFailure):
		return ErrToolFailure.Wrap(err)
	case errors.Is(err, fliststatus.ErrNotFound), errors.Is(err, fliststatus.ErrEntryNotFound):
		return ErrNotFound.Wrap(err)
	case errors.Is(err, fliststatus.ErrCorrupt), errors.Is(err, unpack.ErrInvalidArchive):
		return ErrCorrupt.Wrap(err)
	case errors.Is(err, wsstatus.ErrResource):
		return ErrResource.Wrap(err)
	default:
		return err
	}
}
