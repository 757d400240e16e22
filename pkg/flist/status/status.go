// Package status declares error constants returned by flist archives
package status

import "github.com/oneconcern/flisthub/pkg/errors"

var (
	// ErrNotFound indicates that the archive file does not exist
	ErrNotFound = errors.New("flist not found").WithCode(404)

	// ErrEntryNotFound indicates that a path is not part of an archive
	ErrEntryNotFound = errors.New("entry not found in flist").WithCode(404)

	// ErrCorrupt indicates that the archive cannot be opened or decoded
	ErrCorrupt = errors.New("corrupt flist").WithCode(422)

	// ErrInvalidEntry is returned when attempting to add an inconsistent entry to an archive
	ErrInvalidEntry = errors.New("invalid flist entry").WithCode(400)

	// ErrCommitted is returned when using a writer after it has been committed or aborted
	ErrCommitted = errors.New("flist writer already closed")
)
