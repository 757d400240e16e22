// Package status declares error constants returned by workspaces
package status

import "github.com/oneconcern/flisthub/pkg/errors"

var (
	// ErrResource indicates that a workspace could not be created
	ErrResource = errors.New("cannot allocate workspace").WithCode(500)

	// ErrReleased is returned when using a workspace after it has been released
	ErrReleased = errors.New("workspace already released")
)
