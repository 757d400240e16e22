// Package status declares error constants returned by archive tools
package status

import "github.com/oneconcern/flisthub/pkg/errors"

var (
	// ErrToolFailure indicates that the archive tool reported a failure, or could not run
	ErrToolFailure = errors.New("archive tool failure").WithCode(502)

	// ErrInvalidRequest indicates that a tool request is missing required parameters
	ErrInvalidRequest = errors.New("invalid tool request").WithCode(400)
)
