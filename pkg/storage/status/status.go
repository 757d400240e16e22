// Copyright © 2018 One Concern

// Package status declares error constants returned by
// implementations of the Store interface.
//
// NOTE: such constants are located in a separate package to avoid
// creating undue cyclical dependencies between pkg/storage and one
// of its implementions.
package status

import "github.com/oneconcern/flisthub/pkg/errors"

var (
	// Sentinel errors returned by implementations of the interface defined by storage

	// ErrUnavailable indicates that the backend could not be reached. Callers may retry.
	ErrUnavailable = errors.New("backend unavailable").WithCode(503)

	// ErrRejected indicates that the backend refused the request (e.g. authentication, namespace). Retrying won't help.
	ErrRejected = errors.New("backend rejected request").WithCode(502)

	// ErrInvalidKey indicates that a key is not acceptable as a block hash
	ErrInvalidKey = errors.New("invalid block key").WithCode(400)

	// ErrInvalidAddress indicates that a backend address could not be parsed
	ErrInvalidAddress = errors.New("invalid backend address").WithCode(400)
)

// IsRetryable tells if a backend error may succeed when retried later
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
