// Copyright © 2018 One Concern

package storage

import (
	"context"
)

// Store implementations know how to check and write blocks to a content-addressable K/V backend.
//
// Implementations of this interface are assumed to be fairly simple and safe for concurrent use.
type Store interface {
	String() string

	// Has tells if a single key exists
	Has(context.Context, string) (bool, error)

	// HasMany checks the existence of a batch of keys in a single round trip.
	// The result is aligned with the input keys.
	HasMany(context.Context, []string) ([]bool, error)

	// Put sets the value for a key
	Put(context.Context, string, []byte) error

	Close() error
}
