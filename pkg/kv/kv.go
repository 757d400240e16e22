// Package kv provides an embedded, ordered key-value store.
//
// It backs the metadata database of flist archives: keys iterate in
// lexicographic byte order, which gives archive walks their stable ordering.
package kv

import (
	"github.com/oneconcern/flisthub/pkg/errors"
)

var (
	// ErrNotFound is returned when a key doesn't exist
	ErrNotFound = errors.New("key not found")

	// ErrReadOnly is returned when attempting to write to a store opened read-only
	ErrReadOnly = errors.New("store is read-only")

	// ErrOpen is returned when the store could not be opened
	ErrOpen = errors.New("cannot open KV store")
)

type (
	// Store provides an abstraction of what archives expect
	// from some underlying KV store implementation.
	Store interface {
		// Get the value for a key
		Get([]byte) ([]byte, error)
		// Exists returns true if a key exists
		Exists([]byte) (bool, error)
		// Set a key with some value
		Set([]byte, []byte) error
		// SetMany writes a batch of key/value pairs
		SetMany([]Pair) error
		// DeletePrefix removes every key with some prefix
		DeletePrefix(prefix []byte) error
		// Iterate calls fn for every key with some prefix, in key order
		Iterate(prefix []byte, fn func(key, value []byte) error) error
		// Count the keys with some prefix
		Count(prefix []byte) (int, error)
		// Compact flushes and compacts the store, so its files on disk are stable
		Compact() error
		// Close the DB
		Close() error
	}

	// Pair is a key/value pair
	Pair struct {
		Key   []byte
		Value []byte
	}
)

// Open a kv Store at some directory
func Open(pth string, opts ...Option) (Store, error) {
	return makeKVBadger(pth, defaultOptions(opts))
}
