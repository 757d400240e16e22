// Copyright © 2018 One Concern

// Package storage provides an interface to the content-addressable backend
// holding the blocks referenced by flist archives.
//
// This package supports the following backends:
//   - redis protocol (0-db, redis, ardb), see package redis
//   - local file system, see package localfs
//
// A backend only has to answer "does key K exist" and "set key K to these
// bytes". Failures are classified by package status as either unavailable
// (retryable by the caller) or rejected (not retryable).
package storage
