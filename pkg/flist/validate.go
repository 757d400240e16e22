package flist

import (
	"context"
	"fmt"
	"sort"

	"github.com/oneconcern/flisthub/pkg/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result of the validation of an archive against a backend
type Result struct {
	// Complete is true when every block referenced by the archive exists on the backend
	Complete bool `json:"complete" yaml:"complete"`

	// Missing block hashes, sorted. When the backend failed, this includes every hash that could not be resolved.
	Missing []string `json:"missing" yaml:"missing"`

	// Checked is the number of distinct block hashes referenced by the archive
	Checked int `json:"checked" yaml:"checked"`

	// Reason explains why validation could not complete, if the backend failed
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Validate that every content block referenced by the archive exists on the backend.
//
// Hashes are queried in batches, each batch in a single round trip. A backend failure
// stops the check: all hashes not resolved by then are reported missing and the
// failure is reported as the Reason. The returned error is reserved to failures
// walking the archive.
func Validate(ctx context.Context, store *Store, backend storage.Store, opts ...Option) (Result, error) {
	o := defaultOptions(opts)
	l := o.l.With(zap.String("archive", store.Archive()), zap.String("backend", backend.String()))

	hashes, err := blockHashes(ctx, store)
	if err != nil {
		return Result{}, err
	}

	batches := make([][]string, 0, len(hashes)/o.batchSize+1)
	for start := 0; start < len(hashes); start += o.batchSize {
		end := start + o.batchSize
		if end > len(hashes) {
			end = len(hashes)
		}
		batches = append(batches, hashes[start:end])
	}

	answers := make([][]bool, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallel)

BATCHES:
	for i := range batches {
		select {
		case <-gctx.Done():
			break BATCHES
		default:
		}

		idx := i
		g.Go(func() error {
			if e := gctx.Err(); e != nil {
				return e
			}
			batch := batches[idx]
			exists, e := backend.HasMany(gctx, batch)
			if e != nil {
				return e
			}
			if len(exists) != len(batch) {
				return fmt.Errorf("backend answered %d results for %d keys", len(exists), len(batch))
			}
			answers[idx] = exists
			return nil
		})
	}
	backendErr := g.Wait()

	if err = ctx.Err(); err != nil {
		return Result{}, err
	}

	result := Result{
		Checked: len(hashes),
		Missing: []string{},
	}
	for i, batch := range batches {
		exists := answers[i]
		for j, hash := range batch {
			if exists == nil || !exists[j] {
				result.Missing = append(result.Missing, hash)
			}
		}
	}
	result.Complete = backendErr == nil && len(result.Missing) == 0

	if backendErr != nil {
		result.Reason = backendErr.Error()
		l.Warn("backend failed during validation", zap.Error(backendErr), zap.Int("unresolved", len(result.Missing)))
	} else {
		l.Debug("flist validated", zap.Int("checked", result.Checked), zap.Int("missing", len(result.Missing)))
	}

	return result, nil
}

// blockHashes collects the distinct block hashes of all regular files, sorted
func blockHashes(ctx context.Context, store *Store) ([]string, error) {
	unique := make(map[string]struct{})
	err := Walk(ctx, store, VisitorFuncs{
		Regular: func(e Entry) error {
			for _, b := range e.Blocks {
				unique[b.Hash] = struct{}{}
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	hashes := make([]string, 0, len(unique))
	for hash := range unique {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)
	return hashes, nil
}
