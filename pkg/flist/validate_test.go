package flist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidate(t *testing.T) {
	store := openArchive(t, buildArchive(t,
		dir("/"),
		regular("/a", "aaa1", "bbb2"),
		regular("/b", "bbb2", "ccc3"),
		regular("/empty"),
		symlink("/c", "a"),
	))
	ctx := context.Background()

	t.Run("complete", func(t *testing.T) {
		result, err := Validate(ctx, store, memBackend(t, "aaa1", "bbb2", "ccc3"), WithLogger(zap.NewNop()))
		require.NoError(t, err)
		assert.True(t, result.Complete)
		assert.Empty(t, result.Missing)
		assert.Equal(t, 3, result.Checked)
		assert.Empty(t, result.Reason)
	})

	t.Run("one hash missing flips the result", func(t *testing.T) {
		result, err := Validate(ctx, store, memBackend(t, "aaa1", "ccc3"), WithLogger(zap.NewNop()))
		require.NoError(t, err)
		assert.False(t, result.Complete)
		assert.Equal(t, []string{"bbb2"}, result.Missing)
	})

	t.Run("batches", func(t *testing.T) {
		backend := &failingBackend{Store: memBackend(t, "aaa1", "bbb2", "ccc3"), succeed: 100}
		result, err := Validate(ctx, store, backend, WithBatchSize(2), WithLogger(zap.NewNop()))
		require.NoError(t, err)
		assert.True(t, result.Complete)
		assert.Equal(t, []int{2, 1}, backend.batchSize)
	})

	t.Run("backend failure short-circuits", func(t *testing.T) {
		backend := &failingBackend{Store: memBackend(t, "aaa1", "bbb2", "ccc3"), succeed: 1}
		result, err := Validate(ctx, store, backend, WithBatchSize(1), WithLogger(zap.NewNop()))
		require.NoError(t, err)
		assert.False(t, result.Complete)
		assert.Equal(t, []string{"bbb2", "ccc3"}, result.Missing)
		assert.Contains(t, result.Reason, "connection refused")
		assert.Equal(t, 2, backend.calls)
	})

	t.Run("backend failure with concurrent batches", func(t *testing.T) {
		backend := &failingBackend{Store: memBackend(t, "aaa1", "bbb2", "ccc3"), succeed: 0}
		result, err := Validate(ctx, store, backend, WithBatchSize(1), WithConcurrency(3), WithLogger(zap.NewNop()))
		require.NoError(t, err)
		assert.False(t, result.Complete)
		assert.Equal(t, []string{"aaa1", "bbb2", "ccc3"}, result.Missing)
		assert.NotEmpty(t, result.Reason)
	})
}

func TestValidateEmptyArchive(t *testing.T) {
	store := openArchive(t, buildArchive(t, dir("/"), regular("/empty")))
	result, err := Validate(context.Background(), store, memBackend(t), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Zero(t, result.Checked)
}

func TestValidateIgnoresUnreferencedBlocks(t *testing.T) {
	store := openArchive(t, buildArchive(t, dir("/"), regular("/a", "aaa1")))
	result, err := Validate(context.Background(), store, memBackend(t, "aaa1", "zzz9"), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Equal(t, 1, result.Checked)
}
