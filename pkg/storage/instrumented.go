// Copyright © 2018 One Concern

package storage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Instrument decorates a store with debug logging of all calls and warnings on failures
func Instrument(logger *zap.Logger, store Store) Store {
	return &instrumentedStore{
		store: store,
		logs:  logger.With(zap.Stringer("backend", store)),
	}
}

type instrumentedStore struct {
	store Store
	logs  *zap.Logger
}

func (i *instrumentedStore) done(op string, t0 time.Time, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Duration("elapsed", time.Since(t0)))
	if err != nil {
		i.logs.Warn("backend call failed", append(fields, zap.Error(err))...)
		return
	}
	i.logs.Debug("backend call", fields...)
}

func (i *instrumentedStore) Has(ctx context.Context, key string) (has bool, err error) {
	defer func(t0 time.Time) {
		i.done("exists", t0, err, zap.String("key", key), zap.Bool("found", has))
	}(time.Now())

	return i.store.Has(ctx, key)
}

func (i *instrumentedStore) HasMany(ctx context.Context, keys []string) (found []bool, err error) {
	defer func(t0 time.Time) {
		i.done("exists-batch", t0, err, zap.Int("keys", len(keys)))
	}(time.Now())

	return i.store.HasMany(ctx, keys)
}

func (i *instrumentedStore) Put(ctx context.Context, key string, data []byte) (err error) {
	defer func(t0 time.Time) {
		i.done("set", t0, err, zap.String("key", key), zap.Int("size", len(data)))
	}(time.Now())

	return i.store.Put(ctx, key, data)
}

func (i *instrumentedStore) Close() error {
	return i.store.Close()
}

func (i *instrumentedStore) String() string {
	return i.store.String()
}
