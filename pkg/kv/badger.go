package kv

import (
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	badgeroptions "github.com/dgraph-io/badger/v3/options"
	"github.com/oneconcern/flisthub/pkg/errors"
	"go.uber.org/zap"
)

type (
	// kvBadger provides a KV store implementation based on dgraph-io/badger/v3
	kvBadger struct {
		*badger.DB
		readOnly bool
	}

	// badgerLogger routes badger logs to zap
	badgerLogger struct {
		*zap.SugaredLogger
	}
)

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

func (kv *kvBadger) Get(key []byte) ([]byte, error) {
	var value []byte
	err := kv.DB.View(func(txn *badger.Txn) error {
		item, e := txn.Get(key)
		if e != nil {
			return e
		}
		value, e = item.ValueCopy(nil)

		return e
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound.Wrap(fmt.Errorf("%q", key))
	}

	return value, err
}

func (kv *kvBadger) Exists(key []byte) (bool, error) {
	err := kv.DB.View(func(txn *badger.Txn) error {
		_, e := txn.Get(key)

		return e
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}

		// some technical error occurred: interrupt
		return false, err
	}

	return true, nil
}

func (kv *kvBadger) Set(key, value []byte) error {
	if kv.readOnly {
		return ErrReadOnly
	}

	return backoff.Retry(func() error {
		err := kv.DB.Update(func(txn *badger.Txn) error {
			e := txn.Set(key, value)
			if e != nil {
				if errors.Is(e, badger.ErrConflict) {
					return e // retry
				}

				return backoff.Permanent(e)
			}

			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}

		return nil
	},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(10*time.Millisecond), 100),
	)
}

func (kv *kvBadger) SetMany(pairs []Pair) error {
	if kv.readOnly {
		return ErrReadOnly
	}

	wb := kv.DB.NewWriteBatch()
	defer wb.Cancel()

	for _, pair := range pairs {
		if err := wb.Set(pair.Key, pair.Value); err != nil {
			return err
		}
	}

	return wb.Flush()
}

func (kv *kvBadger) DeletePrefix(prefix []byte) error {
	if kv.readOnly {
		return ErrReadOnly
	}

	var keys [][]byte
	err := kv.DB.View(func(txn *badger.Txn) error {
		iterator := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: false,
			Prefix:         prefix,
		})
		defer iterator.Close()

		for iterator.Seek(prefix); iterator.ValidForPrefix(prefix); iterator.Next() {
			keys = append(keys, iterator.Item().KeyCopy(nil))
		}

		return nil
	})
	if err != nil || len(keys) == 0 {
		return err
	}

	wb := kv.DB.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err = wb.Delete(key); err != nil {
			return err
		}
	}

	return wb.Flush()
}

func (kv *kvBadger) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	return kv.DB.View(func(txn *badger.Txn) error {
		iterator := txn.NewIterator(badger.IteratorOptions{
			PrefetchSize:   256,
			PrefetchValues: true,
			Prefix:         prefix,
		})
		defer iterator.Close()

		for iterator.Seek(prefix); iterator.ValidForPrefix(prefix); iterator.Next() {
			item := iterator.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			if err = fn(key, val); err != nil {
				return err
			}
		}

		return nil
	})
}

func (kv *kvBadger) Count(prefix []byte) (int, error) {
	var count int
	err := kv.DB.View(func(txn *badger.Txn) error {
		iterator := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: false,
			Prefix:         prefix,
		})
		defer iterator.Close()

		for iterator.Seek(prefix); iterator.ValidForPrefix(prefix); iterator.Next() {
			count++
		}

		return nil
	})

	return count, err
}

// Compact flattens the LSM tree and garbage collects the value log.
func (kv *kvBadger) Compact() error {
	if kv.readOnly {
		return ErrReadOnly
	}

	if err := kv.DB.Sync(); err != nil {
		return fmt.Errorf("sync KV: %w", err)
	}

	if err := kv.DB.Flatten(1); err != nil {
		return fmt.Errorf("flatten KV: %w", err)
	}

	for {
		// stops whenever there is nothing left to rewrite
		if err := kv.DB.RunValueLogGC(0.5); err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				return nil
			}

			return fmt.Errorf("value log GC: %w", err)
		}
	}
}

func makeKVBadger(pth string, options *options) (*kvBadger, error) {
	if options.readOnly {
		info, err := os.Stat(pth)
		if err != nil {
			return nil, ErrOpen.Wrap(err)
		}
		if !info.IsDir() {
			return nil, ErrOpen.Wrap(fmt.Errorf("%s is not a directory", pth))
		}
	} else if err := os.MkdirAll(pth, 0700); err != nil {
		return nil, ErrOpen.Wrap(fmt.Errorf("mkdir: %w", err))
	}

	db, err := badger.Open(
		badger.DefaultOptions(pth).
			WithReadOnly(options.readOnly).
			WithLogger(badgerLogger{SugaredLogger: options.l.Sugar()}).
			WithLoggingLevel(badger.WARNING).
			WithCompression(badgeroptions.ZSTD). // entries are JSON documents with repetitive field names
			WithNumVersionsToKeep(1).
			WithMemTableSize(16 << 20). // archives are small, typically a few thousand entries
			WithValueLogFileSize(64 << 20),
	)
	if err != nil {
		return nil, ErrOpen.Wrap(err)
	}

	return &kvBadger{DB: db, readOnly: options.readOnly}, nil
}
