package cafs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/docker/go-units"
)

// DefaultBlockSize is the size of file blocks, unless specified otherwise
const DefaultBlockSize = units.MiB

// Block is a chunk of a file, addressed by its key.
//
// Data is only valid during the callback that receives the block.
type Block struct {
	Key    Key
	Index  int
	Offset int64
	Data   []byte
}

// Split reads r in blocks of blockSize bytes and calls fn with each hashed block, in order.
//
// The last block may be shorter. An empty reader yields no block.
func Split(ctx context.Context, r io.Reader, blockSize int64, fn func(Block) error) (int64, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	buf := make([]byte, blockSize)
	var (
		offset int64
		index  int
	)

	for {
		if err := ctx.Err(); err != nil {
			return offset, err
		}

		n, err := io.ReadFull(r, buf)
		if n > 0 {
			data := buf[:n]
			if e := fn(Block{Key: Sum(data), Index: index, Offset: offset, Data: data}); e != nil {
				return offset, e
			}
			offset += int64(n)
			index++
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return offset, nil
		default:
			return offset, fmt.Errorf("reading block %d: %w", index, err)
		}
	}
}

// Keys returns the keys of all the blocks in r
func Keys(ctx context.Context, r io.Reader, blockSize int64) ([]Key, error) {
	var keys []Key
	_, err := Split(ctx, r, blockSize, func(b Block) error {
		keys = append(keys, b.Key)
		return nil
	})
	return keys, err
}
