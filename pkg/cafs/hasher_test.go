package cafs

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/oneconcern/flisthub/internal/rand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	const blockSize = 1024

	for _, toPin := range []struct {
		Name   string
		Size   int
		Blocks int
	}{
		{Name: "empty", Size: 0, Blocks: 0},
		{Name: "one byte", Size: 1, Blocks: 1},
		{Name: "exact block", Size: blockSize, Blocks: 1},
		{Name: "block and a bit", Size: blockSize + 1, Blocks: 2},
		{Name: "several blocks", Size: 5*blockSize - 7, Blocks: 5},
	} {
		tc := toPin
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			data := rand.Bytes(tc.Size)

			var (
				rebuilt bytes.Buffer
				blocks  []Block
			)
			size, err := Split(context.Background(), bytes.NewReader(data), blockSize, func(b Block) error {
				assert.Equal(t, Sum(b.Data), b.Key)
				assert.Equal(t, int64(rebuilt.Len()), b.Offset)
				rebuilt.Write(b.Data)
				blocks = append(blocks, Block{Key: b.Key, Index: b.Index})
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, int64(tc.Size), size)
			assert.Len(t, blocks, tc.Blocks)
			assert.True(t, bytes.Equal(data, rebuilt.Bytes()))

			for i, b := range blocks {
				assert.Equal(t, i, b.Index)
			}

			keys, err := Keys(context.Background(), bytes.NewReader(data), blockSize)
			require.NoError(t, err)
			assert.Len(t, keys, tc.Blocks)
		})
	}
}

func TestSplitStops(t *testing.T) {
	stop := errors.New("stop")
	_, err := Split(context.Background(), bytes.NewReader(rand.Bytes(4096)), 1024, func(b Block) error {
		if b.Index == 1 {
			return stop
		}
		return nil
	})
	assert.Equal(t, stop, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Split(ctx, bytes.NewReader(rand.Bytes(10)), 1024, func(Block) error { return nil })
	assert.True(t, errors.Is(err, context.Canceled))
}
