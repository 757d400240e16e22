package hub

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oneconcern/flisthub/pkg/errors"
	"github.com/oneconcern/flisthub/pkg/hub/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestScheduler(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewScheduler(3, WithSchedulerLogger(zap.NewNop()))
	ctx := context.Background()

	var running, peak int32
	results := make([]<-chan JobResult, 0, 10)
	for i := 0; i < 10; i++ {
		i := i
		ch, err := s.Submit(ctx, func(context.Context) (interface{}, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			if i == 3 {
				return nil, fmt.Errorf("job %d failed", i)
			}
			return i, nil
		})
		require.NoError(t, err)
		results = append(results, ch)
	}

	for i, ch := range results {
		value, err := Wait(ctx, ch, time.Second)
		if i == 3 {
			assert.EqualError(t, err, "job 3 failed")
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, i, value)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))

	s.Close()
	s.Close()
	_, err := s.Submit(ctx, func(context.Context) (interface{}, error) { return nil, nil })
	assert.True(t, errors.Is(err, ErrSchedulerClosed))
}

func TestSchedulerTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewScheduler(1, WithSchedulerLogger(zap.NewNop()))
	ctx := context.Background()
	done := make(chan struct{})

	ch, err := s.Submit(ctx, func(jobCtx context.Context) (interface{}, error) {
		<-done
		return "late", jobCtx.Err()
	})
	require.NoError(t, err)

	_, err = Wait(ctx, ch, 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrTimeout))
	assert.Equal(t, 504, errors.Code(err))

	// the job keeps running and its result remains available
	close(done)
	value, err := Wait(ctx, ch, 0)
	require.NoError(t, err)
	assert.Equal(t, "late", value)

	_, err = Wait(ctx, ch, 0)
	assert.True(t, errors.Is(err, status.ErrResource))

	s.Close()
}

func TestSchedulerPanic(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewScheduler(1, WithSchedulerLogger(zap.NewNop()))
	defer s.Close()

	ch, err := s.Submit(context.Background(), func(context.Context) (interface{}, error) {
		panic("boom")
	})
	require.NoError(t, err)

	_, err = Wait(context.Background(), ch, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrResource))
	assert.Contains(t, err.Error(), "boom")
}

func TestSchedulerCloseDrains(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewScheduler(1, WithSchedulerLogger(zap.NewNop()))
	var done int32
	results := make([]<-chan JobResult, 0, 3)
	for i := 0; i < 3; i++ {
		ch, err := s.Submit(context.Background(), func(context.Context) (interface{}, error) {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&done, 1)
			return nil, nil
		})
		require.NoError(t, err)
		results = append(results, ch)
	}

	s.Close()
	assert.Equal(t, int32(3), atomic.LoadInt32(&done))
	for _, ch := range results {
		_, err := Wait(context.Background(), ch, 0)
		assert.NoError(t, err)
	}
}
