package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oneconcern/flisthub/pkg/dlogger"
	"github.com/oneconcern/flisthub/pkg/hub/status"
	"go.uber.org/zap"
)

type (
	// Job is some work run by the scheduler
	Job func(context.Context) (interface{}, error)

	// JobResult is the outcome of a job
	JobResult struct {
		Value interface{}
		Err   error
	}

	// SchedulerOption configures a scheduler
	SchedulerOption func(*Scheduler)

	// Scheduler runs jobs on a fixed pool of workers.
	//
	// Jobs run to completion even when the submitter stops waiting for them.
	Scheduler struct {
		queue     chan task
		ctx       context.Context
		cancel    context.CancelFunc
		wg        sync.WaitGroup
		mx        sync.RWMutex
		closed    bool
		closeOnce sync.Once
		l         *zap.Logger
	}

	task struct {
		job    Job
		result chan JobResult
	}
)

// ErrSchedulerClosed is returned when submitting to a closed scheduler
var ErrSchedulerClosed = status.ErrResource.Wrap(fmt.Errorf("scheduler is closed"))

// WithSchedulerLogger sets the logger of a scheduler
func WithSchedulerLogger(l *zap.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.l = l
		}
	}
}

// NewScheduler starts a scheduler with some workers
func NewScheduler(workers int, opts ...SchedulerOption) *Scheduler {
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		queue:  make(chan task, workers),
		ctx:    ctx,
		cancel: cancel,
		l:      dlogger.MustGetLogger("info"),
	}
	for _, apply := range opts {
		apply(s)
	}

	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.work(i)
	}
	return s
}

func (s *Scheduler) work(id int) {
	defer s.wg.Done()
	for t := range s.queue {
		t0 := time.Now()
		value, err := s.run(t.job)
		s.l.Debug("job done", zap.Int("worker", id), zap.Duration("elapsed", time.Since(t0)), zap.Error(err))
		t.result <- JobResult{Value: value, Err: err}
		close(t.result)
	}
}

func (s *Scheduler) run(job Job) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.l.Error("job panicked", zap.Any("panic", r))
			err = status.ErrResource.Wrap(fmt.Errorf("job panicked: %v", r))
		}
	}()
	return job(s.ctx)
}

// Submit a job. The returned channel delivers the result, then is closed.
//
// The context only bounds the wait for a free slot in the queue: the job
// itself runs under the scheduler's context.
func (s *Scheduler) Submit(ctx context.Context, job Job) (<-chan JobResult, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	if s.closed {
		return nil, ErrSchedulerClosed
	}

	t := task{job: job, result: make(chan JobResult, 1)}
	select {
	case s.queue <- t:
		return t.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait for a job result, for at most timeout. A zero timeout waits until the job is done.
func Wait(ctx context.Context, results <-chan JobResult, timeout time.Duration) (interface{}, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case r, ok := <-results:
		if !ok {
			return nil, status.ErrResource.Wrap(fmt.Errorf("job result already consumed"))
		}
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, status.ErrTimeout.Wrap(ctx.Err())
	}
}

// Close stops accepting jobs and waits for queued and running jobs to complete
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.mx.Lock()
		s.closed = true
		close(s.queue)
		s.mx.Unlock()

		s.wg.Wait()
		s.cancel()
	})
}
