// Package workerpool implements the fan-out / fan-in core shared by deployment
// and provisioning: non-blocking submission into a bounded pool, and a Join
// that drains completions in arrival order.
//
// A Pool is owned by one orchestrating goroutine. Submit and Join must not be
// called concurrently with each other.
package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/andrej220/formation/internal/lg"
)

const TotalMaxWorkers = 10

type JobFunc[T, R any] func(context.Context, T) (R, error)

type Job[T, R any] struct {
	ID      string
	Payload T
	Fn      JobFunc[T, R]
	Ctx     context.Context
}

// Completion is the outcome of one job, delivered exactly once to Join.
type Completion[T, R any] struct {
	ID      string
	Payload T
	Result  R
	Err     error
}

// PanicError is a job that panicked instead of returning.
type PanicError struct {
	JobID string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job %s panicked: %v", e.JobID, e.Value)
}

// cycle is one exec/join round. Abandoned cycles keep their own channel so
// late completions never leak into the next round.
type cycle[T, R any] struct {
	results chan Completion[T, R]
	pending int
}

type Pool[T, R any] struct {
	sem           *semaphore.Weighted
	maxWorkers    int
	activeWorkers int32
	current       *cycle[T, R]
	logger        lg.Logger
}

func NewPool[T, R any](maxWorkers int, logger lg.Logger) *Pool[T, R] {
	if maxWorkers <= 0 {
		maxWorkers = TotalMaxWorkers
	}
	if logger == nil {
		logger = lg.Discard
	}
	p := &Pool[T, R]{
		sem:        semaphore.NewWeighted(int64(maxWorkers)),
		maxWorkers: maxWorkers,
		logger:     logger,
	}
	p.current = p.newCycle()
	return p
}

func (p *Pool[T, R]) newCycle() *cycle[T, R] {
	return &cycle[T, R]{results: make(chan Completion[T, R], p.maxWorkers)}
}

// Submit schedules job and returns immediately.
func (p *Pool[T, R]) Submit(job Job[T, R]) {
	if job.Ctx == nil {
		job.Ctx = context.Background()
	}
	c := p.current
	c.pending++
	p.logger.Debug("job submitted", lg.String("job", job.ID), lg.Int("pending", c.pending))
	go p.worker(job, c.results)
}

func (p *Pool[T, R]) worker(job Job[T, R], results chan<- Completion[T, R]) {
	done := Completion[T, R]{ID: job.ID, Payload: job.Payload}
	defer func() { results <- done }()

	// the bound only limits concurrency; a job is never cancelled once submitted
	if err := p.sem.Acquire(context.Background(), 1); err != nil {
		done.Err = err
		return
	}
	defer p.sem.Release(1)

	atomic.AddInt32(&p.activeWorkers, 1)
	defer atomic.AddInt32(&p.activeWorkers, -1)

	logger := p.logger.With(lg.String("job", job.ID))
	logger.Debug("worker started", lg.Int32("workers", atomic.LoadInt32(&p.activeWorkers)))

	defer func() {
		if r := recover(); r != nil {
			done.Err = &PanicError{JobID: job.ID, Value: r, Stack: debug.Stack()}
			logger.Error("worker panicked", lg.Any("panic", r))
		}
	}()
	done.Result, done.Err = job.Fn(job.Ctx, job.Payload)
	logger.Debug("worker finished", lg.Bool("failed", done.Err != nil))
}

// Join blocks until every job of the current cycle has completed, handing
// each completion to collect in arrival order. If collect returns an error,
// Join stops, the remaining completions of the cycle are discarded as they
// arrive, and the error is returned. Either way the pool is ready for the
// next cycle when Join returns.
func (p *Pool[T, R]) Join(collect func(Completion[T, R]) error) error {
	c := p.current
	defer func() { p.current = p.newCycle() }()

	for c.pending > 0 {
		done := <-c.results
		c.pending--
		if err := collect(done); err != nil {
			p.abandon(c)
			return err
		}
	}
	return nil
}

func (p *Pool[T, R]) abandon(c *cycle[T, R]) {
	if c.pending == 0 {
		return
	}
	p.logger.Warn("abandoning in-flight jobs", lg.Int("pending", c.pending))
	go func(results <-chan Completion[T, R], n int) {
		for i := 0; i < n; i++ {
			<-results
		}
	}(c.results, c.pending)
	c.pending = 0
}

// Pending is the number of submitted jobs not yet joined.
func (p *Pool[T, R]) Pending() int {
	return p.current.pending
}

func (p *Pool[T, R]) ActiveWorkers() int32 {
	return atomic.LoadInt32(&p.activeWorkers)
}
