package deploy

import (
	"context"
	"fmt"

	"github.com/andrej220/formation/internal/lg"
	"github.com/andrej220/formation/pkg/workerpool"
)

// JobError is the first deployment operation that failed in a cycle.
type JobError struct {
	Op  Operation
	Err error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("deploy %s: %v", e.Op, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// Invoker runs one resolved deployment operation.
type Invoker interface {
	Invoke(ctx context.Context, op Operation) error
}

// JobDispatch submits deployment operations to a bounded pool and joins them
// fail-fast: the first failure observed by Join is returned at once and the
// rest of the cycle is abandoned.
type JobDispatch struct {
	pool    *workerpool.Pool[Operation, struct{}]
	invoker Invoker
	logger  lg.Logger
}

func NewJobDispatch(invoker Invoker, maxWorkers int, logger lg.Logger) *JobDispatch {
	if logger == nil {
		logger = lg.Discard
	}
	return &JobDispatch{
		pool:    workerpool.NewPool[Operation, struct{}](maxWorkers, logger),
		invoker: invoker,
		logger:  logger,
	}
}

// Dispatch schedules op and returns without waiting.
func (d *JobDispatch) Dispatch(ctx context.Context, op Operation) {
	d.pool.Submit(workerpool.Job[Operation, struct{}]{
		ID:      op.ID,
		Payload: op,
		Fn:      d.run,
		Ctx:     ctx,
	})
}

func (d *JobDispatch) run(ctx context.Context, op Operation) (struct{}, error) {
	return struct{}{}, d.invoker.Invoke(ctx, op)
}

// Join waits for every dispatched operation.
func (d *JobDispatch) Join() error {
	return d.pool.Join(func(c workerpool.Completion[Operation, struct{}]) error {
		if c.Err != nil {
			d.logger.Error("deployment operation failed",
				lg.String("op", c.ID), lg.String("cloud", string(c.Payload.Cloud)),
				lg.String("kind", string(c.Payload.Kind)), lg.Err(c.Err))
			return &JobError{Op: c.Payload, Err: c.Err}
		}
		d.logger.Debug("deployment operation complete", lg.String("op", c.ID))
		return nil
	})
}

// Pending is the number of dispatched operations not yet joined.
func (d *JobDispatch) Pending() int {
	return d.pool.Pending()
}
