// Package workers runs CPU-bound jobs with bounded parallelism.
package workers

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/semaphore"

	"paperlock/internal/paperlock"
)

// Pool bounds how many jobs run at once. Waiting for a slot honours context
// cancellation; a job that has started finishes before Do returns.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a pool with size slots. A non-positive size selects
// runtime.NumCPU().
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return p.size
}

// Do runs fn on the caller's goroutine once a slot is free. If ctx ends
// before a slot is free, fn never runs and Do returns ctx.Err(). Once fn has
// started it always runs to completion; cancellation after that point is for
// the caller to observe.
func (p *Pool) Do(ctx context.Context, fn func()) (err error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker job panicked: %v", r)
		}
	}()
	fn()
	return nil
}

var _ paperlock.Executor = (*Pool)(nil)
