package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/wb-go/wbf/zlog"
)

const defaultSize = 4

// Handler runs one task to completion.
type Handler interface {
	Execute(ctx context.Context, taskUUID string) error
}

// Pool is a bounded-concurrency executor for task handlers. Submit is
// non-blocking; at most size handlers run at once and each submission
// is isolated, so a failing or panicking handler never affects another
// submission or the caller.
type Pool struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	handler Handler
}

// New creates a Pool running at most size handlers concurrently.
// Non-positive sizes fall back to a small default.
func New(size int, h Handler) *Pool {
	if size <= 0 {
		size = defaultSize
	}

	return &Pool{
		sem:     make(chan struct{}, size),
		handler: h,
	}
}

// Submit schedules taskUUID for execution and returns immediately. The
// goroutine waits for a free slot; if ctx is canceled first the
// submission is dropped. The command's offset was committed before the
// slot opened, so a dropped task is not redelivered and stays
// INPROGRESS until a client patches it again.
func (p *Pool) Submit(ctx context.Context, taskUUID string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
			p.run(ctx, taskUUID)
		case <-ctx.Done():
			zlog.Logger.Warn().
				Str("task_uuid", taskUUID).
				Msg("pool shutting down, dropping submission; task stays in progress until relaunched")
		}
	}()
}

// run executes one handler invocation, containing both errors and
// panics within the submission.
func (p *Pool) run(ctx context.Context, taskUUID string) {
	defer func() {
		if rec := recover(); rec != nil {
			zlog.Logger.Error().
				Str("task_uuid", taskUUID).
				Msg(fmt.Sprintf("task handler panicked: %v", rec))
		}
	}()

	if err := p.handler.Execute(ctx, taskUUID); err != nil {
		zlog.Logger.Err(err).
			Str("task_uuid", taskUUID).
			Msg("task execution failed")
	}
}

// Wait blocks until all submitted work has finished. Used during
// worker shutdown to drain in-flight conversions.
func (p *Pool) Wait() {
	p.wg.Wait()
}
