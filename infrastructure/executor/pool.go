// Package executor implements application.WorkerPool: a bounded pool of
// goroutines that run CPU-heavy packet work (REQUEST/CHALLENGE/RESPONSE
// token crypto) off the I/O thread, handing completions back to a
// application.Sequencer so they never race socket or peer state. Built on
// golang.org/x/sync/errgroup for bounded, cancelable fan-out.
package executor

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pomelo-net/pomelo-go/application"
	"github.com/pomelo-net/pomelo-go/domain"
)

// Pool is a fixed-size goroutine pool. Submissions beyond the configured
// concurrency queue on an internal channel.
type Pool struct {
	sequencer application.Sequencer
	jobs      chan job
	ctx       context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
	stopOnce  sync.Once
}

type job struct {
	entry func() (any, error)
	done  func(result any, err error)
}

var _ application.WorkerPool = (*Pool)(nil)

// New starts a Pool with concurrency worker goroutines, each pulling jobs
// off a shared queue of depth queueDepth. Every completion is handed to
// sequencer so it runs back on the I/O thread.
func New(sequencer application.Sequencer, concurrency, queueDepth int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	p := &Pool{
		sequencer: sequencer,
		jobs:      make(chan job, queueDepth),
		ctx:       ctx,
		cancel:    cancel,
	}
	p.group = group
	for i := 0; i < concurrency; i++ {
		group.Go(func() error {
			p.worker(gctx)
			return nil
		})
	}
	return p
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			result, err := j.entry()
			p.sequencer.Submit(func() { j.done(result, err) })
		}
	}
}

// SubmitWorker queues entry to run on a pool goroutine; done is invoked, via
// the pool's sequencer, once entry returns. It never blocks the caller: a
// full queue or a stopping pool fails done with ErrOutOfMemory/ErrCanceled
// immediately instead, preserving the "I/O thread never blocks" property.
func (p *Pool) SubmitWorker(entry func() (any, error), done func(result any, err error)) {
	select {
	case <-p.ctx.Done():
		p.sequencer.Submit(func() { done(nil, domain.ErrCanceled) })
		return
	default:
	}
	select {
	case p.jobs <- job{entry: entry, done: done}:
	case <-p.ctx.Done():
		p.sequencer.Submit(func() { done(nil, domain.ErrCanceled) })
	default:
		p.sequencer.Submit(func() { done(nil, domain.ErrOutOfMemory) })
	}
}

// Stop cancels outstanding work and waits for in-flight entries to return
// before returning itself.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		_ = p.group.Wait()
	})
}
