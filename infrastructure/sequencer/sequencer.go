// Package sequencer implements application.Sequencer: a single-consumer
// FIFO task queue that serializes callbacks from multiple sources onto one
// goroutine, generalized from a mutex around one method into a
// channel-drained queue of arbitrary closures, since submissions arrive
// from worker-pool goroutines as well as the I/O thread itself.
package sequencer

import "github.com/pomelo-net/pomelo-go/application"

// Sequencer drains tasks submitted via Submit on a single goroutine, in the
// order they were submitted. A task submitted from within a running task is
// enqueued behind it rather than run re-entrantly.
type Sequencer struct {
	tasks chan func()
	done  chan struct{}
}

var _ application.Sequencer = (*Sequencer)(nil)

// New starts a Sequencer with the given queue depth and begins draining it
// immediately on a new goroutine.
func New(queueDepth int) *Sequencer {
	s := &Sequencer{
		tasks: make(chan func(), queueDepth),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sequencer) run() {
	for {
		select {
		case task := <-s.tasks:
			task()
		case <-s.done:
			// Drain whatever is already queued before exiting so a Stop
			// racing with in-flight Submits never silently drops work.
			for {
				select {
				case task := <-s.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues task to run on the sequencer's goroutine.
func (s *Sequencer) Submit(task func()) {
	s.tasks <- task
}

// Stop drains any queued tasks and stops the sequencer's goroutine. It does
// not wait for the drain to finish; callers that need that guarantee
// should submit a final task that closes a channel and wait on it.
func (s *Sequencer) Stop() {
	close(s.done)
}
