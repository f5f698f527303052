// Package emitter implements a periodic retransmitter: a timer with an
// optional hard timeout and an optional send-count limit, whose every fire
// is serialized onto the owning socket's sequencer rather than called
// directly off the timer goroutine.
//
// Built as a reusable type instead of an inline goroutine per call site,
// since the protocol core needs seven independently-configured instances
// (REQUEST, RESPONSE, KEEP_ALIVE, DISCONNECT on the client; KEEP_ALIVE
// broadcast, anonymous-peer scan and DISCONNECT broadcast on the server).
package emitter

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pomelo-net/pomelo-go/application"
)

// Emitter fires onFire at a fixed frequency via Start, until Stop is
// called, the optional send-count Limit is reached (onLimit fires once,
// then the emitter stops itself), or the optional Timeout elapses since
// Start (onTimeout fires once, then the emitter stops itself).
type Emitter struct {
	sequencer application.Sequencer
	interval  time.Duration
	limit     int           // 0 = unlimited
	timeout   time.Duration // 0 = no hard timeout

	stopOnce sync.Once
	stopCh   chan struct{}
	stopped  atomic.Bool
	fired    atomic.Int64
}

// New returns an Emitter that fires every interval once Start is called.
func New(sequencer application.Sequencer, interval time.Duration) *Emitter {
	return &Emitter{sequencer: sequencer, interval: interval}
}

// WithLimit stops the emitter after it has fired n times. Must be called
// before Start.
func (e *Emitter) WithLimit(n int) *Emitter {
	e.limit = n
	return e
}

// WithTimeout stops the emitter once d has elapsed since Start, firing a
// user-supplied timeout callback once the wall clock exceeds it. Must be
// called before Start.
func (e *Emitter) WithTimeout(d time.Duration) *Emitter {
	e.timeout = d
	return e
}

// Start begins firing onFire every interval on a new goroutine, serialized
// through the sequencer. onLimit and onTimeout may be nil; whichever fires
// also stops the emitter, so Stop need not be called afterward. Start must
// be called at most once per Emitter.
func (e *Emitter) Start(onFire func(), onLimit func(), onTimeout func()) {
	e.stopCh = make(chan struct{})
	deadline := time.Time{}
	if e.timeout > 0 {
		deadline = time.Now().Add(e.timeout)
	}
	go e.run(onFire, onLimit, onTimeout, deadline)
}

func (e *Emitter) run(onFire, onLimit, onTimeout func(), deadline time.Time) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			if e.stopped.Load() {
				return
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				e.Stop()
				e.sequencer.Submit(func() {
					if onTimeout != nil {
						onTimeout()
					}
				})
				return
			}
			n := e.fired.Add(1)
			e.sequencer.Submit(func() {
				if onFire != nil {
					onFire()
				}
			})
			if e.limit > 0 && n >= int64(e.limit) {
				e.Stop()
				e.sequencer.Submit(func() {
					if onLimit != nil {
						onLimit()
					}
				})
				return
			}
		}
	}
}

// Stop halts further fires. Safe to call more than once and safe to call
// before Start's goroutine has observed it.
func (e *Emitter) Stop() {
	e.stopOnce.Do(func() {
		e.stopped.Store(true)
		if e.stopCh != nil {
			close(e.stopCh)
		}
	})
}

// Fired reports how many times onFire has been invoked so far.
func (e *Emitter) Fired() int64 {
	return e.fired.Load()
}
