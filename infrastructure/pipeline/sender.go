// Package pipeline implements the sender and receiver packet pipelines,
// each a small fixed sequence of stages that ends with a completion
// callback run on the I/O thread. Grounded on the
// teacher's own split of encrypt/decrypt-then-transport-write into discrete
// steps (application/network/connection/egress.go, ingress.go), generalized
// here to optionally offload the crypto-heavy stages to a worker pool.
package pipeline

import (
	"net/netip"
	"sync/atomic"

	"github.com/pomelo-net/pomelo-go/application"
	"github.com/pomelo-net/pomelo-go/domain"
	"github.com/pomelo-net/pomelo-go/infrastructure/codec"
)

// Sender carries one outbound packet through three stages: process (encode
// + seal), dispatch (hand the view to the transport) and complete (notify,
// release).
type Sender struct {
	canceled atomic.Bool
}

// NewSender returns a Sender ready to carry one outbound packet.
func NewSender() *Sender {
	return &Sender{}
}

// Cancel marks the sender canceled. If its worker task has not started when
// this is called, Send's completion is never delivered; if the task has
// already started, it still runs to completion but complete's notify step
// is skipped.
func (s *Sender) Cancel() {
	s.canceled.Store(true)
}

// Canceled reports whether Cancel has been called.
func (s *Sender) Canceled() bool {
	return s.canceled.Load()
}

// Reset clears a Sender back to its initial state before it is returned to
// its pool.
func (s *Sender) Reset() {
	s.canceled.Store(false)
}

// Send encodes pkt into buf, hands the result to transport, and invokes
// complete with the number of bytes written (or an error). Encoding runs on
// the worker pool when expensive is true (CHALLENGE packets); every other
// kind encodes inline on the calling goroutine. complete is always invoked
// on the I/O thread: either directly (inline path) or via pool's sequencer
// (worker path) — never if the sender is canceled before its task starts.
func Send(
	pool application.WorkerPool,
	transport application.Transport,
	addr netip.AddrPort,
	pkt domain.Packet,
	key *[32]byte,
	protocolID uint64,
	buf []byte,
	expensive bool,
	sender *Sender,
	complete func(n int, err error),
) {
	process := func() (any, error) {
		n, err := codec.EncodePacket(buf, &pkt, key, protocolID)
		if err != nil {
			return nil, err
		}
		return buf[:n], nil
	}

	dispatchAndComplete := func(result any, err error) {
		if sender.Canceled() {
			return
		}
		if err != nil {
			complete(0, err)
			return
		}
		view := result.([]byte)
		_, sendErr := transport.Send(addr, view)
		if sendErr != nil {
			complete(0, sendErr)
			return
		}
		complete(len(view), nil)
	}

	if expensive {
		pool.SubmitWorker(process, dispatchAndComplete)
		return
	}
	result, err := process()
	dispatchAndComplete(result, err)
}
