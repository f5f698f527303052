package pipeline

import (
	"sync/atomic"

	"github.com/pomelo-net/pomelo-go/application"
	"github.com/pomelo-net/pomelo-go/domain"
	"github.com/pomelo-net/pomelo-go/infrastructure/codec"
)

// Receiver carries one inbound datagram through two stages: process
// (AEAD-open + decode) and complete (validate against peer state, update
// last_recv_time, forward to the socket).
type Receiver struct {
	canceled atomic.Bool
}

// NewReceiver returns a Receiver ready to carry one inbound datagram.
func NewReceiver() *Receiver {
	return &Receiver{}
}

// Cancel marks the receiver canceled, matching Sender's cancellation
// contract: a task already running on the worker pool still finishes, but
// its result is dropped instead of reaching complete.
func (r *Receiver) Cancel() {
	r.canceled.Store(true)
}

// Canceled reports whether Cancel has been called.
func (r *Receiver) Canceled() bool {
	return r.canceled.Load()
}

// Reset clears a Receiver back to its initial state before it is returned
// to its pool.
func (r *Receiver) Reset() {
	r.canceled.Store(false)
}

// Receive decodes data into a domain.Packet and invokes complete with the
// result. Decoding runs on the worker pool when expensive is true (REQUEST,
// CHALLENGE, RESPONSE); every other kind decodes inline. complete always
// runs on the I/O thread and is never invoked if the receiver was canceled
// before its task started.
func Receive(
	pool application.WorkerPool,
	data []byte,
	key *[32]byte,
	protocolID uint64,
	expensive bool,
	receiver *Receiver,
	complete func(pkt domain.Packet, err error),
) {
	process := func() (any, error) {
		pkt, _, err := codec.DecodePacket(data, key, protocolID)
		if err != nil {
			return nil, err
		}
		return pkt, nil
	}

	onComplete := func(result any, err error) {
		if receiver.Canceled() {
			return
		}
		if err != nil {
			complete(domain.Packet{}, err)
			return
		}
		complete(result.(domain.Packet), nil)
	}

	if expensive {
		pool.SubmitWorker(process, onComplete)
		return
	}
	result, err := process()
	onComplete(result, err)
}
