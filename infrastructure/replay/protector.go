// Package replay implements the per-peer, per-direction sliding-window
// replay protector: a fixed ring of the most recently accepted sequence
// numbers. It is mutated only from the I/O thread — workers never touch
// it — so it carries no internal locking, the same single-writer
// ownership convention as the rest of the per-peer state.
package replay

import "github.com/pomelo-net/pomelo-go/domain"

const windowSize = domain.ReplayWindowSize

// neverReceived is the ring's initial slot value: the maximum representable
// sequence, meaning "no sequence has ever landed in this slot".
const neverReceived = ^uint64(0)

// Protector rejects duplicated or out-of-window sequence numbers. The zero
// value is ready to use.
type Protector struct {
	mostRecent uint64
	received   [windowSize]uint64
}

// New returns a Protector reset to its initial state.
func New() *Protector {
	p := &Protector{}
	p.Reset()
	return p
}

// Reset clears the window back to its initial state, as done when a peer
// slot is reused.
func (p *Protector) Reset() {
	p.mostRecent = 0
	for i := range p.received {
		p.received[i] = neverReceived
	}
}

// Accept reports whether sequence passes replay protection, recording it if
// so. A sequence is accepted iff it is strictly greater than
// most_recent-windowSize and the slot it maps to hasn't already seen an
// equal-or-greater sequence.
func (p *Protector) Accept(sequence uint64) bool {
	if sequence < p.mostRecent {
		if p.mostRecent-sequence > windowSize {
			return false
		}
	}

	index := sequence % windowSize
	received := p.received[index]
	if received != neverReceived && received >= sequence {
		return false
	}

	p.received[index] = sequence
	if sequence > p.mostRecent {
		p.mostRecent = sequence
	}
	return true
}
