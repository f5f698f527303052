// Package peer implements per-connection state: keys, sequence counter,
// replay window, address, timeout, pending disconnect count — reshaped
// from a C-style pomelo_protocol_peer_s layout (notably its
// replay-protector reset and at-most-one-response-in-flight flag) into a
// Go struct, using sync/atomic for the fields touched concurrently by the
// I/O thread and the worker pool. A Peer does not track its in-flight
// senders or receivers.
package peer

import (
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/pomelo-net/pomelo-go/application"
	"github.com/pomelo-net/pomelo-go/domain"
	"github.com/pomelo-net/pomelo-go/infrastructure/replay"
)

// Peer is server- or client-side connection state for one remote endpoint.
// All state-machine mutation happens on the I/O thread via the owning
// socket's sequencer; the atomic fields exist only because a worker-pool
// task started before release may still touch them afterward.
type Peer struct {
	addr     netip.AddrPort
	clientID uint64

	Crypto *CryptoContext
	Replay *replay.Protector

	State domain.PeerState

	CreatedAt    time.Time
	LastRecvTime time.Time
	Timeout      time.Duration

	// ChallengeSequence is the token_sequence the server emitted with the
	// CHALLENGE this peer is waiting on a RESPONSE for (server-side), or
	// the value echoed back from the CHALLENGE the client received
	// (client-side).
	ChallengeSequence uint64

	// DisconnectingRemaining counts down the redundant DISCONNECT sends a
	// peer in Disconnecting state still owes.
	DisconnectingRemaining int

	outboundSequence   atomic.Uint64
	processingResponse atomic.Bool
}

var _ application.PeerHandle = (*Peer)(nil)

// New returns a ready-to-use Peer with its replay window initialized.
func New() *Peer {
	return &Peer{Replay: replay.New()}
}

// Address implements application.PeerHandle.
func (p *Peer) Address() netip.AddrPort { return p.addr }

// SetAddress sets the peer's remote address.
func (p *Peer) SetAddress(addr netip.AddrPort) { p.addr = addr }

// ClientID implements application.PeerHandle.
func (p *Peer) ClientID() uint64 { return p.clientID }

// SetClientID sets the peer's server-assigned client id.
func (p *Peer) SetClientID(id uint64) { p.clientID = id }

// NextOutboundSequence returns the next strictly increasing per-peer
// sequence number to stamp on an outbound packet.
func (p *Peer) NextOutboundSequence() uint64 {
	return p.outboundSequence.Add(1) - 1
}

// TryBeginProcessingResponse reports whether this call is the one that
// transitioned processingResponse from false to true — enforcing
// at-most-one RESPONSE decode in flight per peer.
func (p *Peer) TryBeginProcessingResponse() bool {
	return p.processingResponse.CompareAndSwap(false, true)
}

// EndProcessingResponse clears the in-flight RESPONSE flag.
func (p *Peer) EndProcessingResponse() {
	p.processingResponse.Store(false)
}

// Reset clears a peer back to its pre-acquisition state before it is
// returned to the pool.
func (p *Peer) Reset() {
	p.addr = netip.AddrPort{}
	p.clientID = 0
	p.Crypto = nil
	p.Replay.Reset()
	p.State = domain.PeerAnonymous
	p.CreatedAt = time.Time{}
	p.LastRecvTime = time.Time{}
	p.Timeout = 0
	p.ChallengeSequence = 0
	p.DisconnectingRemaining = 0
	p.outboundSequence.Store(0)
	p.processingResponse.Store(false)
}
