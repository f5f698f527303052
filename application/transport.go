package application

import "net/netip"

// TransportCapability reports what a Transport provides on its own, so the
// protocol core knows whether to apply its own AEAD envelope.
type TransportCapability struct {
	// IsServer is true for a transport bound with Listen rather than Connect.
	IsServer bool
	// EncryptsInternally, when true, tells senders/receivers to set the
	// NoEncrypt/NoDecrypt flags — the transport already provides
	// confidentiality and integrity.
	EncryptsInternally bool
}

// TransportHandler receives datagrams and send-completion notifications
// from a Transport. All callbacks run on the transport's I/O thread.
type TransportHandler interface {
	// OnReceive is invoked for every inbound datagram. encrypted mirrors
	// Capability().EncryptsInternally at the time the transport accepted it.
	OnReceive(addr netip.AddrPort, data []byte, encrypted bool)
	// OnSent reports the outcome of a prior Send, identified by the sendID
	// that call returned.
	OnSent(sendID uint64, err error)
}

// Transport is the datagram transport interface the protocol core consumes
//. A client transport is bound with Connect and addresses every
// Send to its connected peer; a server transport is bound with Listen and
// addresses every Send explicitly.
type Transport interface {
	// SetHandler installs the receiver of inbound datagrams and send
	// completions. Must be called before Connect or Listen.
	SetHandler(h TransportHandler)

	Connect(addr netip.AddrPort) error
	Listen(addr netip.AddrPort) error
	Stop() error

	// Send transmits data to addr. A client transport ignores addr and uses
	// its connected peer. It returns a sendID correlating a later OnSent
	// callback; transports that complete synchronously may report it via
	// OnSent before Send returns.
	Send(addr netip.AddrPort, data []byte) (sendID uint64, err error)

	Capability() TransportCapability
}
