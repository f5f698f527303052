package application

import "net/netip"

// PeerHandle is the minimal view of a connected peer the delivery layer and
// transport need — just enough identity to address a peer without either
// port depending on the peer's full internal representation.
type PeerHandle interface {
	Address() netip.AddrPort
	ClientID() uint64
}
