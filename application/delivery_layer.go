package application

import "github.com/pomelo-net/pomelo-go/domain"

// DeliveryLayer is the interface the protocol core exposes upward to the
// application. The core wraps every outbound payload as a
// PAYLOAD packet and calls back here for connection lifecycle and inbound
// payload events; nothing on these paths may block the I/O thread.
type DeliveryLayer interface {
	// PeerSend queues payload for delivery to peer, wrapped as PAYLOAD.
	PeerSend(peer PeerHandle, payload []byte) error
	OnConnected(peer PeerHandle)
	OnDisconnected(peer PeerHandle)
	OnReceived(peer PeerHandle, payload []byte)
	// OnConnectResult is client-only: the outcome of the handshake that was
	// just attempted.
	OnConnectResult(result domain.ConnectResult)
}
