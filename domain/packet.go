package domain

import "net/netip"

// Header is the decoded form of a packet's prefix + sequence bytes.
type Header struct {
	Kind           PacketKind
	Sequence       uint64
	SequenceBytes  uint8 // 0 for REQUEST, 1..8 otherwise
}

// Packet is a tagged union over the seven wire kinds (design note §9: "one
// pool per packet kind" in the source becomes one sum type here). Only the
// fields relevant to Header.Kind are populated; the rest are left zero.
type Packet struct {
	Header Header

	// REQUEST
	ProtocolID      uint64
	CreateTimestamp int64
	ExpireTimestamp int64
	TokenNonce      [ConnectTokenNonceBytes]byte
	TokenPrivate    [ConnectTokenPrivateBytes]byte

	// CHALLENGE / RESPONSE
	TokenSequence    uint64
	ChallengeToken   [ChallengeTokenBytes]byte

	// KEEP_ALIVE
	ClientID uint64

	// PAYLOAD
	Payload []byte

	// From address the packet was received from / is destined to. Not part
	// of the wire format; carried alongside for routing.
	Addr netip.AddrPort
}
