package pipeline

import "github.com/pomelo-net/pomelo-go/domain"

// ExpensiveSend reports whether encoding a packet of kind does real AEAD
// work beyond the cheap per-packet seal every kind already pays for — only
// CHALLENGE also seals a challenge token, so it is the one kind whose
// sender stage is worth offloading to the worker pool.
func ExpensiveSend(kind domain.PacketKind) bool {
	return kind == domain.PacketChallenge
}

// ExpensiveReceive reports whether decoding a packet of kind involves token
// crypto beyond the cheap per-packet AEAD open every kind already pays for.
// REQUEST, CHALLENGE and RESPONSE all touch connect-token or
// challenge-token crypto; every other kind is cheap enough to decode inline
// on the I/O thread.
func ExpensiveReceive(kind domain.PacketKind) bool {
	switch kind {
	case domain.PacketRequest, domain.PacketChallenge, domain.PacketResponse:
		return true
	default:
		return false
	}
}
