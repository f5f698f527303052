// Package codec implements the bit-exact wire encode/decode for every
// pomelo packet kind. Its header encode/decode is adapted from the
// teacher's domain/network/serviceframe package (Frame.MarshalBinary /
// Frame.UnmarshalBinary, with a per-call Validate step and sentinel
// errors) — generalized from a fixed 7-byte magic+version+kind+flags+len
// header to pomelo's single-prefix-byte header with a variable-length
// trailing sequence number.
package codec

import (
	"github.com/pomelo-net/pomelo-go/domain"
)

// EncodeHeader writes a packet header into dst and returns the number of
// bytes written. For domain.PacketRequest, this is exactly one zero byte;
// for every other kind, it is 1 + SequenceBytes.
func EncodeHeader(dst []byte, h domain.Header) (int, error) {
	if h.Kind == domain.PacketRequest {
		if len(dst) < 1 {
			return 0, domain.ErrBufferTooSmall
		}
		dst[0] = 0
		return 1, nil
	}
	n := PackedUint64Bytes(h.Sequence)
	total := 1 + int(n)
	if len(dst) < total {
		return 0, domain.ErrBufferTooSmall
	}
	dst[0] = byte(h.Kind)<<4 | byte(n)&0x0F
	WritePacked(dst[1:], h.Sequence, n)
	return total, nil
}

// DecodeHeader reads a packet header from src. A zero prefix byte always
// decodes to a REQUEST header with sequence 0. Any other prefix must carry
// a kind in 1..6 and a sequence-byte count in 1..8; all violations are
// domain.ErrMalformed.
func DecodeHeader(src []byte) (domain.Header, int, error) {
	if len(src) < 1 {
		return domain.Header{}, 0, domain.ErrMalformed
	}
	prefix := src[0]
	if prefix == 0 {
		return domain.Header{Kind: domain.PacketRequest}, 1, nil
	}

	kind := domain.PacketKind(prefix >> 4)
	seqBytes := uint8(prefix & 0x0F)
	if !kind.IsValid() {
		return domain.Header{}, 0, domain.ErrMalformed
	}
	if seqBytes < domain.SequenceBytesMin || seqBytes > domain.SequenceBytesMax {
		return domain.Header{}, 0, domain.ErrMalformed
	}
	total := 1 + int(seqBytes)
	if len(src) < total {
		return domain.Header{}, 0, domain.ErrMalformed
	}
	seq := ReadPacked(src[1:], seqBytes)
	return domain.Header{Kind: kind, Sequence: seq, SequenceBytes: seqBytes}, total, nil
}
