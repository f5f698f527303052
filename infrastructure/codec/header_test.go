package codec

import (
	"testing"

	"github.com/pomelo-net/pomelo-go/domain"
)

func TestHeaderRoundTripRequest(t *testing.T) {
	h := domain.Header{Kind: domain.PacketRequest}
	buf := make([]byte, domain.HeaderCapacity)
	n, err := EncodeHeader(buf, h)
	if err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	if n != 1 || buf[0] != 0 {
		t.Fatalf("REQUEST header must be a single zero byte, got % x", buf[:n])
	}
	got, dn, err := DecodeHeader(buf[:n])
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if dn != 1 || got.Kind != domain.PacketRequest || got.Sequence != 0 {
		t.Fatalf("decoded %+v, want REQUEST/0", got)
	}
}

func TestHeaderRoundTripAllKindsAllLengths(t *testing.T) {
	kinds := []domain.PacketKind{
		domain.PacketDenied, domain.PacketChallenge, domain.PacketResponse,
		domain.PacketKeepAlive, domain.PacketPayload, domain.PacketDisconnect,
	}
	for _, kind := range kinds {
		for seqBytes := uint8(1); seqBytes <= 8; seqBytes++ {
			var seq uint64
			if seqBytes == 8 {
				seq = ^uint64(0)
			} else {
				seq = (uint64(1) << (8 * seqBytes)) - 1
			}
			h := domain.Header{Kind: kind, Sequence: seq}
			buf := make([]byte, domain.HeaderCapacity)
			n, err := EncodeHeader(buf, h)
			if err != nil {
				t.Fatalf("EncodeHeader(%v, seq=%#x): %v", kind, seq, err)
			}
			got, dn, err := DecodeHeader(buf[:n])
			if err != nil {
				t.Fatalf("DecodeHeader(%v, seq=%#x): %v", kind, seq, err)
			}
			if dn != n || got.Kind != kind || got.Sequence != seq {
				t.Fatalf("round trip mismatch for kind=%v seq=%#x: got %+v", kind, seq, got)
			}
		}
	}
}

func TestDecodeHeaderRejectsBadKind(t *testing.T) {
	buf := []byte{byte(7)<<4 | 1, 0xAA}
	if _, _, err := DecodeHeader(buf); err != domain.ErrMalformed {
		t.Fatalf("expected ErrMalformed for kind=7, got %v", err)
	}
}

func TestDecodeHeaderRejectsBadSequenceLength(t *testing.T) {
	buf := []byte{byte(domain.PacketPayload)<<4 | 0, 0xAA}
	if _, _, err := DecodeHeader(buf); err != domain.ErrMalformed {
		t.Fatalf("expected ErrMalformed for seqBytes=0, got %v", err)
	}
	buf2 := []byte{byte(domain.PacketPayload)<<4 | 9}
	if _, _, err := DecodeHeader(buf2); err != domain.ErrMalformed {
		t.Fatalf("expected ErrMalformed for seqBytes=9, got %v", err)
	}
}

func TestDecodeHeaderRejectsTruncated(t *testing.T) {
	buf := []byte{byte(domain.PacketPayload)<<4 | 4, 1, 2}
	if _, _, err := DecodeHeader(buf); err != domain.ErrMalformed {
		t.Fatalf("expected ErrMalformed for truncated sequence, got %v", err)
	}
}

func TestEncodeHeaderBufferTooSmall(t *testing.T) {
	buf := make([]byte, 1)
	h := domain.Header{Kind: domain.PacketPayload, Sequence: 0x0102}
	if _, err := EncodeHeader(buf, h); err != domain.ErrBufferTooSmall {
		t.Fatalf("expected ErrBufferTooSmall, got %v", err)
	}
}
