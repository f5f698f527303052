package codec

import (
	"github.com/pomelo-net/pomelo-go/domain"
	"github.com/pomelo-net/pomelo-go/infrastructure/cryptography"
)

// EncodePacket encodes pkt (per pkt.Header.Kind) into dst, sealing the body
// with key when the kind is encrypted. protocolID is mixed into the
// associated data for every non-REQUEST kind.
func EncodePacket(dst []byte, pkt *domain.Packet, key *[32]byte, protocolID uint64) (int, error) {
	if pkt.Header.Kind == domain.PacketRequest {
		return encodeRequest(dst, pkt)
	}

	body, err := encodeBody(pkt.Header.Kind, pkt)
	if err != nil {
		return 0, err
	}

	seqBytes := PackedUint64Bytes(pkt.Header.Sequence)
	prefix := byte(pkt.Header.Kind)<<4 | byte(seqBytes)&0x0F
	headerLen := 1 + int(seqBytes)
	need := headerLen + len(body) + domain.TagBytes
	if len(dst) < need {
		return 0, domain.ErrBufferTooSmall
	}

	dst[0] = prefix
	WritePacked(dst[1:], pkt.Header.Sequence, seqBytes)

	nonce := cryptography.SequenceNonce(pkt.Header.Sequence)
	ad := MakeAssociatedData(make([]byte, 0, 24), protocolID, prefix)
	sealed, err := cryptography.Seal(dst[headerLen:headerLen], nonce[:], body, ad, key)
	if err != nil {
		return 0, err
	}
	return headerLen + len(sealed), nil
}

// DecodePacket decodes a packet from src. The header is parsed first and
// validated before any crypto runs; AEAD failure surfaces as
// domain.ErrAuthFailed, any other wire violation as domain.ErrMalformed.
func DecodePacket(src []byte, key *[32]byte, protocolID uint64) (domain.Packet, int, error) {
	header, headerLen, err := DecodeHeader(src)
	if err != nil {
		return domain.Packet{}, 0, err
	}
	if header.Kind == domain.PacketRequest {
		return decodeRequest(src)
	}

	ciphertextLen := len(src) - headerLen
	if ciphertextLen < domain.TagBytes {
		return domain.Packet{}, 0, domain.ErrMalformed
	}
	if err := validateBodyLen(header.Kind, ciphertextLen-domain.TagBytes); err != nil {
		return domain.Packet{}, 0, err
	}

	prefix := src[0]
	nonce := cryptography.SequenceNonce(header.Sequence)
	ad := MakeAssociatedData(make([]byte, 0, 24), protocolID, prefix)
	plaintext, err := cryptography.Open(nil, nonce[:], src[headerLen:], ad, key)
	if err != nil {
		return domain.Packet{}, 0, domain.ErrAuthFailed
	}

	pkt := domain.Packet{Header: header}
	if err := decodeBody(header.Kind, plaintext, &pkt); err != nil {
		return domain.Packet{}, 0, err
	}
	return pkt, len(src), nil
}

func validateBodyLen(kind domain.PacketKind, n int) error {
	min, max := bodyBounds(kind)
	if n < min || (max >= 0 && n > max) {
		return domain.ErrMalformed
	}
	return nil
}

// bodyBounds returns the plaintext body size bounds for kind, excluding the
// AEAD tag. max == -1 means unbounded (not used here; PAYLOAD is bounded).
func bodyBounds(kind domain.PacketKind) (min, max int) {
	switch kind {
	case domain.PacketDenied, domain.PacketDisconnect:
		return 0, 0
	case domain.PacketChallenge, domain.PacketResponse:
		return 8 + domain.ChallengeTokenBytes, 8 + domain.ChallengeTokenBytes
	case domain.PacketKeepAlive:
		return 8, 8
	case domain.PacketPayload:
		return domain.MinPayloadBytes, domain.MaxPayloadBytes
	default:
		return 0, 0
	}
}

func encodeBody(kind domain.PacketKind, pkt *domain.Packet) ([]byte, error) {
	switch kind {
	case domain.PacketDenied, domain.PacketDisconnect:
		return nil, nil
	case domain.PacketChallenge, domain.PacketResponse:
		buf := make([]byte, 8+domain.ChallengeTokenBytes)
		WritePacked(buf, pkt.TokenSequence, 8)
		copy(buf[8:], pkt.ChallengeToken[:])
		return buf, nil
	case domain.PacketKeepAlive:
		buf := make([]byte, 8)
		WritePacked(buf, pkt.ClientID, 8)
		return buf, nil
	case domain.PacketPayload:
		if len(pkt.Payload) < domain.MinPayloadBytes || len(pkt.Payload) > domain.MaxPayloadBytes {
			return nil, domain.ErrMalformed
		}
		return pkt.Payload, nil
	default:
		return nil, domain.ErrMalformed
	}
}

func decodeBody(kind domain.PacketKind, body []byte, pkt *domain.Packet) error {
	switch kind {
	case domain.PacketDenied, domain.PacketDisconnect:
		return nil
	case domain.PacketChallenge, domain.PacketResponse:
		pkt.TokenSequence = ReadPacked(body, 8)
		copy(pkt.ChallengeToken[:], body[8:])
		return nil
	case domain.PacketKeepAlive:
		pkt.ClientID = ReadPacked(body, 8)
		return nil
	case domain.PacketPayload:
		pkt.Payload = append([]byte(nil), body...)
		return nil
	default:
		return domain.ErrMalformed
	}
}

// requestBodyLen is the fixed plaintext size of a REQUEST body: VERSION_INFO
// + protocol_id(8) + create_timestamp(8) + expire_timestamp(8) + nonce(24)
// + private_section(1024).
const requestBodyLen = 12 + 8 + 8 + 8 + domain.ConnectTokenNonceBytes + domain.ConnectTokenPrivateBytes

func encodeRequest(dst []byte, pkt *domain.Packet) (int, error) {
	total := 1 + requestBodyLen
	if len(dst) < total {
		return 0, domain.ErrBufferTooSmall
	}
	dst[0] = 0
	w := dst[1:]
	copy(w, versionInfoBytes[:])
	w = w[12:]
	WritePacked(w, pkt.ProtocolID, 8)
	w = w[8:]
	WritePacked(w, uint64(pkt.CreateTimestamp), 8)
	w = w[8:]
	WritePacked(w, uint64(pkt.ExpireTimestamp), 8)
	w = w[8:]
	copy(w, pkt.TokenNonce[:])
	w = w[domain.ConnectTokenNonceBytes:]
	copy(w, pkt.TokenPrivate[:])
	return total, nil
}

func decodeRequest(src []byte) (domain.Packet, int, error) {
	total := 1 + requestBodyLen
	if len(src) < total {
		return domain.Packet{}, 0, domain.ErrMalformed
	}
	r := src[1:]
	if string(r[:12]) != string(versionInfoBytes[:]) {
		return domain.Packet{}, 0, domain.ErrMalformed
	}
	r = r[12:]
	pkt := domain.Packet{Header: domain.Header{Kind: domain.PacketRequest}}
	pkt.ProtocolID = ReadPacked(r, 8)
	r = r[8:]
	pkt.CreateTimestamp = int64(ReadPacked(r, 8))
	r = r[8:]
	pkt.ExpireTimestamp = int64(ReadPacked(r, 8))
	r = r[8:]
	copy(pkt.TokenNonce[:], r[:domain.ConnectTokenNonceBytes])
	r = r[domain.ConnectTokenNonceBytes:]
	copy(pkt.TokenPrivate[:], r[:domain.ConnectTokenPrivateBytes])
	return pkt, total, nil
}
