package token

import (
	"encoding/binary"

	"github.com/pomelo-net/pomelo-go/domain"
	"github.com/pomelo-net/pomelo-go/infrastructure/cryptography"
)

// EncodeConnectToken writes the full public connect token:
// version info, protocol id, timestamps, nonce, the XChaCha20-Poly1305
// sealed private section, then a cleartext copy of the timeout, server
// address list and both traffic keys so the client can use them directly
// without ever decrypting the private section — only the server, holding
// privateKey, can do that (the private section is what travels inside a
// REQUEST packet, forwarded opaquely by the client).
func EncodeConnectToken(dst []byte, t *domain.ConnectToken, privateKey *[32]byte) (int, error) {
	if len(dst) < domain.ConnectTokenBytes {
		return 0, domain.ErrBufferTooSmall
	}
	pos := 0
	pos += copy(dst[pos:], versionInfoBytes[:])
	binary.LittleEndian.PutUint64(dst[pos:], t.ProtocolID)
	pos += 8
	binary.LittleEndian.PutUint64(dst[pos:], uint64(t.CreateTimestamp))
	pos += 8
	binary.LittleEndian.PutUint64(dst[pos:], uint64(t.ExpireTimestamp))
	pos += 8
	pos += copy(dst[pos:], t.Nonce[:])

	privateLen, err := encodePrivateSection(dst[pos:pos+domain.ConnectTokenPrivateBytes], t, privateKey)
	if err != nil {
		return 0, err
	}
	if privateLen != domain.ConnectTokenPrivateBytes {
		return 0, domain.ErrMalformed
	}
	pos += privateLen

	binary.LittleEndian.PutUint32(dst[pos:], uint32FromInt32(t.Private.TimeoutSeconds))
	pos += 4
	n, err := writeAddresses(dst[pos:], t.Private.ServerAddresses)
	if err != nil {
		return 0, err
	}
	pos += n
	pos += copy(dst[pos:], t.Private.ClientToServerKey[:])
	pos += copy(dst[pos:], t.Private.ServerToClientKey[:])

	if pos > domain.ConnectTokenBytes {
		return 0, domain.ErrMalformed
	}
	for i := pos; i < domain.ConnectTokenBytes; i++ {
		dst[i] = 0
	}
	return domain.ConnectTokenBytes, nil
}

// DecodeConnectTokenPublic parses everything a client can see without the
// server's private key: the header fields and the cleartext copy of the
// timeout, addresses and traffic keys. The still-encrypted private section
// is returned verbatim (to be embedded in a REQUEST packet); it is not
// decrypted here.
func DecodeConnectTokenPublic(src []byte) (domain.ConnectToken, [domain.ConnectTokenPrivateBytes]byte, error) {
	var encryptedPrivate [domain.ConnectTokenPrivateBytes]byte
	if len(src) < domain.ConnectTokenBytes {
		return domain.ConnectToken{}, encryptedPrivate, domain.ErrMalformed
	}
	if string(src[:12]) != string(versionInfoBytes[:]) {
		return domain.ConnectToken{}, encryptedPrivate, domain.ErrMalformed
	}
	var t domain.ConnectToken
	pos := 12
	t.ProtocolID = binary.LittleEndian.Uint64(src[pos:])
	pos += 8
	t.CreateTimestamp = int64(binary.LittleEndian.Uint64(src[pos:]))
	pos += 8
	t.ExpireTimestamp = int64(binary.LittleEndian.Uint64(src[pos:]))
	pos += 8
	copy(t.Nonce[:], src[pos:pos+domain.ConnectTokenNonceBytes])
	pos += domain.ConnectTokenNonceBytes

	copy(encryptedPrivate[:], src[pos:pos+domain.ConnectTokenPrivateBytes])
	pos += domain.ConnectTokenPrivateBytes

	t.Private.TimeoutSeconds = int32(binary.LittleEndian.Uint32(src[pos:]))
	pos += 4
	addrs, n, err := readAddresses(src[pos:])
	if err != nil {
		return domain.ConnectToken{}, encryptedPrivate, err
	}
	t.Private.ServerAddresses = addrs
	pos += n
	if len(src) < pos+domain.KeyBytes*2 {
		return domain.ConnectToken{}, encryptedPrivate, domain.ErrMalformed
	}
	copy(t.Private.ClientToServerKey[:], src[pos:pos+domain.KeyBytes])
	pos += domain.KeyBytes
	copy(t.Private.ServerToClientKey[:], src[pos:pos+domain.KeyBytes])

	return t, encryptedPrivate, nil
}

// DecryptConnectTokenPrivate decrypts and parses the private section of a
// connect token, as the server does after receiving it inside a REQUEST
// packet. protocolID and expireTimestamp must match the values the client
// sent in the clear alongside it — they are part of the associated data, so
// any mismatch surfaces as domain.ErrAuthFailed.
func DecryptConnectTokenPrivate(encrypted []byte, nonce *[domain.ConnectTokenNonceBytes]byte, protocolID uint64, expireTimestamp int64, key *[32]byte) (domain.ConnectTokenPrivate, error) {
	if len(encrypted) != domain.ConnectTokenPrivateBytes {
		return domain.ConnectTokenPrivate{}, domain.ErrMalformed
	}
	ad := privateAssociatedData(protocolID, expireTimestamp)
	plaintext, err := cryptography.OpenX(nil, nonce[:], encrypted, ad, key)
	if err != nil {
		return domain.ConnectTokenPrivate{}, domain.ErrAuthFailed
	}
	return decodePrivatePlaintext(plaintext)
}

func encodePrivateSection(dst []byte, t *domain.ConnectToken, key *[32]byte) (int, error) {
	if len(dst) != domain.ConnectTokenPrivateBytes {
		return 0, domain.ErrBufferTooSmall
	}
	// plaintextBudget-sized and zero-initialized: whatever the fields below
	// don't fill stays zero padding, exactly as the wire format requires.
	plaintext := make([]byte, plaintextBudget)
	pos := 0
	binary.LittleEndian.PutUint64(plaintext[pos:], t.Private.ClientID)
	pos += 8
	binary.LittleEndian.PutUint32(plaintext[pos:], uint32FromInt32(t.Private.TimeoutSeconds))
	pos += 4
	n, err := writeAddresses(plaintext[pos:], t.Private.ServerAddresses)
	if err != nil {
		return 0, err
	}
	pos += n
	if pos+domain.KeyBytes*2+domain.UserDataBytes > plaintextBudget {
		return 0, domain.ErrMalformed
	}
	pos += copy(plaintext[pos:], t.Private.ClientToServerKey[:])
	pos += copy(plaintext[pos:], t.Private.ServerToClientKey[:])
	copy(plaintext[pos:], t.Private.UserData[:])

	ad := privateAssociatedData(t.ProtocolID, t.ExpireTimestamp)
	sealed, err := cryptography.SealX(dst[:0], t.Nonce[:], plaintext, ad, key)
	if err != nil {
		return 0, err
	}
	return len(sealed), nil
}

func decodePrivatePlaintext(plaintext []byte) (domain.ConnectTokenPrivate, error) {
	if len(plaintext) < 8+4+4 {
		return domain.ConnectTokenPrivate{}, domain.ErrMalformed
	}
	var p domain.ConnectTokenPrivate
	pos := 0
	p.ClientID = binary.LittleEndian.Uint64(plaintext[pos:])
	pos += 8
	p.TimeoutSeconds = int32(binary.LittleEndian.Uint32(plaintext[pos:]))
	pos += 4
	addrs, n, err := readAddresses(plaintext[pos:])
	if err != nil {
		return domain.ConnectTokenPrivate{}, err
	}
	p.ServerAddresses = addrs
	pos += n
	if len(plaintext) < pos+domain.KeyBytes*2+domain.UserDataBytes {
		return domain.ConnectTokenPrivate{}, domain.ErrMalformed
	}
	copy(p.ClientToServerKey[:], plaintext[pos:pos+domain.KeyBytes])
	pos += domain.KeyBytes
	copy(p.ServerToClientKey[:], plaintext[pos:pos+domain.KeyBytes])
	pos += domain.KeyBytes
	copy(p.UserData[:], plaintext[pos:pos+domain.UserDataBytes])
	return p, nil
}

// privateAssociatedData is version_info || protocol_id(8) || expire_timestamp(8).
func privateAssociatedData(protocolID uint64, expireTimestamp int64) []byte {
	ad := make([]byte, 12+8+8)
	copy(ad, versionInfoBytes[:])
	binary.LittleEndian.PutUint64(ad[12:], protocolID)
	binary.LittleEndian.PutUint64(ad[20:], uint64(expireTimestamp))
	return ad
}

// plaintextBudget is the fixed plaintext size sealed into a connect token's
// private section, before the AEAD tag.
const plaintextBudget = domain.ConnectTokenPrivateBytes - domain.TagBytes

func uint32FromInt32(v int32) uint32 { return uint32(v) }
