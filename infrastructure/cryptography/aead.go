// Package cryptography wraps the AEAD primitives the protocol core needs:
// ChaCha20-Poly1305 IETF for every packet and the challenge token, and
// XChaCha20-Poly1305 IETF for the connect token's private section (which
// needs a 24-byte nonce rather than the 12-byte IETF nonce), built on
// golang.org/x/crypto/chacha20poly1305. The handshake has no
// Diffie-Hellman step, so no key derivation is needed here — keys arrive
// pre-generated in the connect token.
package cryptography

import (
	"golang.org/x/crypto/chacha20poly1305"
	"lukechampine.com/frand"
)

// Seal encrypts plaintext in place: out = plaintext || tag, authenticated
// by associatedData under the 12-byte IETF nonce. The returned slice
// aliases dst.
func Seal(dst, nonce, plaintext, associatedData []byte, key *[32]byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return aead.Seal(dst[:0], nonce, plaintext, associatedData), nil
}

// Open authenticates and decrypts ciphertext (plaintext||tag) under the
// 12-byte IETF nonce, returning the plaintext. It never returns a partial
// result on failure.
func Open(dst, nonce, ciphertext, associatedData []byte, key *[32]byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return aead.Open(dst[:0], nonce, ciphertext, associatedData)
}

// SealX encrypts plaintext with XChaCha20-Poly1305 under a 24-byte nonce —
// used only for the connect token's private section, which is the one
// place in the wire format whose nonce cannot fit in 12 bytes.
func SealX(dst, nonce, plaintext, associatedData []byte, key *[32]byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	return aead.Seal(dst[:0], nonce, plaintext, associatedData), nil
}

// OpenX authenticates and decrypts an XChaCha20-Poly1305 sealed value.
func OpenX(dst, nonce, ciphertext, associatedData []byte, key *[32]byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	return aead.Open(dst[:0], nonce, ciphertext, associatedData)
}

// SequenceNonce left-zero-pads an 8-byte little-endian sequence number into
// a 12-byte IETF nonce: every non-REQUEST packet's nonce is its sequence
// number, left-zero-padded to 12 bytes.
func SequenceNonce(sequence uint64) [chacha20poly1305.NonceSize]byte {
	var nonce [chacha20poly1305.NonceSize]byte
	for i := 0; i < 8; i++ {
		nonce[4+i] = byte(sequence >> (8 * i))
	}
	return nonce
}

// RandomBytes fills b with CSPRNG output. Used for the server's challenge
// key and for connect-token keys and nonces (tokengen and test fixtures);
// token padding is zero-filled, not random. frand is used rather than
// crypto/rand directly — the same choice the Sia pack makes
// (go.sia.tech/core's rhp/v2/transport.go uses lukechampine.com/frand for
// key material generated on a hot path) since it avoids crypto/rand's
// per-call file-descriptor/syscall overhead.
func RandomBytes(b []byte) error {
	frand.Read(b)
	return nil
}
