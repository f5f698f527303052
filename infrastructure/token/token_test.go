package token

import (
	"net/netip"
	"testing"

	"github.com/pomelo-net/pomelo-go/domain"
	"github.com/pomelo-net/pomelo-go/infrastructure/cryptography"
)

func newKey(t *testing.T) *[32]byte {
	t.Helper()
	var k [32]byte
	if err := cryptography.RandomBytes(k[:]); err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	return &k
}

func buildToken(t *testing.T) domain.ConnectToken {
	t.Helper()
	var tok domain.ConnectToken
	tok.ProtocolID = 0x0102030405060708
	tok.CreateTimestamp = 1000
	tok.ExpireTimestamp = 1045
	if err := cryptography.RandomBytes(tok.Nonce[:]); err != nil {
		t.Fatalf("RandomBytes nonce: %v", err)
	}
	tok.Private.ClientID = 9001
	tok.Private.TimeoutSeconds = 15
	tok.Private.ServerAddresses = []netip.AddrPort{
		netip.MustParseAddrPort("203.0.113.10:40000"),
		netip.MustParseAddrPort("[2001:db8::1]:40001"),
	}
	if err := cryptography.RandomBytes(tok.Private.ClientToServerKey[:]); err != nil {
		t.Fatal(err)
	}
	if err := cryptography.RandomBytes(tok.Private.ServerToClientKey[:]); err != nil {
		t.Fatal(err)
	}
	copy(tok.Private.UserData[:], []byte("hello-user-data"))
	return tok
}

func TestConnectTokenRoundTrip(t *testing.T) {
	privateKey := newKey(t)
	tok := buildToken(t)

	buf := make([]byte, domain.ConnectTokenBytes)
	n, err := EncodeConnectToken(buf, &tok, privateKey)
	if err != nil {
		t.Fatalf("EncodeConnectToken: %v", err)
	}
	if n != domain.ConnectTokenBytes {
		t.Fatalf("encoded length %d, want %d", n, domain.ConnectTokenBytes)
	}

	pub, encryptedPrivate, err := DecodeConnectTokenPublic(buf)
	if err != nil {
		t.Fatalf("DecodeConnectTokenPublic: %v", err)
	}
	if pub.ProtocolID != tok.ProtocolID || pub.CreateTimestamp != tok.CreateTimestamp ||
		pub.ExpireTimestamp != tok.ExpireTimestamp || pub.Nonce != tok.Nonce {
		t.Fatalf("public header mismatch: %+v", pub)
	}
	if pub.Private.TimeoutSeconds != tok.Private.TimeoutSeconds {
		t.Fatalf("timeout mismatch: got %d want %d", pub.Private.TimeoutSeconds, tok.Private.TimeoutSeconds)
	}
	if len(pub.Private.ServerAddresses) != len(tok.Private.ServerAddresses) {
		t.Fatalf("address count mismatch: got %d want %d", len(pub.Private.ServerAddresses), len(tok.Private.ServerAddresses))
	}
	for i, a := range tok.Private.ServerAddresses {
		if pub.Private.ServerAddresses[i] != a {
			t.Fatalf("address %d mismatch: got %v want %v", i, pub.Private.ServerAddresses[i], a)
		}
	}
	if pub.Private.ClientToServerKey != tok.Private.ClientToServerKey {
		t.Fatalf("client-to-server key mismatch")
	}
	if pub.Private.ServerToClientKey != tok.Private.ServerToClientKey {
		t.Fatalf("server-to-client key mismatch")
	}
	// The cleartext copy never carries client_id or user_data.
	if pub.Private.ClientID != 0 {
		t.Fatalf("expected client id to stay private, got %d", pub.Private.ClientID)
	}

	priv, err := DecryptConnectTokenPrivate(encryptedPrivate[:], &tok.Nonce, tok.ProtocolID, tok.ExpireTimestamp, privateKey)
	if err != nil {
		t.Fatalf("DecryptConnectTokenPrivate: %v", err)
	}
	if priv.ClientID != tok.Private.ClientID {
		t.Fatalf("client id mismatch: got %d want %d", priv.ClientID, tok.Private.ClientID)
	}
	if priv.UserData != tok.Private.UserData {
		t.Fatalf("user data mismatch")
	}
	if priv.ClientToServerKey != tok.Private.ClientToServerKey || priv.ServerToClientKey != tok.Private.ServerToClientKey {
		t.Fatalf("key mismatch in decrypted private section")
	}
	if len(priv.ServerAddresses) != len(tok.Private.ServerAddresses) {
		t.Fatalf("decrypted address count mismatch")
	}
}

func TestDecryptConnectTokenPrivateRejectsWrongKey(t *testing.T) {
	privateKey := newKey(t)
	other := newKey(t)
	tok := buildToken(t)

	buf := make([]byte, domain.ConnectTokenBytes)
	if _, err := EncodeConnectToken(buf, &tok, privateKey); err != nil {
		t.Fatalf("EncodeConnectToken: %v", err)
	}
	_, encryptedPrivate, err := DecodeConnectTokenPublic(buf)
	if err != nil {
		t.Fatalf("DecodeConnectTokenPublic: %v", err)
	}
	if _, err := DecryptConnectTokenPrivate(encryptedPrivate[:], &tok.Nonce, tok.ProtocolID, tok.ExpireTimestamp, other); err != domain.ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptConnectTokenPrivateRejectsWrongExpireTimestamp(t *testing.T) {
	privateKey := newKey(t)
	tok := buildToken(t)

	buf := make([]byte, domain.ConnectTokenBytes)
	if _, err := EncodeConnectToken(buf, &tok, privateKey); err != nil {
		t.Fatalf("EncodeConnectToken: %v", err)
	}
	_, encryptedPrivate, err := DecodeConnectTokenPublic(buf)
	if err != nil {
		t.Fatalf("DecodeConnectTokenPublic: %v", err)
	}
	if _, err := DecryptConnectTokenPrivate(encryptedPrivate[:], &tok.Nonce, tok.ProtocolID, tok.ExpireTimestamp+1, privateKey); err != domain.ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed for mismatched expire timestamp, got %v", err)
	}
}

func TestDecodeConnectTokenPublicRejectsBadVersion(t *testing.T) {
	buf := make([]byte, domain.ConnectTokenBytes)
	buf[0] = 'X'
	if _, _, err := DecodeConnectTokenPublic(buf); err != domain.ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestChallengeTokenRoundTrip(t *testing.T) {
	key := newKey(t)
	tok := domain.ChallengeToken{ClientID: 777}
	copy(tok.UserData[:], []byte("challenge-user-data"))

	buf := make([]byte, domain.ChallengeTokenBytes)
	n, err := EncryptChallengeToken(buf, &tok, key, 42)
	if err != nil {
		t.Fatalf("EncryptChallengeToken: %v", err)
	}
	if n != domain.ChallengeTokenBytes {
		t.Fatalf("encrypted length %d, want %d", n, domain.ChallengeTokenBytes)
	}

	got, err := DecryptChallengeToken(buf, key, 42)
	if err != nil {
		t.Fatalf("DecryptChallengeToken: %v", err)
	}
	if got.ClientID != tok.ClientID || got.UserData != tok.UserData {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestChallengeTokenRejectsWrongSequence(t *testing.T) {
	key := newKey(t)
	tok := domain.ChallengeToken{ClientID: 1}
	buf := make([]byte, domain.ChallengeTokenBytes)
	if _, err := EncryptChallengeToken(buf, &tok, key, 1); err != nil {
		t.Fatalf("EncryptChallengeToken: %v", err)
	}
	if _, err := DecryptChallengeToken(buf, key, 2); err != domain.ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestChallengeTokenRejectsTampering(t *testing.T) {
	key := newKey(t)
	tok := domain.ChallengeToken{ClientID: 1}
	buf := make([]byte, domain.ChallengeTokenBytes)
	if _, err := EncryptChallengeToken(buf, &tok, key, 1); err != nil {
		t.Fatalf("EncryptChallengeToken: %v", err)
	}
	buf[len(buf)-1] ^= 0xFF
	if _, err := DecryptChallengeToken(buf, key, 1); err != domain.ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}
