package domain

import "net/netip"

// ConnectTokenPrivate is the encrypted section of a connect token: the
// client's identity, its keys, its idle timeout and its caller-supplied
// user data. Encrypted under the shared token key with
// ConnectTokenNonceBytes of XChaCha20-Poly1305 nonce.
type ConnectTokenPrivate struct {
	ClientID        uint64
	TimeoutSeconds  int32 // <= 0 disables the idle timeout
	ServerAddresses []netip.AddrPort
	ClientToServerKey [KeyBytes]byte
	ServerToClientKey [KeyBytes]byte
	UserData          [UserDataBytes]byte
}

// ConnectToken is the full, decoded connect token: the public fields plus
// the decrypted private section. It never exists on the wire in this
// shape: the encoded form written by token.EncodeConnectToken carries the
// private section encrypted.
type ConnectToken struct {
	ProtocolID       uint64
	CreateTimestamp  int64
	ExpireTimestamp  int64
	Nonce            [ConnectTokenNonceBytes]byte
	Private          ConnectTokenPrivate
}

// Expired reports whether the token's expiry has passed as of now (unix
// seconds).
func (t *ConnectToken) Expired(nowUnix int64) bool {
	return t.ExpireTimestamp <= nowUnix
}

// ChallengeToken is the server-issued, client-echoed proof of liveness.
// Always ChallengeTokenBytes on the wire once encrypted.
type ChallengeToken struct {
	ClientID uint64
	UserData [UserDataBytes]byte
}
