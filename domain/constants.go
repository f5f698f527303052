// Package domain holds the wire constants, packet-kind/state enums and the
// shared error vocabulary of the pomelo protocol core. It has no
// dependencies on any other package in this module.
package domain

import "time"

// VersionInfo is the fixed 12-byte string bound into every AEAD's
// associated data and carried in the clear at the front of a REQUEST
// packet.
const VersionInfo = "POMELO 1.03\x00"

const (
	// KeyBytes is the size of every AEAD key (client->server, server->client,
	// challenge key, private token key).
	KeyBytes = 32

	// TagBytes is the ChaCha20-Poly1305 IETF authentication tag size.
	TagBytes = 16

	// UserDataBytes is the size of the opaque application payload carried in
	// both the connect token's private section and the challenge token.
	UserDataBytes = 256

	// MaxServerAddresses bounds the address list carried in a connect token.
	MaxServerAddresses = 32

	// ConnectTokenNonceBytes is the XChaCha20-Poly1305 nonce size used to
	// encrypt the connect token's private section.
	ConnectTokenNonceBytes = 24

	// ConnectTokenPrivateBytes is the fixed wire size of the encrypted
	// private section: 1008 bytes of plaintext (zero-padded) plus a 16-byte
	// AEAD tag.
	ConnectTokenPrivateBytes = 1024
	connectTokenPrivatePlaintextBytes = ConnectTokenPrivateBytes - TagBytes

	// ConnectTokenBytes is the total size of the public connect token as
	// exchanged out of band.
	ConnectTokenBytes = 2048

	// ChallengeTokenBytes is the fixed wire size of the encrypted challenge
	// token (8 bytes plaintext client_id + 256 bytes user_data, zero-padded,
	// plus a 16-byte tag).
	ChallengeTokenBytes = 300
	challengeTokenPlaintextBytes = ChallengeTokenBytes - TagBytes

	// SequenceBytesMin/Max bound the packed length of a packet sequence
	// number.
	SequenceBytesMin = 1
	SequenceBytesMax = 8

	// HeaderCapacity is the maximum size of a packet header: 1 prefix byte
	// plus up to 8 little-endian sequence bytes.
	HeaderCapacity = 1 + SequenceBytesMax

	// MaxPayloadBytes is the largest application payload a single PAYLOAD
	// packet may carry.
	MaxPayloadBytes = 1200
	// MinPayloadBytes rejects empty payloads; an application with nothing to
	// say sends no packet at all.
	MinPayloadBytes = 1

	// PacketBufferCapacity is large enough to hold the biggest packet kind
	// (PAYLOAD) fully encoded: header + body + tag.
	PacketBufferCapacity = HeaderCapacity + MaxPayloadBytes + TagBytes

	// ReplayWindowSize is the number of recent sequence slots the replay
	// protector tracks per peer, per direction.
	ReplayWindowSize = 256

	// AnonymousPeerExpiry bounds how long a server holds an anonymous
	// (pre-RESPONSE) peer before it is reused or released.
	AnonymousPeerExpiry = 30 * time.Second

	// DisconnectRedundantSends is the number of DISCONNECT packets emitted
	// for a single disconnect, client or server side.
	DisconnectRedundantSends = 10

	// EmitterFrequencyHz is the retransmission/keep-alive/broadcast rate
	// used by every emitter in the protocol core except the server's
	// anonymous-peer scan, which runs at AnonymousPeerScanFrequencyHz.
	EmitterFrequencyHz = 10

	// AnonymousPeerScanFrequencyHz is the rate at which the server scans for
	// expired anonymous peers.
	AnonymousPeerScanFrequencyHz = 1

	// PoolCacheChunkSize is the batch size a per-goroutine pool cache
	// acquires from / releases to its root pool.
	PoolCacheChunkSize = 16
)
