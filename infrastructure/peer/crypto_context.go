package peer

import "sync/atomic"

// CryptoContext holds the keys and protocol id a peer's sender/receiver
// pipelines encrypt and decrypt with. It is immutable after Install and
// reference-counted via atomic ops, since an in-flight
// sender/receiver worker task may still be reading it after the peer
// itself has been released back to its pool.
type CryptoContext struct {
	ref atomic.Int32

	ProtocolID uint64
	EncryptKey [32]byte
	DecryptKey [32]byte

	// PrivateKey and ChallengeKey are populated on server-side contexts
	// only: the shared connect-token key used to open a REQUEST's
	// private section, and the server's per-run challenge key used to seal
	// and open challenge tokens. Zero on every client-side context.
	PrivateKey   [32]byte
	ChallengeKey [32]byte
}

// NewCryptoContext returns a CryptoContext with an initial reference count
// of 1.
func NewCryptoContext() *CryptoContext {
	c := &CryptoContext{}
	c.ref.Store(1)
	return c
}

// Install sets the keys and protocol id. Call only while ref == 1 (before
// handing the context to any pipeline), matching the "immutable after
// install" contract.
func (c *CryptoContext) Install(protocolID uint64, encryptKey, decryptKey [32]byte) {
	c.ProtocolID = protocolID
	c.EncryptKey = encryptKey
	c.DecryptKey = decryptKey
}

// Ref increments the reference count and returns c.
func (c *CryptoContext) Ref() *CryptoContext {
	c.ref.Add(1)
	return c
}

// Release decrements the reference count and reports whether this call
// dropped it to zero.
func (c *CryptoContext) Release() bool {
	return c.ref.Add(-1) == 0
}

// RefCount reports the current reference count.
func (c *CryptoContext) RefCount() int32 {
	return c.ref.Load()
}

// Reset clears a context back to a fresh, singly-referenced state before it
// is returned to its pool. Call only after Release has reported
// the reference count reached zero.
func (c *CryptoContext) Reset() {
	c.ProtocolID = 0
	c.EncryptKey = [32]byte{}
	c.DecryptKey = [32]byte{}
	c.PrivateKey = [32]byte{}
	c.ChallengeKey = [32]byte{}
	c.ref.Store(1)
}
