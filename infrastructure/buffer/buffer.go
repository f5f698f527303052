// Package buffer implements a reference-counted packet buffer: reference
// count tracked via atomic ops, contents mutable only while the count is 1,
// the same convention the codebase uses elsewhere for shared mutable state
// updated exclusively via sync/atomic rather than a mutex.
package buffer

import "sync/atomic"

// Buffer is a fixed-capacity byte buffer shared between the I/O thread, a
// worker-pool goroutine processing it, and whichever sender/receiver
// currently holds it. Mutating Data is only safe while RefCount() == 1.
type Buffer struct {
	Data []byte
	ref  atomic.Int32
}

// New wraps data in a Buffer with an initial reference count of 1.
func New(data []byte) *Buffer {
	b := &Buffer{Data: data}
	b.ref.Store(1)
	return b
}

// Reset restores a pooled Buffer to a single owner before it is handed back
// out by Acquire: the reference count returns to 1. Data's
// backing array is reused as-is — callers overwrite it in full before
// reading, the same contract codec.EncodePacket already relies on.
func (b *Buffer) Reset() {
	b.ref.Store(1)
}

// Ref increments the reference count and returns b, for a second owner
// (e.g. a cancellation path that still needs to inspect the buffer after
// the pipeline has moved on).
func (b *Buffer) Ref() *Buffer {
	b.ref.Add(1)
	return b
}

// RefCount reports the current reference count.
func (b *Buffer) RefCount() int32 {
	return b.ref.Load()
}

// Release decrements the reference count and reports whether this call
// dropped it to zero — the caller owning the last reference is responsible
// for returning Data to its pool.
func (b *Buffer) Release() bool {
	return b.ref.Add(-1) == 0
}
