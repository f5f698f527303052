package domain

import "errors"

// Sentinel errors surfaced across the protocol core's API boundaries.
// Callers compare with errors.Is; none of these are ever allowed to panic
// the process.
var (
	// ErrMalformed means a decoded packet violates a size, prefix, version
	// or length invariant. The caller drops the packet.
	ErrMalformed = errors.New("pomelo: malformed packet")

	// ErrAuthFailed means AEAD tag verification failed. The caller drops
	// the packet; this is never surfaced to the application.
	ErrAuthFailed = errors.New("pomelo: authentication failed")

	// ErrReplay means the sequence number was rejected by the replay
	// window.
	ErrReplay = errors.New("pomelo: replayed or stale sequence")

	// ErrWrongState means the packet kind is not accepted in the peer's
	// current state.
	ErrWrongState = errors.New("pomelo: packet not valid in current state")

	// ErrTokenExpired is surfaced as a terminal client connect result.
	ErrTokenExpired = errors.New("pomelo: connect token expired")

	// ErrTokenInvalid is surfaced as a terminal client connect result.
	ErrTokenInvalid = errors.New("pomelo: connect token invalid")

	// ErrDenied means the server sent DENIED.
	ErrDenied = errors.New("pomelo: connection denied")

	// ErrTimedOut means no packet arrived within the peer's timeout window,
	// or the handshake did not complete in time.
	ErrTimedOut = errors.New("pomelo: timed out")

	// ErrOutOfMemory means a pool acquisition failed. The caller drops the
	// in-progress operation; the process never crashes.
	ErrOutOfMemory = errors.New("pomelo: out of memory")

	// ErrCanceled means a sender/receiver was canceled because its socket
	// is stopping.
	ErrCanceled = errors.New("pomelo: canceled")

	// ErrBufferTooSmall means an encode target view was too small to hold
	// the encoded packet.
	ErrBufferTooSmall = errors.New("pomelo: buffer too small")

	// ErrClosed means an operation was attempted on a socket that has
	// already stopped.
	ErrClosed = errors.New("pomelo: socket closed")
)
