package domain

import "time"

// ClientConfig is the in-process configuration handed to a client socket at
// construction. There is no file format or flag binding: the caller owns
// the connect token and hands it over verbatim, since token issuance
// happens out of band.
type ClientConfig struct {
	// ConnectToken is the 2048-byte public connect token.
	ConnectToken [ConnectTokenBytes]byte
}

// ServerConfig is the in-process configuration handed to a server socket at
// construction.
type ServerConfig struct {
	MaxClients int
	ProtocolID uint64
	PrivateKey [KeyBytes]byte
	BindAddr   string
}

// Timing groups the wall-clock constants that drive emitters and timeout
// checks. The client and server sockets read DefaultTiming directly; there
// is no way to hand a socket a different Timing.
type Timing struct {
	EmitterInterval       time.Duration
	KeepAliveInterval     time.Duration
	AnonymousScanInterval time.Duration
}

// DefaultTiming returns the production cadence: every emitter at
// EmitterFrequencyHz, anonymous-peer scanning at AnonymousPeerScanFrequencyHz.
func DefaultTiming() Timing {
	hz := func(n int) time.Duration { return time.Second / time.Duration(n) }
	return Timing{
		EmitterInterval:       hz(EmitterFrequencyHz),
		KeepAliveInterval:     hz(EmitterFrequencyHz),
		AnonymousScanInterval: hz(AnonymousPeerScanFrequencyHz),
	}
}
