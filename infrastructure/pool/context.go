package pool

import (
	"github.com/pomelo-net/pomelo-go/domain"
	"github.com/pomelo-net/pomelo-go/infrastructure/buffer"
	"github.com/pomelo-net/pomelo-go/infrastructure/peer"
	"github.com/pomelo-net/pomelo-go/infrastructure/pipeline"
)

// Context owns one root pool per sharable type the protocol core hands out
// across the I/O thread and the worker pool: packets, peers, senders,
// receivers, crypto contexts and send buffers. A tagged union over packet
// kinds means one pool over domain.Packet covers every kind rather than a
// pool per kind. A Context is created once by the application and outlives
// every client/server socket it spawns.
type Context struct {
	Packets        *Root[domain.Packet]
	Peers          *Root[peer.Peer]
	Senders        *Root[pipeline.Sender]
	Receivers      *Root[pipeline.Receiver]
	CryptoContexts *Root[peer.CryptoContext]
	Buffers        *Root[buffer.Buffer]
}

// NewContext builds a Context with empty pools; every Root lazily
// constructs items on first Acquire.
func NewContext() *Context {
	return &Context{
		Packets:        NewRoot(func() *domain.Packet { return &domain.Packet{} }),
		Peers:          NewRoot(func() *peer.Peer { return peer.New() }),
		Senders:        NewRoot(func() *pipeline.Sender { return pipeline.NewSender() }),
		Receivers:      NewRoot(func() *pipeline.Receiver { return pipeline.NewReceiver() }),
		CryptoContexts: NewRoot(func() *peer.CryptoContext { return peer.NewCryptoContext() }),
		Buffers: NewRoot(func() *buffer.Buffer {
			return buffer.New(make([]byte, domain.PacketBufferCapacity))
		}),
	}
}

// AcquirePeer returns a Peer ready for reuse, its replay window cleared and
// its state reset to PeerAnonymous.
func (c *Context) AcquirePeer() *peer.Peer {
	p := c.Peers.Acquire()
	p.Reset()
	return p
}

// ReleasePeer returns p to its pool. Callers must not release a peer that
// still has in-flight senders/receivers referencing it.
func (c *Context) ReleasePeer(p *peer.Peer) {
	c.Peers.Release(p)
}

// AcquireCryptoContext returns a CryptoContext with reference count 1 and
// every key zeroed, ready for Install.
func (c *Context) AcquireCryptoContext() *peer.CryptoContext {
	cc := c.CryptoContexts.Acquire()
	cc.Reset()
	return cc
}

// ReleaseCryptoContext decrements cc's reference count and, only once it
// reaches zero, resets and returns it to the pool — a sender/receiver
// worker task that outlived the owning peer may still hold a reference.
func (c *Context) ReleaseCryptoContext(cc *peer.CryptoContext) {
	if cc.Release() {
		cc.Reset()
		c.CryptoContexts.Release(cc)
	}
}

// AcquireSender returns a Sender with its canceled flag cleared.
func (c *Context) AcquireSender() *pipeline.Sender {
	s := c.Senders.Acquire()
	s.Reset()
	return s
}

// ReleaseSender returns s to its pool.
func (c *Context) ReleaseSender(s *pipeline.Sender) {
	c.Senders.Release(s)
}

// AcquireReceiver returns a Receiver with its canceled flag cleared.
func (c *Context) AcquireReceiver() *pipeline.Receiver {
	r := c.Receivers.Acquire()
	r.Reset()
	return r
}

// ReleaseReceiver returns r to its pool.
func (c *Context) ReleaseReceiver(r *pipeline.Receiver) {
	c.Receivers.Release(r)
}

// AcquirePacket returns a zeroed Packet.
func (c *Context) AcquirePacket() *domain.Packet {
	p := c.Packets.Acquire()
	*p = domain.Packet{}
	return p
}

// ReleasePacket returns pkt to its pool.
func (c *Context) ReleasePacket(pkt *domain.Packet) {
	c.Packets.Release(pkt)
}

// AcquireBuffer returns a PacketBufferCapacity-sized Buffer with reference
// count 1, ready to be filled by codec.EncodePacket and handed to a sender.
func (c *Context) AcquireBuffer() *buffer.Buffer {
	b := c.Buffers.Acquire()
	b.Reset()
	return b
}

// ReleaseBuffer drops a reference to b and, only once the count reaches
// zero, returns it to the pool — a worker-pool send task and a cancellation
// path may both hold a reference to the same Buffer.
func (c *Context) ReleaseBuffer(b *buffer.Buffer) {
	if b.Release() {
		c.Buffers.Release(b)
	}
}
