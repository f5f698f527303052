package pool

import (
	"testing"

	"github.com/pomelo-net/pomelo-go/domain"
)

func TestContextAcquirePeerIsResetAndReusable(t *testing.T) {
	c := NewContext()
	p := c.AcquirePeer()
	p.SetClientID(9)
	p.State = domain.PeerConnected
	c.ReleasePeer(p)

	p2 := c.AcquirePeer()
	if p2 != p {
		t.Fatal("expected the released peer to be reused")
	}
	if p2.ClientID() != 0 {
		t.Fatalf("expected reset client id, got %d", p2.ClientID())
	}
	if p2.State != domain.PeerAnonymous {
		t.Fatalf("expected reset state PeerAnonymous, got %v", p2.State)
	}
}

func TestContextCryptoContextReleasedOnlyAtZeroRefCount(t *testing.T) {
	c := NewContext()
	cc := c.AcquireCryptoContext()
	cc.Ref() // simulate a second holder (e.g. an in-flight sender)

	c.ReleaseCryptoContext(cc)
	if cc.RefCount() != 1 {
		t.Fatalf("expected ref count 1 after first release, got %d", cc.RefCount())
	}

	cc.ProtocolID = 42
	c.ReleaseCryptoContext(cc)
	if cc.ProtocolID != 0 {
		t.Fatal("expected crypto context to be reset once ref count reached zero")
	}

	cc2 := c.AcquireCryptoContext()
	if cc2 != cc {
		t.Fatal("expected the fully-released crypto context to be reused")
	}
}

func TestContextSenderReceiverResetOnAcquire(t *testing.T) {
	c := NewContext()
	s := c.AcquireSender()
	s.Cancel()
	c.ReleaseSender(s)

	s2 := c.AcquireSender()
	if s2 != s {
		t.Fatal("expected the released sender to be reused")
	}
	if s2.Canceled() {
		t.Fatal("expected reused sender to have canceled flag cleared")
	}

	r := c.AcquireReceiver()
	r.Cancel()
	c.ReleaseReceiver(r)
	r2 := c.AcquireReceiver()
	if r2 != r {
		t.Fatal("expected the released receiver to be reused")
	}
	if r2.Canceled() {
		t.Fatal("expected reused receiver to have canceled flag cleared")
	}
}

func TestContextAcquirePacketIsZeroed(t *testing.T) {
	c := NewContext()
	p := c.AcquirePacket()
	p.ClientID = 7
	p.Payload = []byte("hello")
	c.ReleasePacket(p)

	p2 := c.AcquirePacket()
	if p2.ClientID != 0 || p2.Payload != nil {
		t.Fatal("expected reacquired packet to be zeroed")
	}
}

func TestContextAcquireBufferIsCapacitySizedAndReusable(t *testing.T) {
	c := NewContext()
	b := c.AcquireBuffer()
	if len(b.Data) != domain.PacketBufferCapacity {
		t.Fatalf("expected buffer of length %d, got %d", domain.PacketBufferCapacity, len(b.Data))
	}
	c.ReleaseBuffer(b)

	b2 := c.AcquireBuffer()
	if b2 != b {
		t.Fatal("expected the released buffer to be reused")
	}
	if b2.RefCount() != 1 {
		t.Fatalf("expected reset ref count 1, got %d", b2.RefCount())
	}
}

func TestContextReleaseBufferReturnedOnlyAtZeroRefCount(t *testing.T) {
	c := NewContext()
	b := c.AcquireBuffer()
	b.Ref() // simulate a second holder

	c.ReleaseBuffer(b)
	if b.RefCount() != 1 {
		t.Fatalf("expected ref count 1 after first release, got %d", b.RefCount())
	}

	c.ReleaseBuffer(b)
	b2 := c.AcquireBuffer()
	if b2 != b {
		t.Fatal("expected the fully-released buffer to be reused")
	}
}
