package udptransport

import (
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"
)

type recordingHandler struct {
	mu       sync.Mutex
	received [][]byte
	addrs    []netip.AddrPort
	sent     []struct {
		id  uint64
		err error
	}
}

func (h *recordingHandler) OnReceive(addr netip.AddrPort, data []byte, encrypted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := append([]byte(nil), data...)
	h.received = append(h.received, cp)
	h.addrs = append(h.addrs, addr)
}

func (h *recordingHandler) OnSent(sendID uint64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, struct {
		id  uint64
		err error
	}{sendID, err})
}

func (h *recordingHandler) waitForReceive(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		got := len(h.received)
		h.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d datagrams", n)
}

func localAddrPort(conn *net.UDPConn) netip.AddrPort {
	a := conn.LocalAddr().(*net.UDPAddr)
	ip, _ := netip.AddrFromSlice(a.IP.To4())
	return netip.AddrPortFrom(ip, uint16(a.Port))
}

func TestClientServerRoundTrip(t *testing.T) {
	server := New()
	serverHandler := &recordingHandler{}
	server.SetHandler(serverHandler)
	if err := server.Listen(netip.MustParseAddrPort("127.0.0.1:0")); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer server.Stop()
	serverAddr := localAddrPort(server.conn)

	client := New()
	clientHandler := &recordingHandler{}
	client.SetHandler(clientHandler)
	if err := client.Connect(serverAddr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Stop()

	if _, err := client.Send(netip.AddrPort{}, []byte("hello")); err != nil {
		t.Fatalf("client Send: %v", err)
	}
	serverHandler.waitForReceive(t, 1)

	serverHandler.mu.Lock()
	got := string(serverHandler.received[0])
	fromAddr := serverHandler.addrs[0]
	serverHandler.mu.Unlock()
	if got != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}

	if _, err := server.Send(fromAddr, []byte("world")); err != nil {
		t.Fatalf("server Send: %v", err)
	}
	clientHandler.waitForReceive(t, 1)
	clientHandler.mu.Lock()
	gotClient := string(clientHandler.received[0])
	clientHandler.mu.Unlock()
	if gotClient != "world" {
		t.Fatalf("expected %q, got %q", "world", gotClient)
	}
}

func TestCapabilityReportsServerAndNoInternalEncryption(t *testing.T) {
	server := New()
	server.SetHandler(&recordingHandler{})
	if err := server.Listen(netip.MustParseAddrPort("127.0.0.1:0")); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer server.Stop()

	cap := server.Capability()
	if !cap.IsServer {
		t.Fatal("expected IsServer true for a Listen-bound transport")
	}
	if cap.EncryptsInternally {
		t.Fatal("expected EncryptsInternally false: udptransport moves bytes only")
	}
}

func TestStopHaltsReadLoop(t *testing.T) {
	server := New()
	server.SetHandler(&recordingHandler{})
	if err := server.Listen(netip.MustParseAddrPort("127.0.0.1:0")); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// A second Stop must not panic or block.
	_ = server.Stop()
}
