// Package udptransport implements application.Transport over net.UDPConn:
// a concrete datagram transport behind the narrow application.Transport
// interface, supporting both a Connect (client) and Listen (server) mode.
package udptransport

import (
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/pomelo-net/pomelo-go/application"
)

// Transport is a net.UDPConn-backed application.Transport. It reports
// TransportCapability{EncryptsInternally: false}: it moves bytes only, so
// the protocol core applies its own AEAD envelope to every packet.
type Transport struct {
	mu       sync.Mutex
	conn     *net.UDPConn
	handler  application.TransportHandler
	isServer bool
	stopCh   chan struct{} // scoped to the current conn; replaced on every Connect/Listen

	// connectedAddr is set by Connect; a client Transport always sends to
	// it regardless of the addr argument passed to Send. A client socket
	// walking a connect token's address list calls Connect
	// again to rebind to the next address.
	connectedAddr netip.AddrPort

	sendID atomic.Uint64
}

// New returns a Transport ready for Connect or Listen.
func New() *Transport {
	return &Transport{}
}

var _ application.Transport = (*Transport)(nil)

// SetHandler implements application.Transport.
func (t *Transport) SetHandler(h application.TransportHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// Connect binds an unconnected local UDP socket and records addr as the
// destination of every Send, matching a client transport's contract
// (application.Transport: "a client transport ignores addr and uses its
// connected peer"). Received datagrams are handed up with their source
// address and are not filtered against addr. Calling Connect again after a
// prior Connect/Listen closes the old socket and starts a fresh read loop,
// supporting the client's address-rotation retry.
func (t *Transport) Connect(addr netip.AddrPort) error {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	t.rebind(conn, false, addr)
	return nil
}

// Listen binds a UDP socket at addr in server mode: every Send must
// address an explicit peer and every received datagram is handed up with
// its source address.
func (t *Transport) Listen(addr netip.AddrPort) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr.String())
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	t.rebind(conn, true, netip.AddrPort{})
	return nil
}

func (t *Transport) rebind(conn *net.UDPConn, isServer bool, connectedAddr netip.AddrPort) {
	t.mu.Lock()
	if oldConn := t.conn; oldConn != nil {
		_ = oldConn.Close()
	}
	if t.stopCh != nil {
		close(t.stopCh)
	}
	stopCh := make(chan struct{})
	t.stopCh = stopCh
	t.conn = conn
	t.isServer = isServer
	t.connectedAddr = connectedAddr
	t.mu.Unlock()

	go t.readLoop(conn, stopCh)
}

// Stop closes the underlying socket and halts the read loop.
func (t *Transport) Stop() error {
	t.mu.Lock()
	conn := t.conn
	stopCh := t.stopCh
	t.conn = nil
	t.stopCh = nil
	t.mu.Unlock()

	if stopCh != nil {
		select {
		case <-stopCh:
		default:
			close(stopCh)
		}
	}
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Send writes data to addr (server mode) or to the connected peer (client
// mode, addr is ignored). The returned sendID is reported synchronously via
// OnSent before Send returns, since net.UDPConn.WriteToUDPAddrPort
// completes synchronously.
func (t *Transport) Send(addr netip.AddrPort, data []byte) (uint64, error) {
	t.mu.Lock()
	conn := t.conn
	isServer := t.isServer
	target := t.connectedAddr
	handler := t.handler
	t.mu.Unlock()

	if !isServer {
		if target.IsValid() {
			addr = target
		}
	}

	id := t.sendID.Add(1)
	if conn == nil {
		if handler != nil {
			handler.OnSent(id, net.ErrClosed)
		}
		return id, net.ErrClosed
	}
	_, err := conn.WriteToUDPAddrPort(data, addr)
	if handler != nil {
		handler.OnSent(id, err)
	}
	return id, err
}

// Capability implements application.Transport.
func (t *Transport) Capability() application.TransportCapability {
	t.mu.Lock()
	defer t.mu.Unlock()
	return application.TransportCapability{IsServer: t.isServer, EncryptsInternally: false}
}

func (t *Transport) readLoop(conn *net.UDPConn, stopCh chan struct{}) {
	buf := make([]byte, 65535)
	for {
		select {
		case <-stopCh:
			return
		default:
		}
		n, srcAddr, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			select {
			case <-stopCh:
				return
			default:
			}
			continue
		}
		t.mu.Lock()
		handler := t.handler
		t.mu.Unlock()
		if handler == nil || n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		handler.OnReceive(srcAddr, data, false)
	}
}
