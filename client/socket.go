// Package client implements the client-side connection state machine:
// decode a connect token, walk its address list on failure, drive the
// REQUEST/RESPONSE/KEEP_ALIVE/DISCONNECT emitters, and surface connection
// lifecycle events to application.DeliveryLayer. Laid out as a single
// top-level Socket type owning the connection's state plus its transport
// and worker-pool collaborators.
package client

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/pomelo-net/pomelo-go/application"
	"github.com/pomelo-net/pomelo-go/domain"
	"github.com/pomelo-net/pomelo-go/infrastructure/codec"
	"github.com/pomelo-net/pomelo-go/infrastructure/emitter"
	"github.com/pomelo-net/pomelo-go/infrastructure/metrics"
	"github.com/pomelo-net/pomelo-go/infrastructure/peer"
	"github.com/pomelo-net/pomelo-go/infrastructure/pipeline"
	"github.com/pomelo-net/pomelo-go/infrastructure/pool"
	"github.com/pomelo-net/pomelo-go/infrastructure/token"
)

// Socket is the client-side connection to one server. It owns exactly one
// peer.Peer: the server as seen from this host.
type Socket struct {
	cfg        domain.ClientConfig
	transport  application.Transport
	sequencer  application.Sequencer
	workerPool application.WorkerPool
	ctx        *pool.Context
	delivery   application.DeliveryLayer
	logger     application.Logger
	metrics    *metrics.Socket

	token            domain.ConnectToken
	encryptedPrivate [domain.ConnectTokenPrivateBytes]byte
	addressIndex     int

	peer  *peer.Peer
	state domain.ClientState

	challengeToken [domain.ChallengeTokenBytes]byte

	requestEmitter    *emitter.Emitter
	responseEmitter   *emitter.Emitter
	keepAliveEmitter  *emitter.Emitter
	disconnectEmitter *emitter.Emitter

	stopped bool
}

var _ application.TransportHandler = (*Socket)(nil)

// New constructs a client Socket. logger and m may be nil.
func New(
	cfg domain.ClientConfig,
	transport application.Transport,
	sequencer application.Sequencer,
	workerPool application.WorkerPool,
	ctx *pool.Context,
	delivery application.DeliveryLayer,
	logger application.Logger,
	m *metrics.Socket,
) *Socket {
	return &Socket{
		cfg:        cfg,
		transport:  transport,
		sequencer:  sequencer,
		workerPool: workerPool,
		ctx:        ctx,
		delivery:   delivery,
		logger:     logger,
		metrics:    m,
		state:      domain.ClientDisconnected,
	}
}

// State reports the socket's current position in the client state machine.
func (s *Socket) State() domain.ClientState { return s.state }

// Peer returns the socket's single peer (the server), or nil before Start
// has run.
func (s *Socket) Peer() *peer.Peer { return s.peer }

// Start decodes the connect token, validates it, and begins the handshake.
// An invalid or expired token returns an error and leaves the socket in a
// terminal state (InvalidConnectToken or ConnectTokenExpired); Start must
// not be called again. A failed transport Connect also returns an error,
// with the state left unchanged.
func (s *Socket) Start() error {
	publicToken, encPrivate, err := token.DecodeConnectTokenPublic(s.cfg.ConnectToken[:])
	if err != nil {
		s.state = domain.ClientInvalidConnectToken
		return fmt.Errorf("pomelo: decode connect token: %w", domain.ErrTokenInvalid)
	}
	if len(publicToken.Private.ServerAddresses) == 0 {
		s.state = domain.ClientInvalidConnectToken
		return fmt.Errorf("pomelo: connect token has no server addresses: %w", domain.ErrTokenInvalid)
	}
	if publicToken.Expired(time.Now().Unix()) {
		s.state = domain.ClientConnectTokenExpired
		return fmt.Errorf("pomelo: %w", domain.ErrTokenExpired)
	}

	s.token = publicToken
	s.encryptedPrivate = encPrivate

	s.peer = s.ctx.AcquirePeer()
	crypto := s.ctx.AcquireCryptoContext()
	crypto.Install(publicToken.ProtocolID, publicToken.Private.ClientToServerKey, publicToken.Private.ServerToClientKey)
	s.peer.Crypto = crypto
	s.peer.State = domain.PeerRequesting
	s.peer.CreatedAt = time.Now()
	s.peer.LastRecvTime = time.Now()
	if publicToken.Private.TimeoutSeconds > 0 {
		s.peer.Timeout = time.Duration(publicToken.Private.TimeoutSeconds) * time.Second
	}

	s.addressIndex = 0
	s.transport.SetHandler(s)
	addr := publicToken.Private.ServerAddresses[0]
	s.peer.SetAddress(addr)
	if err := s.transport.Connect(addr); err != nil {
		return fmt.Errorf("pomelo: connect transport: %w", err)
	}

	s.state = domain.ClientRequest
	s.startRequestEmitter()
	return nil
}

// Disconnect begins a graceful client-initiated disconnect: it
// is a no-op unless the socket is Connected.
func (s *Socket) Disconnect() {
	s.sequencer.Submit(func() { s.beginDisconnecting() })
}

// Stop halts the socket immediately: emitters and transport are stopped and
// the peer is released. The worker pool is left running.
func (s *Socket) Stop() {
	s.sequencer.Submit(s.stopSocket)
}

func (s *Socket) beginDisconnecting() {
	if s.state != domain.ClientConnected {
		return
	}
	s.stopEmitters()
	s.state = domain.ClientDisconnecting
	s.delivery.OnDisconnected(s.peer)
	s.disconnectEmitter = emitter.New(s.sequencer, domain.DefaultTiming().EmitterInterval).
		WithLimit(domain.DisconnectRedundantSends)
	s.disconnectEmitter.Start(s.sendDisconnect, s.stopSocket, nil)
}

func (s *Socket) stopEmitters() {
	for _, e := range []*emitter.Emitter{s.requestEmitter, s.responseEmitter, s.keepAliveEmitter, s.disconnectEmitter} {
		if e != nil {
			e.Stop()
		}
	}
}

// stopSocket releases the peer and its crypto context and stops the
// emitters and transport; the worker pool is left running. Idempotent: the
// stopped flag makes every later call return at once.
func (s *Socket) stopSocket() {
	if s.stopped {
		return
	}
	s.stopped = true
	s.stopEmitters()
	_ = s.transport.Stop()
	if s.peer != nil {
		if s.peer.Crypto != nil {
			s.ctx.ReleaseCryptoContext(s.peer.Crypto)
			s.peer.Crypto = nil
		}
		s.ctx.ReleasePeer(s.peer)
		s.peer = nil
	}
}

func (s *Socket) startRequestEmitter() {
	s.requestEmitter = emitter.New(s.sequencer, domain.DefaultTiming().EmitterInterval)
	if s.peer.Timeout > 0 {
		s.requestEmitter = s.requestEmitter.WithTimeout(s.peer.Timeout)
	}
	s.requestEmitter.Start(s.sendRequest, nil, s.onRequestTimeout)
}

func (s *Socket) startResponseEmitter() {
	s.responseEmitter = emitter.New(s.sequencer, domain.DefaultTiming().EmitterInterval)
	s.responseEmitter.Start(s.sendResponse, nil, nil)
}

func (s *Socket) startKeepAliveEmitter() {
	s.keepAliveEmitter = emitter.New(s.sequencer, domain.DefaultTiming().KeepAliveInterval)
	s.keepAliveEmitter.Start(s.onKeepAliveTick, nil, nil)
}

func (s *Socket) onRequestTimeout() {
	if s.state != domain.ClientRequest {
		return
	}
	s.state = domain.ClientRequestTimedOut
	s.rotateAddressOrTerminal(domain.ConnectTimedOut)
}

// rotateAddressOrTerminal implements the address-rotation logic shared by
// DENIED and REQUEST-timeout handling.
func (s *Socket) rotateAddressOrTerminal(terminal domain.ConnectResult) {
	s.stopEmitters()
	s.addressIndex++
	addrs := s.token.Private.ServerAddresses
	if s.addressIndex >= len(addrs) {
		s.delivery.OnConnectResult(terminal)
		s.stopSocket()
		return
	}
	addr := addrs[s.addressIndex]
	if err := s.transport.Connect(addr); err != nil {
		s.delivery.OnConnectResult(terminal)
		s.stopSocket()
		return
	}
	s.peer.SetAddress(addr)
	s.state = domain.ClientRequest
	s.startRequestEmitter()
}

func (s *Socket) sendRequest() {
	pkt := domain.Packet{
		Header:          domain.Header{Kind: domain.PacketRequest},
		ProtocolID:      s.token.ProtocolID,
		CreateTimestamp: s.token.CreateTimestamp,
		ExpireTimestamp: s.token.ExpireTimestamp,
		TokenNonce:      s.token.Nonce,
		TokenPrivate:    s.encryptedPrivate,
	}
	s.send(pkt)
}

func (s *Socket) sendResponse() {
	pkt := domain.Packet{
		Header:         domain.Header{Kind: domain.PacketResponse, Sequence: s.peer.NextOutboundSequence()},
		TokenSequence:  s.peer.ChallengeSequence,
		ChallengeToken: s.challengeToken,
	}
	s.send(pkt)
}

func (s *Socket) onKeepAliveTick() {
	if s.state != domain.ClientConnected {
		return
	}
	now := time.Now()
	if s.peer.Timeout > 0 && now.Sub(s.peer.LastRecvTime) > s.peer.Timeout {
		s.state = domain.ClientTimedOut
		s.stopEmitters()
		s.delivery.OnDisconnected(s.peer)
		s.stopSocket()
		return
	}
	pkt := domain.Packet{
		Header:   domain.Header{Kind: domain.PacketKeepAlive, Sequence: s.peer.NextOutboundSequence()},
		ClientID: s.peer.ClientID(),
	}
	s.send(pkt)
}

// SendPayload wraps payload as a PAYLOAD packet to the server, matching
// application.DeliveryLayer.PeerSend's contract that the core performs the
// wrapping. A no-op outside the Connected state. Safe to call
// from any goroutine; the actual send is serialized onto the sequencer.
func (s *Socket) SendPayload(payload []byte) {
	s.sequencer.Submit(func() {
		if s.state != domain.ClientConnected || s.peer == nil {
			return
		}
		pkt := domain.Packet{
			Header:  domain.Header{Kind: domain.PacketPayload, Sequence: s.peer.NextOutboundSequence()},
			Payload: payload,
		}
		s.send(pkt)
	})
}

func (s *Socket) sendDisconnect() {
	if s.peer == nil {
		return
	}
	pkt := domain.Packet{Header: domain.Header{Kind: domain.PacketDisconnect, Sequence: s.peer.NextOutboundSequence()}}
	s.send(pkt)
}

func (s *Socket) send(pkt domain.Packet) {
	if s.peer == nil || s.peer.Crypto == nil {
		return
	}
	expensive := pipeline.ExpensiveSend(pkt.Header.Kind)
	sender := s.ctx.AcquireSender()
	buf := s.ctx.AcquireBuffer()
	key := &s.peer.Crypto.EncryptKey
	addr := s.peer.Address()
	protocolID := s.token.ProtocolID
	pipeline.Send(s.workerPool, s.transport, addr, pkt, key, protocolID, buf.Data, expensive, sender, func(n int, err error) {
		s.ctx.ReleaseSender(sender)
		s.ctx.ReleaseBuffer(buf)
		if err != nil && s.logger != nil {
			s.logger.Printf("pomelo: client send %s failed: %v", pkt.Header.Kind, err)
		}
	})
}

// OnReceive implements application.TransportHandler. It is invoked on the
// transport's own goroutine, so handling is resubmitted through the
// sequencer to keep every state transition on one thread.
func (s *Socket) OnReceive(addr netip.AddrPort, data []byte, encrypted bool) {
	s.sequencer.Submit(func() { s.handleReceive(addr, data) })
}

// OnSent implements application.TransportHandler. Send outcomes are already
// observed synchronously via the sender pipeline's completion callback;
// this is an additional, best-effort diagnostic path for transports that
// report asynchronously.
func (s *Socket) OnSent(sendID uint64, err error) {
	if err != nil && s.logger != nil {
		s.logger.Printf("pomelo: client transport send %d failed: %v", sendID, err)
	}
}

func (s *Socket) handleReceive(addr netip.AddrPort, data []byte) {
	if s.stopped || s.peer == nil {
		return
	}
	// Only packets from the currently connected server address are
	// considered.
	if addr != s.peer.Address() {
		s.recordInvalid(len(data))
		return
	}

	header, _, err := codec.DecodeHeader(data)
	if err != nil {
		s.recordInvalid(len(data))
		return
	}
	if !s.packetLegalForState(header.Kind) {
		s.recordInvalid(len(data))
		return
	}
	if header.Kind.UsesReplayProtection() {
		if !s.peer.Replay.Accept(header.Sequence) {
			s.recordInvalid(len(data))
			return
		}
	}

	expensive := pipeline.ExpensiveReceive(header.Kind)
	receiver := s.ctx.AcquireReceiver()
	key := &s.peer.Crypto.DecryptKey
	protocolID := s.token.ProtocolID
	dataLen := len(data)
	pipeline.Receive(s.workerPool, data, key, protocolID, expensive, receiver, func(pkt domain.Packet, err error) {
		s.ctx.ReleaseReceiver(receiver)
		if s.stopped || s.peer == nil {
			return
		}
		if err != nil {
			s.recordInvalid(dataLen)
			return
		}
		s.recordValid(dataLen)
		s.peer.LastRecvTime = time.Now()
		s.dispatch(pkt)
	})
}

func (s *Socket) packetLegalForState(kind domain.PacketKind) bool {
	switch kind {
	case domain.PacketDenied:
		return s.state == domain.ClientRequest || s.state == domain.ClientResponse
	case domain.PacketChallenge:
		return s.state == domain.ClientRequest
	case domain.PacketKeepAlive:
		return s.state == domain.ClientResponse || s.state == domain.ClientConnected
	case domain.PacketPayload:
		return s.state == domain.ClientConnected
	case domain.PacketDisconnect:
		return s.state == domain.ClientConnected
	default:
		return false
	}
}

func (s *Socket) dispatch(pkt domain.Packet) {
	switch pkt.Header.Kind {
	case domain.PacketDenied:
		s.onDenied()
	case domain.PacketChallenge:
		s.onChallenge(pkt)
	case domain.PacketKeepAlive:
		s.onKeepAlive(pkt)
	case domain.PacketPayload:
		s.delivery.OnReceived(s.peer, pkt.Payload)
	case domain.PacketDisconnect:
		s.onDisconnectFromServer()
	}
}

func (s *Socket) onDenied() {
	s.rotateAddressOrTerminal(domain.ConnectDenied)
}

func (s *Socket) onChallenge(pkt domain.Packet) {
	if s.state != domain.ClientRequest {
		return
	}
	s.peer.ChallengeSequence = pkt.TokenSequence
	s.challengeToken = pkt.ChallengeToken
	if s.requestEmitter != nil {
		s.requestEmitter.Stop()
	}
	s.state = domain.ClientResponse
	s.startResponseEmitter()
}

func (s *Socket) onKeepAlive(pkt domain.Packet) {
	switch s.state {
	case domain.ClientResponse:
		s.peer.SetClientID(pkt.ClientID)
		if s.responseEmitter != nil {
			s.responseEmitter.Stop()
		}
		s.state = domain.ClientConnected
		s.peer.State = domain.PeerConnected
		s.startKeepAliveEmitter()
		s.delivery.OnConnectResult(domain.ConnectSuccess)
		s.delivery.OnConnected(s.peer)
	case domain.ClientConnected:
		// Regular keep-alive: last_recv_time already updated by the caller.
	}
}

func (s *Socket) onDisconnectFromServer() {
	s.state = domain.ClientDisconnected
	s.delivery.OnDisconnected(s.peer)
	s.stopSocket()
}

func (s *Socket) recordValid(n int) {
	if s.metrics != nil {
		s.metrics.RecordValid(n)
	}
}

func (s *Socket) recordInvalid(n int) {
	if s.metrics != nil {
		s.metrics.RecordInvalid(n)
	}
}
