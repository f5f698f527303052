// Package server implements the server-side peer lifecycle: bind, accept
// REQUESTs, issue CHALLENGEs, promote peers through
// Challenging/Unconfirmed/Connected, broadcast keep-alives, drive
// client- and server-initiated disconnects, and scan for abandoned
// anonymous peers. Laid out as a top-level package, same as client, owning
// many peers instead of client.Socket's one.
package server

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/pomelo-net/pomelo-go/application"
	"github.com/pomelo-net/pomelo-go/domain"
	"github.com/pomelo-net/pomelo-go/infrastructure/codec"
	"github.com/pomelo-net/pomelo-go/infrastructure/cryptography"
	"github.com/pomelo-net/pomelo-go/infrastructure/emitter"
	"github.com/pomelo-net/pomelo-go/infrastructure/metrics"
	"github.com/pomelo-net/pomelo-go/infrastructure/peer"
	"github.com/pomelo-net/pomelo-go/infrastructure/pipeline"
	"github.com/pomelo-net/pomelo-go/infrastructure/pool"
	"github.com/pomelo-net/pomelo-go/infrastructure/token"
)

// Socket is the server-side listener: it owns every peer connected (or
// connecting) to it, keyed both by address and, once a RESPONSE is
// accepted, by server-assigned client id.
type Socket struct {
	cfg        domain.ServerConfig
	transport  application.Transport
	sequencer  application.Sequencer
	workerPool application.WorkerPool
	ctx        *pool.Context
	delivery   application.DeliveryLayer
	logger     application.Logger
	metrics    *metrics.Socket

	challengeKey [32]byte
	challengeSeq uint64

	// anonymous holds peers in Requesting/Challenging, keyed by source
	// address.
	anonymous map[netip.AddrPort]*peer.Peer
	// connectedByAddr and byClientID both hold Unconfirmed/Connected peers;
	// a peer is promoted into both maps atomically on a successful RESPONSE
	// and removed from both on disconnect.
	connectedByAddr map[netip.AddrPort]*peer.Peer
	byClientID      map[uint64]*peer.Peer
	disconnecting   []*peer.Peer

	keepAliveEmitter     *emitter.Emitter
	anonymousScanEmitter *emitter.Emitter
	disconnectEmitter    *emitter.Emitter

	stopped bool
}

var _ application.TransportHandler = (*Socket)(nil)

// New constructs a server Socket. logger and m may be nil.
func New(
	cfg domain.ServerConfig,
	transport application.Transport,
	sequencer application.Sequencer,
	workerPool application.WorkerPool,
	ctx *pool.Context,
	delivery application.DeliveryLayer,
	logger application.Logger,
	m *metrics.Socket,
) *Socket {
	return &Socket{
		cfg:             cfg,
		transport:       transport,
		sequencer:       sequencer,
		workerPool:      workerPool,
		ctx:             ctx,
		delivery:        delivery,
		logger:          logger,
		metrics:         m,
		anonymous:       make(map[netip.AddrPort]*peer.Peer),
		connectedByAddr: make(map[netip.AddrPort]*peer.Peer),
		byClientID:      make(map[uint64]*peer.Peer),
	}
}

// ConnectedCount reports the number of peers in Unconfirmed or Connected.
func (s *Socket) ConnectedCount() int { return len(s.connectedByAddr) }

// AnonymousCount reports the number of peers in Requesting or Challenging.
func (s *Socket) AnonymousCount() int { return len(s.anonymous) }

// Peer looks up a connected peer by its server-assigned client id.
func (s *Socket) Peer(clientID uint64) (*peer.Peer, bool) {
	p, ok := s.byClientID[clientID]
	return p, ok
}

// Start generates a fresh per-run challenge key, binds the transport and
// schedules the keep-alive broadcast, the disconnect broadcast and the
// anonymous-peer expiry scan.
func (s *Socket) Start() error {
	if err := cryptography.RandomBytes(s.challengeKey[:]); err != nil {
		return fmt.Errorf("pomelo: generate challenge key: %w", err)
	}
	addr, err := netip.ParseAddrPort(s.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("pomelo: parse bind address: %w", err)
	}
	s.transport.SetHandler(s)
	if err := s.transport.Listen(addr); err != nil {
		return fmt.Errorf("pomelo: listen: %w", err)
	}

	timing := domain.DefaultTiming()
	s.keepAliveEmitter = emitter.New(s.sequencer, timing.KeepAliveInterval)
	s.keepAliveEmitter.Start(s.keepAliveBroadcastTick, nil, nil)

	s.anonymousScanEmitter = emitter.New(s.sequencer, timing.AnonymousScanInterval)
	s.anonymousScanEmitter.Start(s.anonymousScanTick, nil, nil)

	s.disconnectEmitter = emitter.New(s.sequencer, timing.EmitterInterval)
	s.disconnectEmitter.Start(s.disconnectBroadcastTick, nil, nil)
	return nil
}

// Stop halts the socket: emitters, transport, every peer released.
func (s *Socket) Stop() {
	s.sequencer.Submit(s.stopSocket)
}

// stopSocket is idempotent by construction.
func (s *Socket) stopSocket() {
	if s.stopped {
		return
	}
	s.stopped = true
	for _, e := range []*emitter.Emitter{s.keepAliveEmitter, s.anonymousScanEmitter, s.disconnectEmitter} {
		if e != nil {
			e.Stop()
		}
	}
	_ = s.transport.Stop()
	for _, p := range s.connectedByAddr {
		s.releasePeer(p)
	}
	for _, p := range s.anonymous {
		s.releasePeer(p)
	}
	for _, p := range s.disconnecting {
		s.releasePeer(p)
	}
	s.connectedByAddr = make(map[netip.AddrPort]*peer.Peer)
	s.byClientID = make(map[uint64]*peer.Peer)
	s.anonymous = make(map[netip.AddrPort]*peer.Peer)
	s.disconnecting = nil
}

// Disconnect begins a server-initiated disconnect of the peer identified by
// clientID. A no-op if clientID
// is not connected.
func (s *Socket) Disconnect(clientID uint64) {
	s.sequencer.Submit(func() { s.beginDisconnectingPeer(clientID) })
}

func (s *Socket) beginDisconnectingPeer(clientID uint64) {
	p, ok := s.byClientID[clientID]
	if !ok {
		return
	}
	s.removeConnected(p)
	p.State = domain.PeerDisconnecting
	p.DisconnectingRemaining = domain.DisconnectRedundantSends
	s.disconnecting = append(s.disconnecting, p)
	s.delivery.OnDisconnected(p)
	s.refreshGauges()
}

// SendPayload wraps payload as a PAYLOAD packet to the peer identified by
// clientID, matching application.DeliveryLayer.PeerSend's contract that the
// core performs the wrapping. Safe to call from any goroutine; the actual
// send is serialized onto the sequencer.
func (s *Socket) SendPayload(clientID uint64, payload []byte) {
	s.sequencer.Submit(func() {
		p, ok := s.byClientID[clientID]
		if !ok {
			return
		}
		pkt := domain.Packet{
			Header:  domain.Header{Kind: domain.PacketPayload, Sequence: p.NextOutboundSequence()},
			Payload: payload,
		}
		s.send(p.Address(), pkt, p.Crypto.EncryptKey, nil)
	})
}

// OnReceive implements application.TransportHandler. Invoked on the
// transport's own goroutine; resubmitted through the sequencer to keep
// every peer/socket state transition on one thread.
func (s *Socket) OnReceive(addr netip.AddrPort, data []byte, encrypted bool) {
	s.sequencer.Submit(func() { s.handleReceive(addr, data) })
}

// OnSent implements application.TransportHandler as a best-effort
// diagnostic path; send outcomes are already observed via the sender
// pipeline's completion callback.
func (s *Socket) OnSent(sendID uint64, err error) {
	if err != nil && s.logger != nil {
		s.logger.Printf("pomelo: server transport send %d failed: %v", sendID, err)
	}
}

func (s *Socket) handleReceive(addr netip.AddrPort, data []byte) {
	if s.stopped {
		return
	}
	header, _, err := codec.DecodeHeader(data)
	if err != nil {
		s.recordInvalid(len(data))
		return
	}
	if header.Kind == domain.PacketRequest {
		s.handleRequest(addr, data)
		return
	}

	p, state := s.lookupPeer(addr)
	if p == nil {
		s.recordInvalid(len(data))
		return
	}
	if !packetLegalForPeerState(state, header.Kind) {
		s.recordInvalid(len(data))
		return
	}
	if header.Kind.UsesReplayProtection() {
		if !p.Replay.Accept(header.Sequence) {
			s.recordInvalid(len(data))
			return
		}
	}
	if header.Kind == domain.PacketResponse {
		if !p.TryBeginProcessingResponse() {
			s.recordInvalid(len(data))
			return
		}
	}

	expensive := pipeline.ExpensiveReceive(header.Kind)
	receiver := s.ctx.AcquireReceiver()
	key := p.Crypto.DecryptKey
	protocolID := s.cfg.ProtocolID
	dataLen := len(data)
	pipeline.Receive(s.workerPool, data, &key, protocolID, expensive, receiver, func(pkt domain.Packet, err error) {
		s.ctx.ReleaseReceiver(receiver)
		if header.Kind == domain.PacketResponse {
			p.EndProcessingResponse()
		}
		if s.stopped {
			return
		}
		if err != nil {
			s.recordInvalid(dataLen)
			return
		}
		s.recordValid(dataLen)
		p.LastRecvTime = time.Now()
		s.dispatch(addr, p, pkt)
	})
}

func (s *Socket) lookupPeer(addr netip.AddrPort) (*peer.Peer, domain.PeerState) {
	if p, ok := s.connectedByAddr[addr]; ok {
		return p, p.State
	}
	if p, ok := s.anonymous[addr]; ok {
		return p, p.State
	}
	return nil, domain.PeerAnonymous
}

func packetLegalForPeerState(state domain.PeerState, kind domain.PacketKind) bool {
	switch kind {
	case domain.PacketResponse:
		return state == domain.PeerChallenging
	case domain.PacketKeepAlive, domain.PacketPayload, domain.PacketDisconnect:
		return state == domain.PeerUnconfirmed || state == domain.PeerConnected
	default:
		return false
	}
}

func (s *Socket) dispatch(addr netip.AddrPort, p *peer.Peer, pkt domain.Packet) {
	switch pkt.Header.Kind {
	case domain.PacketResponse:
		s.onResponse(addr, p, pkt)
	case domain.PacketKeepAlive:
		s.onKeepAlive(p, pkt)
	case domain.PacketPayload:
		s.delivery.OnReceived(p, pkt.Payload)
	case domain.PacketDisconnect:
		s.onDisconnectFromClient(p)
	}
}

// handleRequest handles an incoming REQUEST: cheap checks inline, then the
// private-section decrypt (token crypto, genuinely expensive) offloaded to
// the worker pool.
func (s *Socket) handleRequest(addr netip.AddrPort, data []byte) {
	pkt, _, err := codec.DecodePacket(data, nil, 0)
	if err != nil {
		s.recordInvalid(len(data))
		return
	}
	if pkt.ProtocolID != s.cfg.ProtocolID {
		s.recordInvalid(len(data))
		return
	}

	now := time.Now()
	dataLen := len(data)
	privateKey := s.cfg.PrivateKey
	s.workerPool.SubmitWorker(func() (any, error) {
		return token.DecryptConnectTokenPrivate(pkt.TokenPrivate[:], &pkt.TokenNonce, pkt.ProtocolID, pkt.ExpireTimestamp, &privateKey)
	}, func(result any, err error) {
		if s.stopped {
			return
		}
		if err != nil {
			s.recordInvalid(dataLen)
			s.dropAnonymous(addr)
			return
		}
		s.recordValid(dataLen)
		s.onValidRequest(addr, pkt, result.(domain.ConnectTokenPrivate), now)
	})
}

func (s *Socket) onValidRequest(addr netip.AddrPort, pkt domain.Packet, priv domain.ConnectTokenPrivate, now time.Time) {
	if pkt.ExpireTimestamp <= now.Unix() {
		s.dropAnonymous(addr)
		return
	}
	if _, exists := s.byClientID[priv.ClientID]; exists {
		s.dropAnonymous(addr)
		return
	}
	if len(s.connectedByAddr) >= s.cfg.MaxClients {
		s.sendDenied(addr, priv.ServerToClientKey)
		return
	}

	p := s.acquireOrReuseAnonymous(addr, now)
	crypto := s.ctx.AcquireCryptoContext()
	crypto.Install(pkt.ProtocolID, priv.ServerToClientKey, priv.ClientToServerKey)
	p.Crypto = crypto
	p.SetAddress(addr)
	p.State = domain.PeerChallenging
	p.LastRecvTime = now
	if priv.TimeoutSeconds > 0 {
		p.Timeout = time.Duration(priv.TimeoutSeconds) * time.Second
	}
	s.sendChallenge(p, priv.ClientID)
	s.refreshGauges()
}

// acquireOrReuseAnonymous returns the anonymous peer already tracked for
// addr (refreshing its creation time, so a retransmitted REQUEST does not
// leak a second pool slot) or acquires a fresh one.
func (s *Socket) acquireOrReuseAnonymous(addr netip.AddrPort, now time.Time) *peer.Peer {
	if p, ok := s.anonymous[addr]; ok {
		if p.Crypto != nil {
			s.ctx.ReleaseCryptoContext(p.Crypto)
			p.Crypto = nil
		}
		p.CreatedAt = now
		return p
	}
	p := s.ctx.AcquirePeer()
	p.State = domain.PeerRequesting
	p.CreatedAt = now
	s.anonymous[addr] = p
	return p
}

func (s *Socket) dropAnonymous(addr netip.AddrPort) {
	p, ok := s.anonymous[addr]
	if !ok {
		return
	}
	delete(s.anonymous, addr)
	s.releasePeer(p)
	s.refreshGauges()
}

func (s *Socket) sendChallenge(p *peer.Peer, clientID uint64) {
	seq := s.nextChallengeSequence()
	buf := make([]byte, domain.ChallengeTokenBytes)
	n, err := token.EncryptChallengeToken(buf, &domain.ChallengeToken{ClientID: clientID}, &s.challengeKey, seq)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("pomelo: encrypt challenge token: %v", err)
		}
		return
	}
	var challengeToken [domain.ChallengeTokenBytes]byte
	copy(challengeToken[:], buf[:n])

	p.ChallengeSequence = seq
	pkt := domain.Packet{
		Header:         domain.Header{Kind: domain.PacketChallenge, Sequence: p.NextOutboundSequence()},
		TokenSequence:  seq,
		ChallengeToken: challengeToken,
	}
	s.send(p.Address(), pkt, p.Crypto.EncryptKey, nil)
}

func (s *Socket) nextChallengeSequence() uint64 {
	s.challengeSeq++
	return s.challengeSeq
}

// sendDenied seals a DENIED under the connect token's server->client key —
// the rejected REQUEST never gets an installed crypto context, so the one-off key decrypted
// straight from the token is used instead. after runs once the send
// completes, per "peer is removed when DENIED send completes".
func (s *Socket) sendDenied(addr netip.AddrPort, key [32]byte) {
	pkt := domain.Packet{Header: domain.Header{Kind: domain.PacketDenied}}
	s.send(addr, pkt, key, func() { s.dropAnonymous(addr) })
}

func (s *Socket) onResponse(addr netip.AddrPort, p *peer.Peer, pkt domain.Packet) {
	if p.State != domain.PeerChallenging {
		return
	}
	ct, err := token.DecryptChallengeToken(pkt.ChallengeToken[:], &s.challengeKey, pkt.TokenSequence)
	if err != nil {
		return
	}
	if _, exists := s.byClientID[ct.ClientID]; exists {
		return
	}

	delete(s.anonymous, addr)
	p.SetClientID(ct.ClientID)
	p.State = domain.PeerUnconfirmed
	s.connectedByAddr[addr] = p
	s.byClientID[ct.ClientID] = p

	s.sendKeepAlive(p)
	s.delivery.OnConnected(p)
	s.refreshGauges()
}

func (s *Socket) onKeepAlive(p *peer.Peer, pkt domain.Packet) {
	if pkt.ClientID != p.ClientID() {
		return
	}
	if p.State == domain.PeerUnconfirmed {
		p.State = domain.PeerConnected
	}
}

func (s *Socket) onDisconnectFromClient(p *peer.Peer) {
	s.removeConnected(p)
	p.State = domain.PeerDisconnected
	s.delivery.OnDisconnected(p)
	s.releasePeer(p)
	s.refreshGauges()
}

func (s *Socket) sendKeepAlive(p *peer.Peer) {
	pkt := domain.Packet{
		Header:   domain.Header{Kind: domain.PacketKeepAlive, Sequence: p.NextOutboundSequence()},
		ClientID: p.ClientID(),
	}
	s.send(p.Address(), pkt, p.Crypto.EncryptKey, nil)
}

// keepAliveBroadcastTick implements the 10 Hz keep-alive broadcast (spec
// §4.7): every Unconfirmed/Connected peer either times out or gets a fresh
// KEEP_ALIVE.
func (s *Socket) keepAliveBroadcastTick() {
	now := time.Now()
	for _, p := range s.connectedByAddr {
		if p.Timeout > 0 && now.Sub(p.LastRecvTime) > p.Timeout {
			s.removeConnected(p)
			s.delivery.OnDisconnected(p)
			s.releasePeer(p)
			continue
		}
		s.sendKeepAlive(p)
	}
	s.refreshGauges()
}

// anonymousScanTick releases any anonymous peer older than
// domain.AnonymousPeerExpiry, using an explicit created_at comparison
// rather than relying on map/list iteration order.
func (s *Socket) anonymousScanTick() {
	now := time.Now()
	for addr, p := range s.anonymous {
		if now.Sub(p.CreatedAt) > domain.AnonymousPeerExpiry {
			delete(s.anonymous, addr)
			s.releasePeer(p)
		}
	}
	s.refreshGauges()
}

// disconnectBroadcastTick emits one DISCONNECT per disconnecting peer per
// tick until its redundant-send budget is exhausted, then releases it.
func (s *Socket) disconnectBroadcastTick() {
	remaining := s.disconnecting[:0]
	for _, p := range s.disconnecting {
		pkt := domain.Packet{Header: domain.Header{Kind: domain.PacketDisconnect, Sequence: p.NextOutboundSequence()}}
		s.send(p.Address(), pkt, p.Crypto.EncryptKey, nil)
		p.DisconnectingRemaining--
		if p.DisconnectingRemaining > 0 {
			remaining = append(remaining, p)
		} else {
			s.releasePeer(p)
		}
	}
	s.disconnecting = remaining
}

func (s *Socket) removeConnected(p *peer.Peer) {
	delete(s.connectedByAddr, p.Address())
	delete(s.byClientID, p.ClientID())
}

func (s *Socket) releasePeer(p *peer.Peer) {
	if p.Crypto != nil {
		s.ctx.ReleaseCryptoContext(p.Crypto)
		p.Crypto = nil
	}
	s.ctx.ReleasePeer(p)
}

func (s *Socket) send(addr netip.AddrPort, pkt domain.Packet, key [32]byte, after func()) {
	expensive := pipeline.ExpensiveSend(pkt.Header.Kind)
	sender := s.ctx.AcquireSender()
	buf := s.ctx.AcquireBuffer()
	k := key
	protocolID := s.cfg.ProtocolID
	pipeline.Send(s.workerPool, s.transport, addr, pkt, &k, protocolID, buf.Data, expensive, sender, func(n int, err error) {
		s.ctx.ReleaseSender(sender)
		s.ctx.ReleaseBuffer(buf)
		if err != nil && s.logger != nil {
			s.logger.Printf("pomelo: server send %s to %s failed: %v", pkt.Header.Kind, addr, err)
		}
		if after != nil {
			after()
		}
	})
}

func (s *Socket) refreshGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.ConnectedPeers.Set(float64(len(s.connectedByAddr)))
	s.metrics.AnonymousPeers.Set(float64(len(s.anonymous)))
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
