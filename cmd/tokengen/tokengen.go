// Package tokengen issues connect tokens out of band: there is no
// in-protocol negotiation, so a server operator generates a token offline
// and hands it to a client through whatever side channel the deployment
// uses. The server's private key and protocol id generate a client's
// 2048-byte public connect token.
package tokengen

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/pomelo-net/pomelo-go/domain"
	"github.com/pomelo-net/pomelo-go/infrastructure/cryptography"
	"github.com/pomelo-net/pomelo-go/infrastructure/token"
)

// Params groups the caller-chosen fields of a freshly issued connect token.
type Params struct {
	ProtocolID      uint64
	ClientID        uint64
	TimeoutSeconds  int32
	ExpireInSeconds int64
	ServerAddresses []netip.AddrPort
	UserData        [domain.UserDataBytes]byte
	PrivateKey      [domain.KeyBytes]byte
}

// Generate builds a complete, encoded connect token: fresh per-connection
// traffic keys and nonce, sealed under PrivateKey, ready to hand to a
// client out of band.
func Generate(p Params) ([domain.ConnectTokenBytes]byte, error) {
	var out [domain.ConnectTokenBytes]byte
	if len(p.ServerAddresses) == 0 || len(p.ServerAddresses) > domain.MaxServerAddresses {
		return out, fmt.Errorf("pomelo: token needs 1..%d server addresses", domain.MaxServerAddresses)
	}

	var nonce [domain.ConnectTokenNonceBytes]byte
	if err := cryptography.RandomBytes(nonce[:]); err != nil {
		return out, fmt.Errorf("pomelo: generate token nonce: %w", err)
	}
	var c2s, s2c [domain.KeyBytes]byte
	if err := cryptography.RandomBytes(c2s[:]); err != nil {
		return out, fmt.Errorf("pomelo: generate client->server key: %w", err)
	}
	if err := cryptography.RandomBytes(s2c[:]); err != nil {
		return out, fmt.Errorf("pomelo: generate server->client key: %w", err)
	}

	now := time.Now().Unix()
	t := domain.ConnectToken{
		ProtocolID:      p.ProtocolID,
		CreateTimestamp: now,
		ExpireTimestamp: now + p.ExpireInSeconds,
		Nonce:           nonce,
		Private: domain.ConnectTokenPrivate{
			ClientID:          p.ClientID,
			TimeoutSeconds:    p.TimeoutSeconds,
			ServerAddresses:   p.ServerAddresses,
			ClientToServerKey: c2s,
			ServerToClientKey: s2c,
			UserData:          p.UserData,
		},
	}

	key := p.PrivateKey
	if _, err := token.EncodeConnectToken(out[:], &t, &key); err != nil {
		return out, fmt.Errorf("pomelo: encode connect token: %w", err)
	}
	return out, nil
}

// GenerateKey returns a fresh random 32-byte key, suitable as either the
// shared private token key a server is configured with or a per-app secret
// passed to Generate.
func GenerateKey() ([domain.KeyBytes]byte, error) {
	var k [domain.KeyBytes]byte
	if err := cryptography.RandomBytes(k[:]); err != nil {
		return k, fmt.Errorf("pomelo: generate key: %w", err)
	}
	return k, nil
}
