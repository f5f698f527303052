package token

import (
	"encoding/binary"

	"github.com/pomelo-net/pomelo-go/domain"
	"github.com/pomelo-net/pomelo-go/infrastructure/cryptography"
)

// challengePlaintextBudget is the fixed plaintext size sealed into a
// challenge token, before the AEAD tag: client_id(8) + user_data(256),
// zero-padded.
const challengePlaintextBudget = domain.ChallengeTokenBytes - domain.TagBytes

// EncryptChallengeToken seals t into dst using the server's challenge key,
// with the token sequence number as the nonce. dst must be at
// least domain.ChallengeTokenBytes.
func EncryptChallengeToken(dst []byte, t *domain.ChallengeToken, key *[32]byte, sequence uint64) (int, error) {
	if len(dst) < domain.ChallengeTokenBytes {
		return 0, domain.ErrBufferTooSmall
	}
	plaintext := make([]byte, challengePlaintextBudget)
	binary.LittleEndian.PutUint64(plaintext, t.ClientID)
	copy(plaintext[8:], t.UserData[:])

	nonce := cryptography.SequenceNonce(sequence)
	sealed, err := cryptography.Seal(dst[:0], nonce[:], plaintext, nil, key)
	if err != nil {
		return 0, err
	}
	return len(sealed), nil
}

// DecryptChallengeToken opens an encrypted challenge token, verifying it
// against the same sequence number used to seal it.
func DecryptChallengeToken(src []byte, key *[32]byte, sequence uint64) (domain.ChallengeToken, error) {
	if len(src) != domain.ChallengeTokenBytes {
		return domain.ChallengeToken{}, domain.ErrMalformed
	}
	nonce := cryptography.SequenceNonce(sequence)
	plaintext, err := cryptography.Open(nil, nonce[:], src, nil, key)
	if err != nil {
		return domain.ChallengeToken{}, domain.ErrAuthFailed
	}
	var t domain.ChallengeToken
	t.ClientID = binary.LittleEndian.Uint64(plaintext)
	copy(t.UserData[:], plaintext[8:8+domain.UserDataBytes])
	return t, nil
}
