package cryptography

import (
	"bytes"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	var key [32]byte
	if err := RandomBytes(key[:]); err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	nonce := SequenceNonce(42)
	plaintext := []byte("hello pomelo")
	ad := []byte("associated-data")

	sealed, err := Seal(nil, nonce[:], plaintext, ad, &key)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	opened, err := Open(nil, nonce[:], sealed, ad, &key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", opened, plaintext)
	}
}

func TestOpenRejectsTamperedAssociatedData(t *testing.T) {
	var key [32]byte
	_ = RandomBytes(key[:])
	nonce := SequenceNonce(1)
	sealed, err := Seal(nil, nonce[:], []byte("body"), []byte("ad-1"), &key)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Open(nil, nonce[:], sealed, []byte("ad-2"), &key); err == nil {
		t.Fatal("expected auth failure with tampered associated data")
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	var key [32]byte
	_ = RandomBytes(key[:])
	nonce := SequenceNonce(1)
	sealed, err := Seal(nil, nonce[:], []byte("body"), nil, &key)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	sealed[0] ^= 0xFF
	if _, err := Open(nil, nonce[:], sealed, nil, &key); err == nil {
		t.Fatal("expected auth failure with tampered ciphertext")
	}
}

func TestOpenRejectsTamperedNonce(t *testing.T) {
	var key [32]byte
	_ = RandomBytes(key[:])
	nonce := SequenceNonce(1)
	sealed, err := Seal(nil, nonce[:], []byte("body"), nil, &key)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	badNonce := SequenceNonce(2)
	if _, err := Open(nil, badNonce[:], sealed, nil, &key); err == nil {
		t.Fatal("expected auth failure with wrong nonce")
	}
}

func TestSealXOpenXRoundTrip(t *testing.T) {
	var key [32]byte
	_ = RandomBytes(key[:])
	nonce := make([]byte, 24)
	_ = RandomBytes(nonce)
	plaintext := []byte("private section payload")
	ad := []byte("version||protocol_id||expire")

	sealed, err := SealX(nil, nonce, plaintext, ad, &key)
	if err != nil {
		t.Fatalf("SealX: %v", err)
	}
	opened, err := OpenX(nil, nonce, sealed, ad, &key)
	if err != nil {
		t.Fatalf("OpenX: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", opened, plaintext)
	}

	var wrongKey [32]byte
	_ = RandomBytes(wrongKey[:])
	if _, err := OpenX(nil, nonce, sealed, ad, &wrongKey); err == nil {
		t.Fatal("expected auth failure with wrong key")
	}
}

func TestSequenceNonceLayout(t *testing.T) {
	n := SequenceNonce(0x0102030405060708)
	for i := 0; i < 4; i++ {
		if n[i] != 0 {
			t.Fatalf("expected zero padding at byte %d, got %d", i, n[i])
		}
	}
	want := []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(n[4:], want) {
		t.Fatalf("sequence bytes = % x, want % x", n[4:], want)
	}
}
