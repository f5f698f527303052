package replay

import (
	"math/rand"
	"testing"
)

func TestProtectorAcceptsMonotonicSequence(t *testing.T) {
	p := New()
	for i := uint64(0); i < 1000; i++ {
		if !p.Accept(i) {
			t.Fatalf("expected sequence %d to be accepted", i)
		}
	}
}

func TestProtectorRejectsExactDuplicate(t *testing.T) {
	p := New()
	if !p.Accept(5) {
		t.Fatal("expected first delivery of 5 to be accepted")
	}
	if p.Accept(5) {
		t.Fatal("expected duplicate delivery of 5 to be rejected")
	}
}

func TestProtectorRejectsStaleOutOfWindow(t *testing.T) {
	p := New()
	if !p.Accept(1000) {
		t.Fatal("expected 1000 to be accepted")
	}
	if p.Accept(1000 - windowSize) {
		t.Fatal("expected a sequence exactly windowSize behind to be rejected")
	}
	if !p.Accept(1000 - windowSize + 1) {
		t.Fatal("expected a sequence windowSize-1 behind to be accepted")
	}
}

func TestProtectorAcceptsOutOfOrderWithinWindow(t *testing.T) {
	p := New()
	order := []uint64{10, 5, 8, 3, 9, 1, 20}
	for _, seq := range order {
		if !p.Accept(seq) {
			t.Fatalf("expected sequence %d to be accepted on first delivery", seq)
		}
	}
	for _, seq := range order {
		if p.Accept(seq) {
			t.Fatalf("expected replayed sequence %d to be rejected", seq)
		}
	}
}

func TestProtectorReset(t *testing.T) {
	p := New()
	p.Accept(100)
	p.Reset()
	if !p.Accept(0) {
		t.Fatal("expected sequence 0 to be accepted after reset")
	}
	if !p.Accept(100) {
		t.Fatal("expected sequence 100 to be accepted again after reset")
	}
}

// TestProtectorUnderLoad is a property test: for any permutation of
// sequences 0..999 with up to 100 duplicates, the protector accepts each
// distinct sequence at most once and accepts at least 744 of the 1000
// distinct values.
func TestProtectorUnderLoad(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 20; trial++ {
		seqs := make([]uint64, 0, 1100)
		for i := uint64(0); i < 1000; i++ {
			seqs = append(seqs, i)
		}
		numDup := rng.Intn(101)
		for i := 0; i < numDup; i++ {
			seqs = append(seqs, uint64(rng.Intn(1000)))
		}
		rng.Shuffle(len(seqs), func(i, j int) { seqs[i], seqs[j] = seqs[j], seqs[i] })

		p := New()
		seen := make(map[uint64]bool, 1000)
		acceptedDistinct := 0
		for _, seq := range seqs {
			accepted := p.Accept(seq)
			if accepted {
				if seen[seq] {
					t.Fatalf("trial %d: sequence %d accepted twice", trial, seq)
				}
				seen[seq] = true
				acceptedDistinct++
			}
		}
		if acceptedDistinct < 744 {
			t.Fatalf("trial %d: only %d of 1000 distinct sequences accepted, want >= 744", trial, acceptedDistinct)
		}
	}
}
