package idempotency

import "testing"

func TestAttemptIDV1Deterministic(t *testing.T) {
	t.Parallel()

	a := AttemptIDV1("Move", "0xabc", "10", 1)
	b := AttemptIDV1("Move", "0xabc", "10", 1)
	if a != b {
		t.Fatal("same inputs must yield the same attempt id")
	}
	if a == ([32]byte{}) {
		t.Fatal("attempt id must not be zero")
	}
}

func TestAttemptIDV1Distinguishes(t *testing.T) {
	t.Parallel()

	base := AttemptIDV1("Move", "0xabc", "10", 1)
	variants := [][32]byte{
		AttemptIDV1("Ethereum", "0xabc", "10", 1),
		AttemptIDV1("Move", "0xdef", "10", 1),
		AttemptIDV1("Move", "0xabc", "11", 1),
		AttemptIDV1("Move", "0xabc", "10", 2),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d collided with base", i)
		}
	}

	// The separator prevents field-boundary ambiguity.
	if AttemptIDV1("Move", "0xabc1", "0", 1) == AttemptIDV1("Move", "0xabc", "10", 1) {
		t.Fatal("field boundaries must be unambiguous")
	}
}
