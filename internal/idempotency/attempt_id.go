package idempotency

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

const attemptIDPrefixV1 = "transfer-attempt"

// AttemptIDV1 computes the canonical transfer attempt id:
//
//	attemptId = keccak256("transfer-attempt" || network || 0x00 || recipient || 0x00 || amount || nonceBE64)
//
// binding the attempt to the intent it acts on. The nonce distinguishes
// user-initiated retries of the same intent.
func AttemptIDV1(network, recipient, amount string, nonce uint64) [32]byte {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(attemptIDPrefixV1))
	_, _ = h.Write([]byte(network))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(recipient))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(amount))

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	_, _ = h.Write(n[:])

	sum := h.Sum(nil)
	var out [32]byte
	copy(out[:], sum)
	return out
}
