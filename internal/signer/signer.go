// Package signer provides wallet signing providers for transfer payloads.
// Biometric confirmation is required before signing by flow convention, not
// enforced here.
package signer

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

var (
	ErrInvalidConfig = errors.New("signer: invalid config")
	ErrEmptyMessage  = errors.New("signer: empty signing message")
)

// Signer signs a raw signing message with the wallet's key.
type Signer interface {
	Sign(ctx context.Context, message []byte) ([]byte, error)
	PublicKey() []byte
}

// ed25519 single-key scheme byte used in auth key derivation.
const schemeEd25519 byte = 0x00

// Ed25519Signer signs for Move-style networks with an in-process ed25519
// key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

func NewEd25519Signer(priv ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: bad ed25519 private key length %d", ErrInvalidConfig, len(priv))
	}
	return &Ed25519Signer{priv: priv}, nil
}

// NewEd25519SignerFromSeedHex builds a signer from a 32-byte hex seed, with
// or without a 0x prefix.
func NewEd25519SignerFromSeedHex(seedHex string) (*Ed25519Signer, error) {
	seed, err := decodeHex(seedHex)
	if err != nil {
		return nil, fmt.Errorf("%w: decode seed: %v", ErrInvalidConfig, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidConfig, ed25519.SeedSize, len(seed))
	}
	return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

func (s *Ed25519Signer) Sign(_ context.Context, message []byte) ([]byte, error) {
	if s == nil || len(s.priv) == 0 {
		return nil, fmt.Errorf("%w: nil signer", ErrInvalidConfig)
	}
	if len(message) == 0 {
		return nil, ErrEmptyMessage
	}
	return ed25519.Sign(s.priv, message), nil
}

func (s *Ed25519Signer) PublicKey() []byte {
	if s == nil || len(s.priv) == 0 {
		return nil
	}
	pub := s.priv.Public().(ed25519.PublicKey)
	return append([]byte(nil), pub...)
}

// AuthKey derives the on-chain account address for the single-key scheme:
// sha3-256(pubkey || 0x00).
func (s *Ed25519Signer) AuthKey() [32]byte {
	h := sha3.New256()
	_, _ = h.Write(s.PublicKey())
	_, _ = h.Write([]byte{schemeEd25519})

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Address is the 0x-prefixed hex form of the auth key.
func (s *Ed25519Signer) Address() string {
	k := s.AuthKey()
	return "0x" + hex.EncodeToString(k[:])
}

func decodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	return hex.DecodeString(s)
}
