package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// EVMSigner signs for EVM-style networks with a secp256k1 key. The signing
// message is hashed with keccak256 before signing, producing a 65-byte
// [R || S || V] signature.
type EVMSigner struct {
	priv *ecdsa.PrivateKey
}

func NewEVMSigner(priv *ecdsa.PrivateKey) (*EVMSigner, error) {
	if priv == nil {
		return nil, fmt.Errorf("%w: nil ecdsa private key", ErrInvalidConfig)
	}
	return &EVMSigner{priv: priv}, nil
}

func NewEVMSignerFromHex(keyHex string) (*EVMSigner, error) {
	raw, err := decodeHex(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: decode key: %v", ErrInvalidConfig, err)
	}
	priv, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse secp256k1 key: %v", ErrInvalidConfig, err)
	}
	return &EVMSigner{priv: priv}, nil
}

func (s *EVMSigner) Sign(_ context.Context, message []byte) ([]byte, error) {
	if s == nil || s.priv == nil {
		return nil, fmt.Errorf("%w: nil signer", ErrInvalidConfig)
	}
	if len(message) == 0 {
		return nil, ErrEmptyMessage
	}
	digest := ethcrypto.Keccak256(message)
	sig, err := ethcrypto.Sign(digest, s.priv)
	if err != nil {
		return nil, fmt.Errorf("signer: secp256k1 sign: %w", err)
	}
	return sig, nil
}

func (s *EVMSigner) PublicKey() []byte {
	if s == nil || s.priv == nil {
		return nil
	}
	return ethcrypto.FromECDSAPub(&s.priv.PublicKey)
}

// Address is the EVM account address derived from the public key.
func (s *EVMSigner) Address() string {
	if s == nil || s.priv == nil {
		return ""
	}
	return ethcrypto.PubkeyToAddress(s.priv.PublicKey).Hex()
}
