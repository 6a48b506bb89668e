package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

const (
	execSignRequestVersion  = "wallet.sign.request.v1"
	execSignResponseVersion = "wallet.sign.response.v1"
)

type execCommandFn func(ctx context.Context, bin string, stdin []byte) ([]byte, []byte, error)

// ExecSigner delegates signing to an external helper binary (hardware
// wallet bridge, enclave shim) speaking versioned JSON over stdin/stdout.
type ExecSigner struct {
	bin    string
	pubKey []byte

	maxResponseBytes int
	execCommand      execCommandFn
}

func NewExecSigner(bin string, pubKeyHex string, maxResponseBytes int) (*ExecSigner, error) {
	if strings.TrimSpace(bin) == "" {
		return nil, fmt.Errorf("%w: missing signer binary", ErrInvalidConfig)
	}
	pub, err := decodeHex(pubKeyHex)
	if err != nil || len(pub) == 0 {
		return nil, fmt.Errorf("%w: bad public key hex", ErrInvalidConfig)
	}
	if maxResponseBytes <= 0 {
		return nil, fmt.Errorf("%w: max response bytes must be > 0", ErrInvalidConfig)
	}
	return &ExecSigner{
		bin:              bin,
		pubKey:           pub,
		maxResponseBytes: maxResponseBytes,
		execCommand:      runExecSignerCommand,
	}, nil
}

func (s *ExecSigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	if s == nil || s.execCommand == nil {
		return nil, fmt.Errorf("%w: nil signer", ErrInvalidConfig)
	}
	if len(message) == 0 {
		return nil, ErrEmptyMessage
	}

	reqBody, err := json.Marshal(map[string]any{
		"version": execSignRequestVersion,
		"message": "0x" + hex.EncodeToString(message),
	})
	if err != nil {
		return nil, fmt.Errorf("signer: marshal sign request: %w", err)
	}

	stdout, stderr, err := s.execCommand(ctx, s.bin, reqBody)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = strings.TrimSpace(string(stdout))
		}
		if msg == "" {
			return nil, fmt.Errorf("signer: execute signer helper: %w", err)
		}
		return nil, fmt.Errorf("signer: execute signer helper: %w: %s", err, msg)
	}
	if len(stdout) > s.maxResponseBytes {
		return nil, fmt.Errorf("signer: signer response too large")
	}

	var resp struct {
		Version   string `json:"version"`
		Signature string `json:"signature"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(stdout, &resp); err != nil {
		return nil, fmt.Errorf("signer: decode signer response: %w", err)
	}
	if resp.Version != execSignResponseVersion {
		return nil, fmt.Errorf("signer: unexpected signer response version %q", resp.Version)
	}
	if strings.TrimSpace(resp.Error) != "" {
		return nil, fmt.Errorf("signer: signer helper: %s", strings.TrimSpace(resp.Error))
	}
	sig, err := decodeHex(resp.Signature)
	if err != nil || len(sig) == 0 {
		return nil, fmt.Errorf("signer: signer helper returned empty or malformed signature")
	}
	return sig, nil
}

func (s *ExecSigner) PublicKey() []byte {
	if s == nil {
		return nil
	}
	return append([]byte(nil), s.pubKey...)
}

func runExecSignerCommand(ctx context.Context, bin string, stdin []byte) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, bin)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
