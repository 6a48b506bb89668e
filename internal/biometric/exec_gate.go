package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

const (
	execCapabilityRequestVersion  = "device.auth.capability.request.v1"
	execCapabilityResponseVersion = "device.auth.capability.response.v1"
	execPromptRequestVersion      = "device.auth.prompt.request.v1"
	execPromptResponseVersion     = "device.auth.prompt.response.v1"

	// promptReason is shown by the platform authenticator. Fixed by
	// contract so every approval prompt reads identically.
	promptReason = "Confirm transfer"
)

type execCommandFn func(ctx context.Context, bin string, stdin []byte) ([]byte, []byte, error)

// ExecGate drives the platform authenticator through a helper binary
// speaking versioned JSON envelopes over stdin/stdout. The helper owns all
// platform API access; this process never sees biometric material.
type ExecGate struct {
	bin string

	maxResponseBytes int
	execCommand      execCommandFn
}

func NewExecGate(bin string, maxResponseBytes int) (*ExecGate, error) {
	if strings.TrimSpace(bin) == "" {
		return nil, fmt.Errorf("%w: missing device auth binary", ErrInvalidConfig)
	}
	if maxResponseBytes <= 0 {
		return nil, fmt.Errorf("%w: max response bytes must be > 0", ErrInvalidConfig)
	}
	return &ExecGate{
		bin:              bin,
		maxResponseBytes: maxResponseBytes,
		execCommand:      runExecCommand,
	}, nil
}

type capabilityResponse struct {
	Version  string `json:"version"`
	Hardware bool   `json:"hardware"`
	Enrolled bool   `json:"enrolled"`
	Error    string `json:"error"`
}

type promptResponse struct {
	Version   string `json:"version"`
	Confirmed bool   `json:"confirmed"`
	Cancelled bool   `json:"cancelled"`
	Error     string `json:"error"`
}

// Confirm checks hardware capability and enrollment, then prompts with a
// device-passcode fallback. Missing hardware or enrollment maps to
// not_available, a user-initiated cancel to cancelled, and everything else
// to failed.
func (g *ExecGate) Confirm(ctx context.Context) (Outcome, error) {
	if g == nil || g.execCommand == nil {
		return OutcomeFailed, fmt.Errorf("%w: nil gate", ErrInvalidConfig)
	}

	var capResp capabilityResponse
	if err := g.roundTrip(ctx, map[string]any{
		"version": execCapabilityRequestVersion,
	}, &capResp); err != nil {
		return OutcomeFailed, err
	}
	if capResp.Version != execCapabilityResponseVersion {
		return OutcomeFailed, fmt.Errorf("biometric: unexpected capability response version %q", capResp.Version)
	}
	if strings.TrimSpace(capResp.Error) != "" {
		return OutcomeFailed, fmt.Errorf("biometric: capability check: %s", strings.TrimSpace(capResp.Error))
	}
	if !capResp.Hardware || !capResp.Enrolled {
		return OutcomeNotAvailable, nil
	}

	var resp promptResponse
	if err := g.roundTrip(ctx, map[string]any{
		"version":          execPromptRequestVersion,
		"reason":           promptReason,
		"passcodeFallback": true,
	}, &resp); err != nil {
		return OutcomeFailed, err
	}
	if resp.Version != execPromptResponseVersion {
		return OutcomeFailed, fmt.Errorf("biometric: unexpected prompt response version %q", resp.Version)
	}
	switch {
	case resp.Cancelled:
		return OutcomeCancelled, nil
	case strings.TrimSpace(resp.Error) != "":
		return OutcomeFailed, nil
	case resp.Confirmed:
		return OutcomeSuccess, nil
	default:
		return OutcomeFailed, nil
	}
}

func (g *ExecGate) roundTrip(ctx context.Context, req map[string]any, out any) error {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("biometric: marshal request: %w", err)
	}

	stdout, stderr, err := g.execCommand(ctx, g.bin, reqBody)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = strings.TrimSpace(string(stdout))
		}
		if msg == "" {
			return fmt.Errorf("biometric: execute device auth helper: %w", err)
		}
		return fmt.Errorf("biometric: execute device auth helper: %w: %s", err, msg)
	}
	if len(stdout) > g.maxResponseBytes {
		return fmt.Errorf("biometric: device auth response too large")
	}
	if err := json.Unmarshal(stdout, out); err != nil {
		return fmt.Errorf("biometric: decode device auth response: %w", err)
	}
	return nil
}

func runExecCommand(ctx context.Context, bin string, stdin []byte) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, bin)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
