package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	ctx := context.Background()

	if _, err := store.Get(ctx, "session-token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, "session-token", "tok-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := store.Get(ctx, "session-token")
	if err != nil || v != "tok-1" {
		t.Fatalf("Get = %q, %v", v, err)
	}

	if err := store.Set(ctx, "session-token", "  "); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for blank value, got %v", err)
	}
	if err := store.Set(ctx, "", "v"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for empty key, got %v", err)
	}

	if err := store.Clear(ctx, "session-token"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := store.Get(ctx, "session-token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestEnvStore(t *testing.T) {
	t.Setenv("WALLET_TEST_TOKEN", "tok-env")

	store := NewEnv()
	ctx := context.Background()

	v, err := store.Get(ctx, "WALLET_TEST_TOKEN")
	if err != nil || v != "tok-env" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	if _, err := store.Get(ctx, "WALLET_TEST_TOKEN_MISSING"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Set(ctx, "WALLET_TEST_TOKEN", "x"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := store.Clear(ctx, "WALLET_TEST_TOKEN"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

type stubSecretsManager struct {
	values  map[string]string
	deleted []string
	forced  bool
}

func (s *stubSecretsManager) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	v, ok := s.values[*params.SecretId]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: &v}, nil
}

func (s *stubSecretsManager) PutSecretValue(_ context.Context, params *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[*params.SecretId] = *params.SecretString
	return &secretsmanager.PutSecretValueOutput{}, nil
}

func (s *stubSecretsManager) DeleteSecret(_ context.Context, params *secretsmanager.DeleteSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error) {
	s.deleted = append(s.deleted, *params.SecretId)
	if params.ForceDeleteWithoutRecovery != nil {
		s.forced = *params.ForceDeleteWithoutRecovery
	}
	delete(s.values, *params.SecretId)
	return &secretsmanager.DeleteSecretOutput{}, nil
}

func TestAWSStore(t *testing.T) {
	t.Parallel()

	client := &stubSecretsManager{values: map[string]string{"wallet/session-token": "  tok-aws  "}}
	store, err := NewAWSWithClient(client)
	if err != nil {
		t.Fatalf("NewAWSWithClient: %v", err)
	}
	ctx := context.Background()

	v, err := store.Get(ctx, "wallet/session-token")
	if err != nil || v != "tok-aws" {
		t.Fatalf("Get = %q, %v (expected trimmed value)", v, err)
	}

	if err := store.Set(ctx, "wallet/session-token", "tok-2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if client.values["wallet/session-token"] != "tok-2" {
		t.Fatalf("secret not written: %+v", client.values)
	}

	if err := store.Clear(ctx, "wallet/session-token"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(client.deleted) != 1 || !client.forced {
		t.Fatalf("expected forced delete, got %+v forced=%v", client.deleted, client.forced)
	}

	if _, err := store.Get(ctx, "wallet/session-token"); err == nil {
		t.Fatal("expected error for deleted secret")
	}
}

func TestNewAWSWithClientValidates(t *testing.T) {
	t.Parallel()

	if _, err := NewAWSWithClient(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
