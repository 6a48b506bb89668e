package receipts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

func testReceipt() Receipt {
	return Receipt{
		TransactionID: "0xhash",
		Amount:        "10",
		Recipient:     "0xabc",
		Network:       "Move",
		VMStatus:      "Executed successfully",
		SignedPayload: "RT",
		CompletedAt:   time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := New(Config{Driver: DriverMemory})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	var attemptID [32]byte
	attemptID[0] = 1

	if err := store.Put(ctx, attemptID, testReceipt()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, attemptID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Version != "transfer.receipt.v1" {
		t.Fatalf("expected stamped version, got %q", got.Version)
	}
	if got.AttemptID == "" {
		t.Fatal("expected attempt id filled from the key")
	}
	if got.TransactionID != "0xhash" || got.VMStatus != "Executed successfully" {
		t.Fatalf("unexpected receipt: %+v", got)
	}

	var other [32]byte
	other[0] = 2
	if _, err := store.Get(ctx, other); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutValidatesReceipt(t *testing.T) {
	t.Parallel()

	store, err := New(Config{Driver: DriverMemory})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var attemptID [32]byte
	attemptID[0] = 1

	r := testReceipt()
	r.TransactionID = ""
	if err := store.Put(context.Background(), attemptID, r); !errors.Is(err, ErrInvalidReceipt) {
		t.Fatalf("expected ErrInvalidReceipt, got %v", err)
	}
}

func TestObjectKey(t *testing.T) {
	t.Parallel()

	var attemptID [32]byte
	attemptID[0] = 0xab

	key := objectKey("", attemptID)
	if !strings.HasPrefix(key, "transfers/attempts/ab") || !strings.HasSuffix(key, "/receipt.json") {
		t.Fatalf("unexpected key %q", key)
	}

	prefixed := objectKey("/wallet/prod/", attemptID)
	if !strings.HasPrefix(prefixed, "wallet/prod/transfers/attempts/") {
		t.Fatalf("unexpected prefixed key %q", prefixed)
	}
}

type stubS3 struct {
	objects map[string][]byte
	putKeys []string
}

func (s *stubS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[*params.Key] = data
	s.putKeys = append(s.putKeys, *params.Key)
	return &s3.PutObjectOutput{}, nil
}

func (s *stubS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := s.objects[*params.Key]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "no such key"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	t.Parallel()

	client := &stubS3{}
	store, err := New(Config{Driver: DriverS3, Bucket: "wallet-receipts", Prefix: "prod", S3Client: client})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	var attemptID [32]byte
	attemptID[0] = 1

	if err := store.Put(ctx, attemptID, testReceipt()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(client.putKeys) != 1 || !strings.HasPrefix(client.putKeys[0], "prod/transfers/attempts/") {
		t.Fatalf("unexpected put keys: %v", client.putKeys)
	}

	got, err := store.Get(ctx, attemptID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TransactionID != "0xhash" {
		t.Fatalf("unexpected receipt: %+v", got)
	}

	var missing [32]byte
	missing[0] = 9
	if _, err := store.Get(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestS3StoreSizeCap(t *testing.T) {
	t.Parallel()

	client := &stubS3{}
	store, err := New(Config{Driver: DriverS3, Bucket: "wallet-receipts", S3Client: client, MaxGetSize: 16})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	var attemptID [32]byte
	attemptID[0] = 1
	if err := store.Put(ctx, attemptID, testReceipt()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := store.Get(ctx, attemptID); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Driver: "gcs"}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for unknown driver, got %v", err)
	}
	if _, err := New(Config{Driver: DriverS3, S3Client: &stubS3{}}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for missing bucket, got %v", err)
	}
	if _, err := New(Config{Driver: DriverS3, Bucket: "b"}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for missing client, got %v", err)
	}
}
