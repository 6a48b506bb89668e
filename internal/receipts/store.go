// Package receipts archives execution receipts for confirmed transfers:
// the signed payload plus the ledger verdict, keyed by attempt id.
package receipts

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

const (
	DriverS3     = "s3"
	DriverMemory = "memory"

	receiptVersionV1 = "transfer.receipt.v1"

	defaultMaxGetSize int64 = 1 << 20
)

var (
	ErrInvalidConfig  = errors.New("receipts: invalid config")
	ErrInvalidReceipt = errors.New("receipts: invalid receipt")
	ErrNotFound       = errors.New("receipts: not found")
	ErrTooLarge       = errors.New("receipts: object too large")
)

// Receipt is the durable record of one successfully executed transfer.
type Receipt struct {
	Version string `json:"version"`

	AttemptID     string    `json:"attemptId"`
	TransactionID string    `json:"transactionId"`
	Amount        string    `json:"amount"`
	Recipient     string    `json:"recipient"`
	Network       string    `json:"network,omitempty"`
	VMStatus      string    `json:"vmStatus"`
	SignedPayload string    `json:"signedPayload,omitempty"`
	CompletedAt   time.Time `json:"completedAt"`
}

func (r Receipt) validate() error {
	if strings.TrimSpace(r.AttemptID) == "" {
		return fmt.Errorf("%w: missing attempt id", ErrInvalidReceipt)
	}
	if strings.TrimSpace(r.TransactionID) == "" {
		return fmt.Errorf("%w: missing transaction id", ErrInvalidReceipt)
	}
	if r.CompletedAt.IsZero() {
		return fmt.Errorf("%w: missing completion time", ErrInvalidReceipt)
	}
	return nil
}

// Store persists and retrieves receipts.
type Store interface {
	Put(ctx context.Context, attemptID [32]byte, r Receipt) error
	Get(ctx context.Context, attemptID [32]byte) (Receipt, error)
}

type Config struct {
	Driver string
	Prefix string

	// MaxGetSize bounds bytes returned by Get. Defaults to 1 MiB when <= 0.
	MaxGetSize int64

	// S3 fields.
	Bucket   string
	S3Client S3Client
}

type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

func New(cfg Config) (Store, error) {
	switch strings.TrimSpace(strings.ToLower(cfg.Driver)) {
	case DriverMemory:
		return newMemoryStore(), nil
	case DriverS3, "":
		return newS3Store(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported driver %q", ErrInvalidConfig, cfg.Driver)
	}
}

func objectKey(prefix string, attemptID [32]byte) string {
	key := "transfers/attempts/" + hex.EncodeToString(attemptID[:]) + "/receipt.json"
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func encodeReceipt(attemptID [32]byte, r Receipt) ([]byte, error) {
	r.Version = receiptVersionV1
	if r.AttemptID == "" {
		r.AttemptID = hex.EncodeToString(attemptID[:])
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

type memoryStore struct {
	mu      sync.RWMutex
	objects map[[32]byte][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[[32]byte][]byte)}
}

func (m *memoryStore) Put(_ context.Context, attemptID [32]byte, r Receipt) error {
	data, err := encodeReceipt(attemptID, r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[attemptID] = data
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Get(_ context.Context, attemptID [32]byte) (Receipt, error) {
	m.mu.RLock()
	data, ok := m.objects[attemptID]
	m.mu.RUnlock()
	if !ok {
		return Receipt{}, fmt.Errorf("%w: attempt %s", ErrNotFound, hex.EncodeToString(attemptID[:]))
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return Receipt{}, fmt.Errorf("receipts: decode receipt: %w", err)
	}
	return r, nil
}

type s3Store struct {
	client     S3Client
	bucket     string
	prefix     string
	maxGetSize int64
}

func newS3Store(cfg Config) (*s3Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", ErrInvalidConfig)
	}
	if cfg.S3Client == nil {
		return nil, fmt.Errorf("%w: s3 client is required", ErrInvalidConfig)
	}
	maxGet := cfg.MaxGetSize
	if maxGet <= 0 {
		maxGet = defaultMaxGetSize
	}
	return &s3Store{
		client:     cfg.S3Client,
		bucket:     bucket,
		prefix:     cfg.Prefix,
		maxGetSize: maxGet,
	}, nil
}

func (s *s3Store) Put(ctx context.Context, attemptID [32]byte, r Receipt) error {
	data, err := encodeReceipt(attemptID, r)
	if err != nil {
		return err
	}
	key := objectKey(s.prefix, attemptID)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"artifact-type": "transfer-receipt",
			"attempt-id":    hex.EncodeToString(attemptID[:]),
		},
	})
	if err != nil {
		return fmt.Errorf("receipts/s3: put %q: %w", key, err)
	}
	return nil
}

func (s *s3Store) Get(ctx context.Context, attemptID [32]byte) (Receipt, error) {
	key := objectKey(s.prefix, attemptID)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return Receipt{}, fmt.Errorf("%w: attempt %s", ErrNotFound, hex.EncodeToString(attemptID[:]))
		}
		return Receipt{}, fmt.Errorf("receipts/s3: get %q: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(out.Body, s.maxGetSize+1))
	if err != nil {
		return Receipt{}, fmt.Errorf("receipts/s3: read %q: %w", key, err)
	}
	if int64(len(data)) > s.maxGetSize {
		return Receipt{}, fmt.Errorf("%w: key %q exceeds max %d bytes", ErrTooLarge, key, s.maxGetSize)
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return Receipt{}, fmt.Errorf("receipts/s3: decode %q: %w", key, err)
	}
	return r, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound", "404":
		return true
	default:
		return false
	}
}
