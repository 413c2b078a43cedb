package archive

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/timebank/internal/database"
)

// ErrNotConfigured is returned when no bucket is configured.
var ErrNotConfigured = errors.New("archive storage not configured")

const timestampLayout = "2006-01-02T150405Z"

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config holds S3-compatible storage settings.
type Config struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Passphrase string
}

// Archiver writes encrypted account archives and database snapshots to
// S3-compatible storage.
type Archiver struct {
	bucket     string
	passphrase string
	client     s3Client
	log        *slog.Logger
	now        func() time.Time
}

// New creates an archiver. It returns ErrNotConfigured when cfg has no bucket.
func New(cfg Config, logger *slog.Logger) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Passphrase == "" {
		return nil, errors.New("archive passphrase is required")
	}
	return newArchiver(cfg, newS3Client(cfg), logger), nil
}

func newArchiver(cfg Config, client s3Client, logger *slog.Logger) *Archiver {
	return &Archiver{
		bucket:     cfg.Bucket,
		passphrase: cfg.Passphrase,
		client:     client,
		log:        logger,
		now:        time.Now,
	}
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: true,
	}
	if cfg.AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// ArchiveAccount stores v as encrypted JSON under the user's prefix and
// returns the object key.
func (a *Archiver) ArchiveAccount(ctx context.Context, userID string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal archive: %w", err)
	}
	key := fmt.Sprintf("accounts/%s/%s.json.enc", userID, a.now().UTC().Format(timestampLayout))
	if err := a.put(ctx, key, data); err != nil {
		return "", err
	}
	a.log.Info("account archived", "user_id", userID, "key", key)
	return key, nil
}

// Snapshot uploads an encrypted, consistent copy of db and returns the
// object key.
func (a *Archiver) Snapshot(ctx context.Context, db *sql.DB) (string, error) {
	dir, err := os.MkdirTemp("", "timebank-snapshot-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if err := database.Snapshot(ctx, db, path); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}

	key := fmt.Sprintf("snapshots/%s.db.enc", a.now().UTC().Format(timestampLayout))
	if err := a.put(ctx, key, data); err != nil {
		return "", err
	}
	a.log.Info("database snapshot uploaded", "key", key, "bytes", len(data))
	return key, nil
}

// Fetch downloads and decrypts one object.
func (a *Archiver) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return Open(data, a.passphrase)
}

func (a *Archiver) put(ctx context.Context, key string, plaintext []byte) error {
	sealed, err := Seal(plaintext, a.passphrase)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return fmt.Errorf("upload to s3: %w", err)
	}
	return nil
}
