package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"lukechampine.com/blake3"
)

// ObjectStore is the part of *minio.Client the archive needs.
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Config selects the S3-compatible endpoint and bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// TranscriptArchive stores finished transcripts keyed by the content of their source media.
type TranscriptArchive struct {
	client   ObjectStore
	bucket   string
	endpoint string
	useSSL   bool
	now      func() time.Time
}

// NewMinioArchive connects to MinIO and creates the bucket if it is missing.
func NewMinioArchive(ctx context.Context, cfg Config) (*TranscriptArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return NewTranscriptArchive(client, cfg), nil
}

// NewTranscriptArchive wraps an existing object store client.
func NewTranscriptArchive(client ObjectStore, cfg Config) *TranscriptArchive {
	return &TranscriptArchive{
		client:   client,
		bucket:   cfg.Bucket,
		endpoint: cfg.Endpoint,
		useSSL:   cfg.UseSSL,
		now:      time.Now,
	}
}

// Archive uploads transcript under transcripts/<user>/<blake3 of source>.txt
// and returns the object URL.
func (a *TranscriptArchive) Archive(ctx context.Context, userID, sourcePath, transcript string) (string, error) {
	f, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("open source media: %w", err)
	}
	defer f.Close()

	hash, err := ContentKey(f)
	if err != nil {
		return "", err
	}
	key := ObjectKey(userID, hash)

	_, err = a.client.PutObject(ctx, a.bucket, key, strings.NewReader(transcript), int64(len(transcript)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
		UserMetadata: map[string]string{
			"user-id":     userID,
			"archived-at": a.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload transcript to MinIO: %w", err)
	}

	return a.GetFileURL(key), nil
}

// GetFileURL returns the URL for accessing an object
func (a *TranscriptArchive) GetFileURL(key string) string {
	protocol := "http"
	if a.useSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, a.endpoint, a.bucket, key)
}

// ContentKey returns the hex BLAKE3-256 digest of r.
func ContentKey(r io.Reader) (string, error) {
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("calculating blake3 hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ObjectKey is where the transcript of a source with the given hash is kept.
func ObjectKey(userID, hash string) string {
	return fmt.Sprintf("transcripts/%s/%s.txt", userID, hash)
}
