// Package media stores audio blobs for conversation messages in an
// S3-compatible object store and hands out presigned download URLs.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/storage"
)

// ErrUnavailable indicates the object store is unreachable or rejected the
// operation.
var ErrUnavailable = errors.New("media store unavailable")

// PresignTTL is how long issued download URLs stay valid.
const PresignTTL = 7 * 24 * time.Hour

// MinioConfig holds connection settings for the object store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Store persists audio blobs in a single bucket. Object names embed the user
// and session so related clips group together, plus a UUID so names never
// collide.
type Store struct {
	client *minio.Client
	bucket string
}

// NewStore connects to the object store and ensures the bucket exists.
func NewStore(ctx context.Context, cfg MinioConfig) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create client: %v", ErrUnavailable, err)
	}

	s := &Store{client: client, bucket: cfg.Bucket}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("%w: check bucket: %v", ErrUnavailable, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("%w: make bucket: %v", ErrUnavailable, err)
	}
	return nil
}

// StoreAudio uploads one audio clip and returns a presigned GET URL valid
// for PresignTTL.
func (s *Store) StoreAudio(ctx context.Context, userID, sessionID string, data []byte, filename string) (string, error) {
	if userID == "" || sessionID == "" {
		return "", fmt.Errorf("%w: user and session IDs are required", storage.ErrInvalidInput)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty audio payload", storage.ErrInvalidInput)
	}

	objectName := objectName(userID, sessionID, filename)

	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentTypeFor(filename)})
	if err != nil {
		return "", fmt.Errorf("%w: put object: %v", ErrUnavailable, err)
	}

	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, PresignTTL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: presign: %v", ErrUnavailable, err)
	}
	return url.String(), nil
}

// HealthCheck verifies connectivity and credentials against the store.
func (s *Store) HealthCheck(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// objectName builds "audio/<user>/<session>/<uuid><ext>". The UUID keeps
// names collision-free regardless of the caller's filename.
func objectName(userID, sessionID, filename string) string {
	ext := path.Ext(filename)
	return path.Join("audio", userID, sessionID, uuid.NewString()+ext)
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
