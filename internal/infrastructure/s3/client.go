package s3infra

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store wraps S3 operations for the application.
type Store struct {
	client *s3.Client
	bucket string
}

// NewClient creates an S3 client. When endpoint is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(awsCfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// NewStore creates a Store with the given S3 client and bucket name.
func NewStore(client *s3.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// Upload streams an object to S3 under key and returns its s3:// URL.
func (s *Store) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// SnapshotArchive keeps the face capture of each successful enrollment.
type SnapshotArchive struct {
	store *Store
}

func NewSnapshotArchive(store *Store) *SnapshotArchive {
	return &SnapshotArchive{store: store}
}

// Archive stores image under enrollments/<voter_id>/<unix>.<ext>.
func (a *SnapshotArchive) Archive(ctx context.Context, voterID string, image []byte, at time.Time) (string, error) {
	ct := http.DetectContentType(image)
	key := SnapshotKey(voterID, at, ct)
	return a.store.Upload(ctx, key, bytes.NewReader(image), ct)
}

// SnapshotKey builds the object key for an enrollment capture.
func SnapshotKey(voterID string, at time.Time, contentType string) string {
	ext := "bin"
	switch contentType {
	case "image/jpeg":
		ext = "jpg"
	case "image/png":
		ext = "png"
	case "image/webp":
		ext = "webp"
	}
	return fmt.Sprintf("enrollments/%s/%d.%s", voterID, at.Unix(), ext)
}
