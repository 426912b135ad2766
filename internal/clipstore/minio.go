package clipstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore writes clips to an S3-compatible bucket, keyed as
// <feed>/<YYYY/MM/DD>/<segment>.avi.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the endpoint and ensures the bucket exists.
func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, secure bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("connect clip storage: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check clip bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create clip bucket: %w", err)
		}
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

// Upload stores one clip and returns its object URL.
func (s *MinioStore) Upload(ctx context.Context, feedID, segmentID string, clip []byte) (string, error) {
	key := fmt.Sprintf("%s/%s/%s.avi", feedID, time.Now().UTC().Format("2006/01/02"), segmentID)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(clip), int64(len(clip)),
		minio.PutObjectOptions{ContentType: "video/x-msvideo"})
	if err != nil {
		return "", fmt.Errorf("upload clip %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL(), s.bucket, key), nil
}
