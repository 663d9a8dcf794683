package file

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage provides an S3-compatible blob store backend using MinIO.
// Source images are read from a fixed image bucket; converted artifacts
// are written to per-task destination buckets.
type Storage struct {
	client      *minio.Client
	imageBucket string
}

// NewStorage creates a new Storage instance connected to the specified
// MinIO server. If the image bucket does not exist, it will be created
// automatically.
func NewStorage(ctx context.Context, endpoint, accessKey, secretKey, imageBucket string, useSSL bool) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	if err := ensureBucket(ctx, client, imageBucket); err != nil {
		return nil, err
	}

	return &Storage{
		client:      client,
		imageBucket: imageBucket,
	}, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Load retrieves a source image from the image bucket and returns a
// reader over its bytes.
func (s *Storage) Load(ctx context.Context, imageID string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.imageBucket, imageID, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	return obj, nil
}

// Save uploads the provided reader to the given destination bucket,
// creating the bucket when it does not yet exist. Returns the object
// name within the bucket.
func (s *Storage) Save(ctx context.Context, bucket, objectName string, src io.Reader) (string, error) {
	if err := ensureBucket(ctx, s.client, bucket); err != nil {
		return "", err
	}

	_, err := s.client.PutObject(ctx, bucket, objectName, src, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return objectName, nil
}
