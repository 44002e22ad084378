package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"defectmaster-backend/internal/shared/storage/photos"
)

// Store keeps photos in a MinIO (or other S3-compatible) bucket. URLs assume
// the bucket allows public reads; use publicBaseURL when a CDN or reverse
// proxy fronts the bucket.
type Store struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

// New connects to MinIO and ensures the bucket exists.
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool, publicBaseURL string) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connect: %w", err)
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("%s/%s", cli.EndpointURL().String(), bucket)
	}
	return &Store{client: cli, bucket: bucket, publicBaseURL: publicBaseURL}, nil
}

func (s *Store) Save(ctx context.Context, userID string, photo []byte) (string, string, error) {
	key := photos.BuildKey(userID)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(photo), int64(len(photo)), minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return "", "", fmt.Errorf("minio put object bucket=%s key=%s: %w", s.bucket, key, err)
	}
	return key, photos.JoinURL(s.publicBaseURL, key), nil
}

func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, storageKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get object bucket=%s key=%s: %w", s.bucket, storageKey, err)
	}
	return obj, nil
}

var _ photos.Store = (*Store)(nil)
