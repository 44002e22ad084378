package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"defectmaster-backend/internal/shared/storage/photos"
)

// Store keeps photos in Amazon S3. Objects are written under an optional key
// prefix; URLs use the configured public base or the bucket's virtual-hosted
// endpoint.
type Store struct {
	client        *s3.Client
	bucket        string
	prefix        string
	publicBaseURL string
}

// New creates an S3-backed photo store.
func New(ctx context.Context, region, bucket, prefix, publicBaseURL string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &Store{
		client:        s3.NewFromConfig(cfg),
		bucket:        bucket,
		prefix:        normalizePrefix(prefix),
		publicBaseURL: publicBaseURL,
	}, nil
}

func (s *Store) Save(ctx context.Context, userID string, photo []byte) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	key := photos.BuildKey(userID)
	objectKey := applyPrefix(s.prefix, key)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(photo),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", "", fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return key, photos.JoinURL(s.publicBaseURL, objectKey), nil
}

func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	objectKey := applyPrefix(s.prefix, storageKey)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return out.Body, nil
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

var _ photos.Store = (*Store)(nil)
