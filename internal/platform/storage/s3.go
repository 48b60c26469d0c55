// Package storage keeps item images in an S3 compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Options configures the S3 client.
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ImageStore implements catalog.ImageStore.
type S3ImageStore struct {
	client putObjectAPI
	bucket string
}

// NewS3ImageStore loads AWS configuration and returns the store. Static
// credentials are used when both keys are set, the default chain otherwise.
// A custom endpoint switches to path-style addressing for MinIO and friends.
func NewS3ImageStore(ctx context.Context, opts Options) (*S3ImageStore, error) {
	if opts.Bucket == "" {
		return nil, errors.New("storage: bucket required")
	}
	loaders := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3ImageStore{client: client, bucket: opts.Bucket}, nil
}

// Put uploads body under key and returns its s3:// reference.
func (s *S3ImageStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}
	return Ref(s.bucket, key), nil
}

// Ref formats the stored reference of an object.
func Ref(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}
