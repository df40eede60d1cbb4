// Package storage archives files to S3-compatible object storage (Cloudflare R2 in production).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"travel-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrDisabled is returned when object storage is not configured
var ErrDisabled = errors.New("object storage is not configured")

// R2Store puts and presigns objects in one bucket
type R2Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewR2Store builds an S3 client for the configured endpoint with static credentials
func NewR2Store(ctx context.Context, cfg *config.Config) (*R2Store, error) {
	sc := cfg.Storage
	if !sc.Enabled || sc.Bucket == "" {
		return nil, ErrDisabled
	}
	region := sc.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			sc.AccessKey,
			sc.SecretKey,
			"",
		)),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("configure object storage client: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if sc.Endpoint != "" {
			o.BaseEndpoint = aws.String(sc.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &R2Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  sc.Bucket,
	}, nil
}

// Put uploads body under key
func (s *R2Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a time-limited download URL for key
func (s *R2Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Ping checks that the bucket is reachable
func (s *R2Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}
