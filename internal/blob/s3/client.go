// Package s3blob archives price history to S3 or an S3-compatible store
// (MinIO, Cloudflare R2, iDrive e2) using AWS SDK v2.
package s3blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig describes the archive bucket.
type ClientConfig struct {
	// Endpoint overrides the AWS endpoint for compatible providers. A bare
	// host gets a scheme from UseSSL.
	Endpoint string
	Region   string
	Bucket   string

	// AccessKey and SecretKey are optional; when both are empty the default
	// AWS credential chain (env, shared config, instance role) applies.
	AccessKey string
	SecretKey string

	UseSSL         bool
	ForcePathStyle bool
}

// Client is an S3 API client bound to the archive bucket.
type Client struct {
	api    *s3.Client
	bucket string
}

// New builds a Client. It does not contact the bucket; call Ping for that.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	switch {
	case cfg.Bucket == "":
		return nil, errors.New("s3blob: bucket is required")
	case cfg.Region == "":
		return nil, errors.New("s3blob: region is required")
	case (cfg.AccessKey == "") != (cfg.SecretKey == ""):
		return nil, errors.New("s3blob: access key and secret key must be set together")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	endpoint := endpointURL(cfg.Endpoint, cfg.UseSSL)
	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Client{api: api, bucket: cfg.Bucket}, nil
}

// Ping checks that the bucket exists and the credentials can reach it. It
// backs the readiness check when archiving is on.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", c.bucket, err)
	}
	return nil
}

// endpointURL returns endpoint with a scheme, or "" for the AWS default.
func endpointURL(endpoint string, useSSL bool) string {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
