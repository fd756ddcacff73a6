// Package storage publishes curated images to S3-compatible object storage
// and hands back the public URL recorded in the catalog.
package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config contains S3 publisher configuration.
type Config struct {
	Endpoint        string // Optional: custom endpoint for MinIO or DigitalOcean Spaces
	Region          string // AWS region or DO region (e.g., "us-east-1" or "sfo3")
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	UsePathStyle    bool   // Use path-style addressing (required for MinIO)
	PublicBaseURL   string // Optional: CDN or website base URL; default is the bucket endpoint
}

// Publisher uploads image files to an S3-compatible bucket.
type Publisher struct {
	client *s3.Client
	bucket string
	config Config
}

// NewPublisher creates a Publisher.
func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("S3 credentials are required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	opts = append(opts, awsconfig.WithCredentialsProvider(
		credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	))

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Opts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}

	return &Publisher{
		client: s3.NewFromConfig(awsConfig, s3Opts),
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// Upload pushes a local image file to the bucket under key and returns the
// public URL to record in the catalog.
func (p *Publisher) Upload(ctx context.Context, localPath, key, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open image file: %w", err)
	}
	defer f.Close()

	if contentType == "" {
		contentType = "image/jpeg"
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
		ACL:         "public-read",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image to S3: %w", err)
	}

	return p.PublicURL(key), nil
}

// Delete removes an object from the bucket. Used by backlog resets.
func (p *Publisher) Delete(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

// PublicURL returns the public-facing URL for a key.
func (p *Publisher) PublicURL(key string) string {
	if p.config.PublicBaseURL != "" {
		return strings.TrimRight(p.config.PublicBaseURL, "/") + "/" + key
	}
	if p.config.Endpoint != "" {
		base := strings.TrimRight(p.config.Endpoint, "/")
		if p.config.UsePathStyle {
			return fmt.Sprintf("%s/%s/%s", base, p.bucket, key)
		}
		// Virtual-hosted style: inject the bucket as a subdomain.
		if rest, ok := strings.CutPrefix(base, "https://"); ok {
			return fmt.Sprintf("https://%s.%s/%s", p.bucket, rest, key)
		}
		return fmt.Sprintf("%s/%s/%s", base, p.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.bucket, p.config.Region, key)
}

// ImageKey builds the bucket key for a curated image:
// images/{asset-slug}/{assetID}_{order}{ext}. The slug keeps the bucket
// browsable; the ID pair keeps keys collision-free.
func ImageKey(assetSlug string, assetID int64, order int, ext string) string {
	if assetSlug == "" {
		assetSlug = "sin-titulo"
	}
	if !strings.HasPrefix(ext, ".") && ext != "" {
		ext = "." + ext
	}
	return fmt.Sprintf("images/%s/%d_%d%s", assetSlug, assetID, order, ext)
}
