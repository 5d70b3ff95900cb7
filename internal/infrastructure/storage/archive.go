// Package storage archives uploaded import spreadsheets in object storage
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/propbill/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Archive keeps a copy of an uploaded file and returns its storage key
type Archive interface {
	Store(ctx context.Context, filename string, data []byte, contentType string) (string, error)
}

// NopArchive discards uploads
type NopArchive struct{}

// Store implements Archive
func (NopArchive) Store(context.Context, string, []byte, string) (string, error) {
	return "", nil
}

// putObjectAPI is the subset of the S3 client the archive uses
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive stores uploads in an S3-compatible bucket (AWS S3, MinIO, ...)
type S3Archive struct {
	client putObjectAPI
	bucket string
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewS3Archive builds an S3 client from configuration. Static credentials
// are used when both keys are set; otherwise the default AWS chain applies.
func NewS3Archive(ctx context.Context, cfg *config.S3Config, logger *zap.Logger) (*S3Archive, error) {
	if cfg == nil {
		return nil, errors.New("s3 configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("s3 region is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3ArchiveWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3ArchiveWithClient wraps an existing client
func NewS3ArchiveWithClient(client putObjectAPI, bucket, prefix string, logger *zap.Logger) *S3Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Archive{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

// Store implements Archive. Keys look like
// <prefix>2025/03/01/<uuid>-<filename>.
func (a *S3Archive) Store(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	key := a.objectKey(filename)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", filename, err)
	}

	a.logger.Info("archived import upload",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return key, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (a *S3Archive) objectKey(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.Trim(unsafeKeyChars.ReplaceAllString(base, "_"), "_")
	if base == "" || base == "." {
		base = "upload"
	}
	return fmt.Sprintf("%s%s/%s-%s", a.prefix, a.now().UTC().Format("2006/01/02"), uuid.NewString(), base)
}
