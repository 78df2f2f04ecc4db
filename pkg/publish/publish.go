// Package publish uploads finished bundles to object storage.
package publish

//go:generate mockgen -destination=./mocks/s3.go . ObjectPutter

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/glorpus-work/mcbundle/internal/logger"
	"github.com/glorpus-work/mcbundle/pkg/config"
	"github.com/glorpus-work/mcbundle/pkg/errors"
)

// ContentType of uploaded bundles.
const ContentType = "application/zip"

// ObjectPutter is the part of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads bundles to one bucket under an optional key prefix.
type S3Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
}

// New creates a publisher that uploads through client.
func New(client ObjectPutter, cfg config.S3Config) *S3Publisher {
	return &S3Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
}

// NewS3 builds an S3 client from cfg. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3Publisher, error) {
	if !cfg.Enabled() {
		return nil, errors.Wrap(errors.ErrPublishFailed, "no bucket configured")
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return New(client, cfg), nil
}

// Key is the object key a bundle file named name is stored under.
func (p *S3Publisher) Key(name string) string {
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Publish uploads the file at bundlePath and returns its s3:// location.
func (p *S3Publisher) Publish(ctx context.Context, bundlePath string) (string, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return "", errors.Wrapf(errors.ErrPublishFailed, "%v", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", errors.Wrapf(errors.ErrPublishFailed, "%v", err)
	}

	key := p.Key(filepath.Base(bundlePath))
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(ContentType),
	})
	if err != nil {
		logger.Error("Failed to upload bundle", logger.Fields{"bucket": p.bucket, "key": key, "error": err.Error()})
		return "", fmt.Errorf("%w: s3://%s/%s: %w", errors.ErrPublishFailed, p.bucket, key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", p.bucket, key)
	logger.Debug("Bundle uploaded", logger.Fields{"location": location, "size": info.Size()})
	return location, nil
}
