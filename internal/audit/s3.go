package audit

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"walletnotify/internal/config"
	"walletnotify/internal/model"
)

// ObjectPutter is the subset of the S3 client the sink needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink stores webhooks in an S3-compatible bucket (AWS S3, Cloudflare R2, MinIO).
type S3Sink struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

func NewS3Sink(client ObjectPutter, bucket, prefix string) *S3Sink {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Sink{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// NewS3SinkFromConfig builds the client from AUDIT_S3_* settings.
// Static credentials are optional; without them the default AWS chain applies.
func NewS3SinkFromConfig(ctx context.Context, cfg *config.Config) (*S3Sink, error) {
	if cfg.AuditS3Bucket == "" {
		return nil, fmt.Errorf("missing AUDIT_S3_BUCKET")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AuditS3Region),
	}
	if cfg.AuditS3AccessKeyID != "" && cfg.AuditS3SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AuditS3AccessKeyID, cfg.AuditS3SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for audit sink: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AuditS3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AuditS3Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3Sink(client, cfg.AuditS3Bucket, cfg.AuditS3Prefix), nil
}

func (s *S3Sink) Save(ctx context.Context, event *model.WebhookEvent) error {
	data, err := encode(event)
	if err != nil {
		return err
	}

	key := s.prefix + FileName(event, s.now())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload audit object: %w", err)
	}
	return nil
}
