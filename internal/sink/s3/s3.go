// Package s3 uploads artifacts to an S3-compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"ferry/internal/config"
	"ferry/internal/sink"
)

// PutObjectAPI is the subset of the S3 client the sink uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// HeadBucketAPI is implemented by clients that can check the bucket.
type HeadBucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Sink stores each part as an object under bucket/prefix/<folder>/<file>.
type Sink struct {
	client  PutObjectAPI
	bucket  string
	prefix  string
	timeout time.Duration
}

// New builds an S3 client from cfg. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg config.S3, timeout time.Duration) (*Sink, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 sink requires bucket")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix, timeout), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client PutObjectAPI, bucket, prefix string, timeout time.Duration) *Sink {
	return &Sink{
		client:  client,
		bucket:  strings.TrimSpace(bucket),
		prefix:  strings.Trim(strings.TrimSpace(prefix), "/"),
		timeout: timeout,
	}
}

// Name implements sink.Sink.
func (s *Sink) Name() string { return "s3" }

// Check issues HeadBucket when the client supports it.
func (s *Sink) Check(ctx context.Context) error {
	head, ok := s.client.(HeadBucketAPI)
	if !ok {
		return nil
	}
	if _, err := head.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}
	return nil
}

// ObjectKey returns the key a file from folderPath is stored under.
func (s *Sink) ObjectKey(folderPath, filePath string) string {
	return path.Join(s.prefix, strings.Trim(folderPath, "/"), filepath.Base(filePath))
}

// Upload puts req.Path and returns its object key.
func (s *Sink) Upload(ctx context.Context, req sink.Request) (sink.Ref, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	file, err := os.Open(req.Path)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat upload: %w", err)
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(req.Path); err == nil && mt != nil {
		contentType = mt.String()
	}

	key := s.ObjectKey(req.FolderPath, req.Path)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	}
	if req.Caption != "" {
		input.Metadata = map[string]string{"caption": url.QueryEscape(req.Caption)}
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	if req.Progress != nil {
		req.Progress(info.Size())
	}
	return sink.Ref(key), nil
}
