package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"pbimirror/internal/config"
	apperrors "pbimirror/internal/errors"
)

// PutObjectAPI is the part of the S3 client the writer needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer stores mirrored files as objects under a key prefix.
type S3Writer struct {
	api    PutObjectAPI
	bucket string
	prefix string
}

// NewS3Writer creates a writer for cfg.Bucket using api.
func NewS3Writer(cfg config.S3Config, api PutObjectAPI) *S3Writer {
	return &S3Writer{
		api:    api,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
}

// NewS3Client builds an S3 client from cfg. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	awsCfg, err := buildAWSConfig(ctx, cfg)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to build AWS config", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func buildAWSConfig(ctx context.Context, cfg config.S3Config) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	return awsconfig.LoadDefaultConfig(ctx, optFns...)
}

// EnsureDir is a no-op: object keys carry the folder chain.
func (w *S3Writer) EnsureDir(_ context.Context, _ string) error {
	return nil
}

func (w *S3Writer) WriteFile(ctx context.Context, rel string, data []byte) (int, error) {
	key, err := w.key(rel)
	if err != nil {
		return 0, err
	}

	_, err = w.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(data)),
	})
	if err != nil {
		return 0, apperrors.NewStorageError("failed to put object", err).
			WithContext("bucket", w.bucket).
			WithContext("key", key)
	}
	return len(data), nil
}

func (w *S3Writer) Location(rel string) string {
	key, err := w.key(rel)
	if err != nil {
		key = rel
	}
	return fmt.Sprintf("s3://%s/%s", w.bucket, key)
}

func (w *S3Writer) key(rel string) (string, error) {
	clean := path.Clean("/" + rel)
	if clean == "/" {
		return "", apperrors.NewStorageError("empty object key", nil).WithContext("path", rel)
	}
	if w.prefix == "" {
		return clean[1:], nil
	}
	return w.prefix + clean, nil
}

// contentType sniffs the body; empty bodies are sent as generic binary.
func contentType(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	return mimetype.Detect(data).String()
}
