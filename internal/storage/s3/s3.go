// Package s3 implements the storage backend over AWS S3 or any
// S3-compatible server (MinIO, LocalStack). It is the only backend with
// native multi-part uploads, so buffered writes stream parts concurrently
// instead of holding the object in memory.
package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/objstream/objstream-go/internal/credentials"
	"github.com/objstream/objstream-go/internal/stream"
)

const (
	// minPartSize is the S3 minimum for every part but the last (5MB).
	minPartSize = 5 * 1024 * 1024

	// maxPartSize is the S3 maximum part size (5GB).
	maxPartSize = 5 * 1024 * 1024 * 1024
)

// Options configures an S3 backend.
type Options struct {
	Region    string
	Bucket    string
	Endpoint  string // non-AWS endpoint; empty selects AWS
	PathStyle bool   // required by most S3-compatible servers

	// Credentials are static credentials resolved from the passwd file or
	// the environment. Nil selects the SDK default chain.
	Credentials *credentials.Credentials
}

// Backend stores objects in one S3 bucket.
type Backend struct {
	bucket string
	client *s3.Client
}

// New builds the SDK client and binds the backend to opts.Bucket.
func New(ctx context.Context, opts Options) (*Backend, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 backend requires a bucket")
	}

	cfgOptions := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		cfgOptions = append(cfgOptions, awsconfig.WithRegion(opts.Region))
	}
	if opts.Credentials != nil && opts.Credentials.IsValid() {
		cfgOptions = append(cfgOptions, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			)))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOptions...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	clientOptions := []func(*s3.Options){}
	if opts.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = opts.PathStyle
		})
	} else if opts.PathStyle {
		clientOptions = append(clientOptions, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Backend{
		bucket: opts.Bucket,
		client: s3.NewFromConfig(cfg, clientOptions...),
	}, nil
}

// Object returns a handle for key.
func (b *Backend) Object(key string) stream.Object {
	return &object{key: key, b: b}
}

// Limits reports the S3 part size bounds.
func (b *Backend) Limits() stream.Limits {
	return stream.Limits{
		DefaultBufferSize: stream.DefaultBufferSize,
		MinBufferSize:     minPartSize,
		MaxBufferSize:     maxPartSize,
	}
}

// Close is a no-op; the SDK client holds no connection state to release.
func (b *Backend) Close() error { return nil }
