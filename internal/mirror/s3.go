// Package mirror copies saved captures to S3-compatible object storage.
package mirror

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ttvsnap/ttvsnap/internal/errors"
	"github.com/ttvsnap/ttvsnap/internal/models"
)

// Config describes the target bucket. Empty credentials fall back to the
// default AWS credential chain.
type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	// BaseDir is the capture output directory; keys mirror paths relative to it.
	BaseDir string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror uploads capture files.
type S3Mirror struct {
	client  objectPutter
	bucket  string
	prefix  string
	baseDir string
}

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg Config) (*S3Mirror, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if strings.TrimSpace(cfg.AccessKeyID) != "" || strings.TrimSpace(cfg.SecretAccessKey) != "" {
		if strings.TrimSpace(cfg.AccessKeyID) == "" || strings.TrimSpace(cfg.SecretAccessKey) == "" {
			return nil, fmt.Errorf("s3 access key id and secret must be set together")
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		if endpoint != "" {
			options.BaseEndpoint = &endpoint
		}
		options.UsePathStyle = cfg.UsePathStyle
	})

	return newWithClient(client, cfg), nil
}

func newWithClient(client objectPutter, cfg Config) *S3Mirror {
	return &S3Mirror{
		client:  client,
		bucket:  strings.TrimSpace(cfg.Bucket),
		prefix:  strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		baseDir: cfg.BaseDir,
	}
}

// Name identifies the sink in logs and metrics.
func (m *S3Mirror) Name() string {
	return "s3"
}

// Publish uploads the capture and its thumbnail, if any.
func (m *S3Mirror) Publish(ctx context.Context, c models.Capture) error {
	if err := m.upload(ctx, c.Path); err != nil {
		return err
	}
	if c.ThumbnailPath != "" {
		return m.upload(ctx, c.ThumbnailPath)
	}
	return nil
}

// Key returns the object key for a local file.
func (m *S3Mirror) Key(localPath string) string {
	rel := (&models.Capture{Path: localPath}).RelativePath(m.baseDir)
	if m.prefix == "" {
		return rel
	}
	return path.Join(m.prefix, rel)
}

func (m *S3Mirror) upload(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return &errors.ErrFileRead{Path: localPath, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &errors.ErrFileRead{Path: localPath, Err: err}
	}

	key := m.Key(localPath)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(ContentType(localPath)),
	})
	if err != nil {
		return fmt.Errorf("put object %s failed: %w", key, err)
	}
	return nil
}

// ContentType guesses the MIME type from the file extension.
func ContentType(localPath string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
