package s3

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"
)

type Option func(*Repository)

func WithRegion(region string) Option {
	return func(r *Repository) {
		r.Region = region
	}
}

func WithBucket(bucket string) Option {
	return func(r *Repository) {
		r.Bucket = bucket
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

func WithForcePathStyle(forcePathStyle bool) Option {
	return func(r *Repository) {
		r.ForcePathStyle = forcePathStyle
	}
}

func WithEndpoint(endpoint string) Option {
	return func(r *Repository) {
		r.Endpoint = endpoint
	}
}

// WithStaticCredentials bypasses the default AWS credential chain.
func WithStaticCredentials(id, secret string) Option {
	return func(r *Repository) {
		r.creds = credentials.NewStaticCredentials(id, secret, "")
	}
}

func WithContentType(ct string) Option {
	return func(r *Repository) {
		r.ContentType = ct
	}
}

// Repository uploads archive files to a single bucket. Keys are used as
// given.
type Repository struct {
	logger   *zap.Logger
	uploader *s3manager.Uploader
	creds    *credentials.Credentials

	Endpoint       string
	Region         string
	Bucket         string
	ContentType    string
	ForcePathStyle bool
}

func New(opts ...Option) (*Repository, error) {
	r := &Repository{
		logger: zap.NewNop(),
	}

	for _, o := range opts {
		o(r)
	}

	if r.Bucket == "" {
		return nil, fmt.Errorf("s3 repository: bucket is required")
	}

	awsConfig := &aws.Config{
		Region:           aws.String(r.Region),
		S3ForcePathStyle: aws.Bool(r.ForcePathStyle),
	}
	if r.Endpoint != "" {
		awsConfig.Endpoint = aws.String(r.Endpoint)
	}
	if r.creds != nil {
		awsConfig.Credentials = r.creds
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, err
	}
	r.uploader = s3manager.NewUploader(sess)

	return r, nil
}

func (r *Repository) Write(ctx context.Context, key string, reader io.Reader) error {
	r.logger.Debug(
		"s3 repository write",
		zap.String("key", key),
		zap.String("bucket", r.Bucket),
	)

	input := &s3manager.UploadInput{
		Bucket: aws.String(r.Bucket),
		Key:    aws.String(key),
		// io.Reader is buffered per part, an io.ReadSeeker would avoid it.
		Body: bufio.NewReader(reader),
	}
	if r.ContentType != "" {
		input.ContentType = aws.String(r.ContentType)
	}

	out, err := r.uploader.UploadWithContext(ctx, input)
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", r.Bucket, key, err)
	}

	r.logger.Info("archive uploaded", zap.String("location", out.Location))
	return nil
}
