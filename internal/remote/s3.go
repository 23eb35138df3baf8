package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"mdnotes/internal/config"
	"mdnotes/internal/notes"
)

// S3BlobStore keeps blobs in an S3 (or S3 compatible) bucket under an
// optional key prefix.
type S3BlobStore struct {
	client   *s3.Client
	uploader *manager.Uploader
	sts      *sts.Client
	creds    aws.CredentialsProvider
	bucket   string
	prefix   string
}

// NewS3BlobStore loads AWS configuration the usual way (environment, shared
// config, instance role) with the overrides from cfg applied.
func NewS3BlobStore(ctx context.Context, cfg config.RemoteConfig) (*S3BlobStore, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 remote requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.S3Profile))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3BlobStore{
		client:   client,
		uploader: manager.NewUploader(client),
		sts:      sts.NewFromConfig(awsCfg),
		creds:    awsCfg.Credentials,
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
	}, nil
}

func (s *S3BlobStore) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Authenticated is true when credentials can be retrieved.
func (s *S3BlobStore) Authenticated(ctx context.Context) (bool, error) {
	if s.creds == nil {
		return false, nil
	}
	if _, err := s.creds.Retrieve(ctx); err != nil {
		return false, nil
	}
	return true, nil
}

// Identity is the caller ARN reported by STS.
func (s *S3BlobStore) Identity(ctx context.Context) (string, error) {
	out, err := s.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("get caller identity: %w", err)
	}
	return aws.ToString(out.Arn), nil
}

func (s *S3BlobStore) Stat(ctx context.Context, name string) (*notes.ObjectRef, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("head s3://%s/%s: %w", s.bucket, s.key(name), err)
	}

	ref := &notes.ObjectRef{
		Name: name,
		Size: aws.ToInt64(out.ContentLength),
		ETag: aws.ToString(out.ETag),
	}
	if out.LastModified != nil {
		ref.ModifiedAt = out.LastModified.UTC()
	}
	return ref, nil
}

func (s *S3BlobStore) Get(ctx context.Context, name string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, s.key(name), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, s.key(name), err)
	}
	return data, nil
}

func (s *S3BlobStore) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, s.key(name), err)
	}
	return nil
}

// isNotFound recognizes a missing key. HeadObject has no body, so the
// service reports a bare NotFound code rather than NoSuchKey.
func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

var _ BlobStore = (*S3BlobStore)(nil)
