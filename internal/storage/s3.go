package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"vqtlbrowser/internal/errors"
)

// S3Options configures the S3 client. Credentials come from the default AWS chain.
type S3Options struct {
	Region    string
	Endpoint  string // optional; MinIO and other S3-compatible stores
	PathStyle bool
	// HTTPClient replaces the transport; tests use it to fake S3.
	HTTPClient *http.Client
	// Credentials overrides the default chain when set.
	Credentials aws.CredentialsProvider
}

// S3BlobStore implements BlobStore over a single S3 bucket
type S3BlobStore struct {
	client     *s3.Client
	bucketName string
}

// NewS3BlobStore creates a new S3 blob store
func NewS3BlobStore(ctx context.Context, bucketName string, opts S3Options) (*S3BlobStore, error) {
	if bucketName == "" {
		return nil, errors.ConfigInvalid("s3 bucket required")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.Credentials != nil {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(opts.Credentials))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.ExternalServiceError("s3", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		if opts.HTTPClient != nil {
			o.HTTPClient = opts.HTTPClient
		}
	})

	return &S3BlobStore{client: client, bucketName: bucketName}, nil
}

// Provider returns S3 provider type
func (s *S3BlobStore) Provider() StorageProvider {
	return StorageS3
}

// StoreBlob uploads r to key
func (s *S3BlobStore) StoreBlob(ctx context.Context, key string, r io.Reader) error {
	contentType := contentTypeFor(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucketName,
		Key:         &key,
		Body:        r,
		ContentType: &contentType,
	})
	if err != nil {
		return errors.ExternalServiceError("s3", fmt.Errorf("put %s: %w", key, err))
	}
	return nil
}

// GetBlob retrieves from S3
func (s *S3BlobStore) GetBlob(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucketName, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("blob s3://" + s.bucketName + "/" + key)
		}
		return nil, errors.ExternalServiceError("s3", fmt.Errorf("get %s: %w", key, err))
	}
	return out.Body, nil
}

// BlobExists checks S3
func (s *S3BlobStore) BlobExists(ctx context.Context, key string) (bool, error) {
	_, err := s.GetBlobMetadata(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.HasCode(err, errors.CodeNotFound) {
		return false, nil
	}
	return false, err
}

// GetBlobMetadata gets S3 metadata
func (s *S3BlobStore) GetBlobMetadata(ctx context.Context, key string) (*BlobMetadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucketName, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("blob s3://" + s.bucketName + "/" + key)
		}
		return nil, errors.ExternalServiceError("s3", fmt.Errorf("head %s: %w", key, err))
	}

	meta := &BlobMetadata{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
		Provider:    StorageS3,
	}
	if out.LastModified != nil {
		meta.LastModified = *out.LastModified
	}
	return meta, nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if stderrors.As(err, &noKey) || stderrors.As(err, &notFound) {
		return true
	}
	// HeadObject reports a bare 404 without a typed error body.
	return strings.Contains(err.Error(), "StatusCode: 404")
}
