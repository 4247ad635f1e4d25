// Package s3 stores blobs in an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/iho/chequer/internal/domain"
)

const scheme = "s3://"

// API is the subset of the S3 client the store uses.
type API interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
}

// Store implements usecase.BlobStore. Handles look like s3://<bucket>/<key>.
type Store struct {
	api    API
	bucket string
}

// New creates a Store writing to bucket.
func New(api API, bucket string) *Store {
	return &Store{api: api, bucket: bucket}
}

// NewClient builds an S3 client from the default AWS credential chain. A
// non-empty endpoint targets an S3-compatible service such as MinIO.
func NewClient(ctx context.Context, region, endpoint string) (*awss3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Put uploads data under key. Existing keys are never overwritten.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.api.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if apiCode(err) == "PreconditionFailed" {
			return "", domain.ErrBlobExists
		}
		return "", fmt.Errorf("put s3 object %s: %w", key, err)
	}
	return s.HandleFor(key), nil
}

// Get downloads the object behind handle.
func (s *Store) Get(ctx context.Context, handle string) ([]byte, error) {
	bucket, key, err := parseHandle(handle)
	if err != nil {
		return nil, err
	}

	out, err := s.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrBlobNotFound
		}
		return nil, fmt.Errorf("get s3 object %s: %w", handle, err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

// Exists reports whether the object behind handle exists.
func (s *Store) Exists(ctx context.Context, handle string) (bool, error) {
	bucket, key, err := parseHandle(handle)
	if err != nil {
		return false, nil
	}

	_, err = s.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head s3 object %s: %w", handle, err)
	}
	return true, nil
}

// HandleFor returns the handle for key in the store's bucket.
func (s *Store) HandleFor(key string) string {
	return scheme + s.bucket + "/" + key
}

func parseHandle(handle string) (string, string, error) {
	rest, ok := strings.CutPrefix(handle, scheme)
	if !ok {
		return "", "", domain.ErrBlobNotFound
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", domain.ErrBlobNotFound
	}
	return bucket, key, nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	return apiCode(err) == "NotFound"
}

func apiCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
