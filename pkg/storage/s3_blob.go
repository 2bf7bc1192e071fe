package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/jdziat/durable-training-queue/pkg/core"
)

// s3VersionKey is stored as the x-amz-meta-version object header.
const s3VersionKey = "version"

// S3API is the subset of the S3 client used by S3BlobStore.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Config describes an S3 or S3-compatible bucket.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // empty for AWS; set for MinIO, R2 and friends
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// NewS3Client builds an S3 client. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: endpoint, HostnameImmutable: cfg.UsePathStyle}, nil
		})
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// S3BlobStore implements BlobStore on an S3 bucket. The version lives in
// object metadata.
//
// PutIf relies on S3 conditional writes: creates carry If-None-Match: *, and
// updates carry If-Match with the ETag of the object whose version was
// checked. The bucket rejects the write with 412 if another writer got there
// first.
type S3BlobStore struct {
	client S3API
	bucket string
}

var _ BlobStore = (*S3BlobStore)(nil)

// NewS3BlobStore creates a blob store on bucket.
func NewS3BlobStore(client S3API, bucket string) *S3BlobStore {
	return &S3BlobStore{client: client, bucket: bucket}
}

// Get implements BlobStore.
func (s *S3BlobStore) Get(ctx context.Context, key string) ([]byte, int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, 0, core.ErrObjectNotFound
		}
		return nil, 0, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}
	version, err := parseS3Version(out.Metadata)
	if err != nil {
		return nil, 0, err
	}
	return data, version, nil
}

// Version implements BlobStore.
func (s *S3BlobStore) Version(ctx context.Context, key string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("head s3://%s/%s: %w", s.bucket, key, err)
	}
	return parseS3Version(out.Metadata)
}

// Put implements BlobStore.
func (s *S3BlobStore) Put(ctx context.Context, key string, data []byte, version int64) error {
	return s.put(ctx, key, data, version)
}

// PutIf implements BlobStore.
func (s *S3BlobStore) PutIf(ctx context.Context, key string, data []byte, version, expected int64) error {
	if expected == 0 {
		return s.put(ctx, key, data, version, smithyhttp.AddHeaderValue("If-None-Match", "*"))
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return core.ErrStaleQueue
		}
		return fmt.Errorf("head s3://%s/%s: %w", s.bucket, key, err)
	}
	current, err := parseS3Version(head.Metadata)
	if err != nil {
		return err
	}
	if current != expected {
		return core.ErrStaleQueue
	}

	var cond []func(*middleware.Stack) error
	if etag := aws.ToString(head.ETag); etag != "" {
		cond = append(cond, smithyhttp.AddHeaderValue("If-Match", etag))
	}
	return s.put(ctx, key, data, version, cond...)
}

func (s *S3BlobStore) put(ctx context.Context, key string, data []byte, version int64, cond ...func(*middleware.Stack) error) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{s3VersionKey: strconv.FormatInt(version, 10)},
	}, s3.WithAPIOptions(cond...))
	if err != nil {
		if len(cond) > 0 && isS3PreconditionFailed(err) {
			return core.ErrStaleQueue
		}
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func parseS3Version(meta map[string]string) (int64, error) {
	raw, ok := meta[s3VersionKey]
	if !ok {
		// Objects uploaded by hand carry no version header.
		return 1, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid object version %q: %w", raw, err)
	}
	return v, nil
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

// isS3PreconditionFailed matches a rejected conditional write. S3 answers
// 409 when a concurrent conditional write to the same key is in flight.
func isS3PreconditionFailed(err error) bool {
	var respErr *awshttp.ResponseError
	if !errors.As(err, &respErr) {
		return false
	}
	code := respErr.HTTPStatusCode()
	return code == http.StatusPreconditionFailed || code == http.StatusConflict
}
