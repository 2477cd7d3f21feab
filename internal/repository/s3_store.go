package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the minimal S3 interface required by Store.
// Defined here for testability.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var (
	// ErrNotFound reports a missing object key.
	ErrNotFound = errors.New("repository: object not found")
	// ErrKeyExists reports a rejected overwrite of a write-once object.
	ErrKeyExists = errors.New("repository: object already exists")
)

// PutOptions carries the object headers and metadata attached on write.
type PutOptions struct {
	ContentType  string
	CacheControl string
	Metadata     map[string]string
	// IfNoneMatch makes the put conditional on the key not existing,
	// turning immutable-by-convention into an enforced write-once contract.
	IfNoneMatch bool
}

// ListResult holds one page of a prefix listing.
type ListResult struct {
	Keys           []string
	CommonPrefixes []string
	Truncated      bool
}

// Store wraps an S3-compatible bucket for journal objects.
type Store struct {
	api    s3API
	bucket string
}

// New creates a new object Store.
func New(api s3API, bucket string) (*Store, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("repository: bucket must not be empty")
	}
	return &Store{api: api, bucket: bucket}, nil
}

// Put writes an object. With opts.IfNoneMatch set, an existing key makes the
// put fail with ErrKeyExists instead of overwriting.
func (s *Store) Put(ctx context.Context, key string, body []byte, opts PutOptions) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		in.CacheControl = aws.String(opts.CacheControl)
	}
	if len(opts.Metadata) > 0 {
		in.Metadata = opts.Metadata
	}
	if opts.IfNoneMatch {
		in.IfNoneMatch = aws.String("*")
	}

	if _, err := s.api.PutObject(ctx, in); err != nil {
		if hasStatus(err, http.StatusPreconditionFailed) {
			return fmt.Errorf("repository: Put %s: %w", key, ErrKeyExists)
		}
		return fmt.Errorf("repository: Put %s: %w", key, err)
	}
	return nil
}

// Get fetches an object body. Missing keys map to ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		// Some S3-compatible backends return a bare 404 instead of NoSuchKey.
		if errors.As(err, &nsk) || hasStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("repository: Get %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("repository: Get %s: %w", key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("repository: Get %s: read body: %w", key, err)
	}
	return body, nil
}

// List returns one page of keys under prefix. A non-empty delimiter groups
// keys into common prefixes, which is how conversations are enumerated.
func (s *Store) List(ctx context.Context, prefix, delimiter string, maxKeys int32) (ListResult, error) {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		in.Delimiter = aws.String(delimiter)
	}
	if maxKeys > 0 {
		in.MaxKeys = aws.Int32(maxKeys)
	}

	out, err := s.api.ListObjectsV2(ctx, in)
	if err != nil {
		return ListResult{}, fmt.Errorf("repository: List %s: %w", prefix, err)
	}

	res := ListResult{Truncated: out.IsTruncated != nil && *out.IsTruncated}
	for _, obj := range out.Contents {
		if obj.Key != nil {
			res.Keys = append(res.Keys, *obj.Key)
		}
	}
	for _, cp := range out.CommonPrefixes {
		if cp.Prefix != nil {
			res.CommonPrefixes = append(res.CommonPrefixes, *cp.Prefix)
		}
	}
	return res, nil
}

// IsTransient reports whether an error is worth retrying: 5xx-class or
// throttling responses, and network-level failures. Validation and
// configuration errors never classify as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		code := re.HTTPStatusCode()
		return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func hasStatus(err error, code int) bool {
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == code
}
