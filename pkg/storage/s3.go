package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of [s3.Client] that S3Store calls. Tests supply
// an in-memory fake.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Options configures NewS3Client.
type S3Options struct {
	Region string
	// Endpoint is the base URL of an S3-compatible service. Empty means AWS.
	Endpoint string
	// PathStyle addresses buckets as a path segment, as MinIO expects.
	PathStyle bool

	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds an [s3.Client] with static credentials.
func NewS3Client(opts S3Options) *s3.Client {
	return s3.New(s3.Options{
		Region:       opts.Region,
		UsePathStyle: opts.PathStyle,
		BaseEndpoint: nilIfEmpty(opts.Endpoint),
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     opts.AccessKeyID,
				SecretAccessKey: opts.SecretAccessKey,
				Source:          "oggopus",
			}, nil
		}),
	})
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

// S3Store serves streams from a bucket on AWS or a compatible service
// such as MinIO. Paths become object keys below prefix.
type S3Store struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3 returns a store over bucket. An empty prefix maps paths to keys
// unchanged.
func NewS3(client S3Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(path string) string {
	if s.prefix == "" {
		return path
	}
	return s.prefix + "/" + path
}

// Open is OpenAt with offset 0.
func (s *S3Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return s.OpenAt(ctx, path, 0)
}

// OpenAt issues a GetObject, with an open-ended Range header when offset
// is positive. A missing key wraps os.ErrNotExist.
func (s *S3Store) OpenAt(ctx context.Context, path string, offset int64) (io.ReadCloser, error) {
	if offset < 0 {
		return nil, fmt.Errorf("storage: negative offset %d", offset)
	}
	in := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	}
	if offset > 0 {
		in.Range = aws.String("bytes=" + strconv.FormatInt(offset, 10) + "-")
	}
	out, err := s.client.GetObject(ctx, in)
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("storage: read %s: %w", path, os.ErrNotExist)
		}
		return nil, err
	}
	return out.Body, nil
}

// Size is the ContentLength reported by HeadObject.
func (s *S3Store) Size(ctx context.Context, path string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return 0, fmt.Errorf("storage: stat %s: %w", path, os.ErrNotExist)
		}
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Create starts a PutObject whose body is the read side of a pipe and
// returns the write side. Nothing is stored until Close, which waits for
// the request and reports its error.
func (s *S3Store) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	w := &s3Writer{pw: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		_, w.uploadErr = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.key(path)),
			Body:        pr,
			ContentType: aws.String("audio/ogg"),
		})
		// Unblock pending writes if the upload failed early.
		pr.CloseWithError(w.uploadErr)
	}()
	return w, nil
}

type s3Writer struct {
	pw        *io.PipeWriter
	done      chan struct{}
	uploadErr error
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3Writer) Close() error {
	w.pw.Close()
	<-w.done
	return w.uploadErr
}

// HeadObject reports NotFound, GetObject reports NoSuchKey.
func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

var _ Store = (*S3Store)(nil)
