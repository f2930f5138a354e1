// Package artifacts uploads failure artifacts (screenshots) to S3-compatible
// storage. For tests, use gofakes3 through TestStore.
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kuitang/plextera-e2e/internal/config"
	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/obs"
)

// ErrObjectNotFound is returned when a requested artifact does not exist.
var ErrObjectNotFound = errors.New("artifacts: object not found")

// Store writes artifacts under <run-id>/<test-name>/ in one bucket.
type Store struct {
	s3Client   *s3.Client
	bucketName string
	runID      string
	now        func() time.Time
}

// New builds a store from the artifacts config. It returns (nil, nil) when
// no bucket is configured; a nil *Store discards uploads.
func New(ctx context.Context, cfg config.ArtifactsConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.FailedPrecondition, "artifacts: load AWS config", err)
	}
	s3Client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewFromS3Client(s3Client, cfg.Bucket), nil
}

// NewFromS3Client creates a store from an existing S3 client.
func NewFromS3Client(s3Client *s3.Client, bucketName string) *Store {
	return &Store{s3Client: s3Client, bucketName: bucketName, runID: obs.RunID(), now: time.Now}
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._/-]+`)

func (s *Store) prefix(test string) string {
	name := unsafeKeyChars.ReplaceAllString(test, "_")
	name = strings.Trim(name, "/")
	if name == "" {
		name = "unnamed"
	}
	return s.runID + "/" + name + "/"
}

// Key returns the object key of an artifact taken now for test.
func (s *Store) Key(test, ext string) string {
	return s.prefix(test) + strconv.FormatInt(s.now().UnixNano(), 10) + "." + ext
}

// SaveScreenshot uploads a PNG screenshot for test and returns its key.
func (s *Store) SaveScreenshot(ctx context.Context, test string, png []byte) (string, error) {
	if s == nil {
		return "", nil
	}
	key := s.Key(test, "png")
	if err := s.put(ctx, key, png, "image/png"); err != nil {
		return "", err
	}
	obs.From(ctx).Info("artifact_uploaded", "bucket", s.bucketName, "key", key, "bytes", len(png))
	return key, nil
}

func (s *Store) put(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("artifacts: put object %q", key), err)
	}
	return nil
}

// Get retrieves an artifact. Returns ErrObjectNotFound if the key does not
// exist.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &notFound) {
			return nil, errs.Wrap(errs.NotFound, fmt.Sprintf("artifacts: %q", key), ErrObjectNotFound)
		}
		return nil, errs.Wrap(errs.Unavailable, fmt.Sprintf("artifacts: get object %q", key), err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, fmt.Sprintf("artifacts: read object %q", key), err)
	}
	return data, nil
}

// List returns the keys of this run's artifacts for test.
func (s *Store) List(ctx context.Context, test string) ([]string, error) {
	prefix := s.prefix(test)
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errs.Wrap(errs.Unavailable, "artifacts: list "+prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// BucketName returns the configured bucket name.
func (s *Store) BucketName() string {
	return s.bucketName
}
