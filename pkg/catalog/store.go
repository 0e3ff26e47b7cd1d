package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/offsetsdb/offsetsdb/pkg/duck"
)

// Store writes packaged artifacts and fetches the data-access terms.
// Paths beginning with s3:// go through the S3 API; anything else is
// treated as a local file path so the pipeline can run without object
// storage.
type Store struct {
	log    *slog.Logger
	client *s3.Client
}

// NewStore builds a Store. s3Config may be nil when only local paths
// will be used.
func NewStore(ctx context.Context, log *slog.Logger, s3Config *duck.S3Config) (*Store, error) {
	st := &Store{log: log}
	if s3Config == nil {
		return st, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(s3Config.Region),
	}
	if s3Config.AccessKeyID != "" && s3Config.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3Config.AccessKeyID, s3Config.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}
	st.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3Config.Endpoint != "" {
			endpointURL := s3Config.Endpoint
			if !strings.HasPrefix(endpointURL, "http://") && !strings.HasPrefix(endpointURL, "https://") {
				endpointURL = "https://" + endpointURL
			}
			o.BaseEndpoint = &endpointURL
		}
		o.UsePathStyle = s3Config.URLStyle == "path"
	})
	return st, nil
}

// EnsureBucket creates the bucket behind an s3:// base when it does not
// exist yet. Only used against MinIO style local endpoints; on AWS the
// bucket is provisioned out of band.
func (s *Store) EnsureBucket(ctx context.Context, base string) error {
	bucket, _, err := splitS3URI(base)
	if err != nil {
		return nil
	}
	if s.client == nil {
		return fmt.Errorf("s3 base %s requires S3 configuration", base)
	}
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &bucket}); err == nil {
		return nil
	}
	s.log.Info("creating bucket", "bucket", bucket)
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &bucket}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// Put writes body to path (s3:// or local).
func (s *Store) Put(ctx context.Context, path string, body []byte) error {
	bucket, key, err := splitS3URI(path)
	if err != nil {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return nil
	}
	if s.client == nil {
		return fmt.Errorf("s3 path %s requires S3 configuration", path)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	s.log.Info("uploaded artifact", "path", path, "bytes", len(body))
	return nil
}

// Get reads path (s3:// or local) fully into memory.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	bucket, key, err := splitS3URI(path)
	if err != nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return data, nil
	}
	if s.client == nil {
		return nil, fmt.Errorf("s3 path %s requires S3 configuration", path)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

var errNotS3 = errors.New("not an s3 URI")

func splitS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", errNotS3
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid s3 URI %q", uri)
	}
	return bucket, key, nil
}
