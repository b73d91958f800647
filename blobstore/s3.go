package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rotisserie/eris"
)

// S3Config holds S3/MinIO connection settings for a blob bucket.
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// S3ConfigFromEnv reads an S3Config from MAILBOX_S3_* environment variables.
// Returns nil if MAILBOX_S3_ENDPOINT is unset, signaling the caller should
// fall back to FSStore.
func S3ConfigFromEnv() *S3Config {
	endpoint := os.Getenv("MAILBOX_S3_ENDPOINT")
	if endpoint == "" {
		return nil
	}
	useSSL := true
	if v := os.Getenv("MAILBOX_S3_USE_SSL"); v != "" {
		useSSL, _ = strconv.ParseBool(v)
	}
	return &S3Config{
		Endpoint:        normalizeEndpoint(endpoint, useSSL),
		AccessKeyID:     os.Getenv("MAILBOX_S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("MAILBOX_S3_SECRET_ACCESS_KEY"),
		Bucket:          envOr("MAILBOX_S3_BUCKET", "mailbox-blobs"),
		UseSSL:          useSSL,
		Region:          envOr("MAILBOX_AWS_REGION", "us-east-1"),
	}
}

func normalizeEndpoint(endpoint string, useSSL bool) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	scheme := "https"
	if !useSSL {
		scheme = "http"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return scheme + "://" + endpoint
	}
	return endpoint
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// S3Store stores blobs in an S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store builds an S3Store from cfg, with keys placed under prefix.
func NewS3Store(cfg *S3Config, prefix string) (*S3Store, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, eris.New("blobstore: S3 endpoint required")
	}
	if cfg.Bucket == "" {
		return nil, eris.New("blobstore: S3 bucket required")
	}

	credProvider := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, opts ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: cfg.Endpoint, HostnameImmutable: true, SigningRegion: cfg.Region}, nil
	})

	client := s3.NewFromConfig(aws.Config{
		Region:                      cfg.Region,
		Credentials:                 credProvider,
		EndpointResolverWithOptions: resolver,
	}, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

// EnsureBucket creates the bucket if it does not already exist.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var conflict *types.BucketAlreadyOwnedByYou
		if errors.As(err, &conflict) {
			return nil
		}
		return eris.Wrap(err, "blobstore: create bucket")
	}
	return nil
}

func (s *S3Store) Write(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return eris.Wrap(err, "blobstore: s3 put")
	}
	return nil
}

func (s *S3Store) Read(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "blobstore: s3 get")
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, eris.Wrap(err, "blobstore: s3 read body")
	}
	return data, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		return eris.Wrap(err, "blobstore: s3 delete")
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.prefix + prefix
	var keys []string
	var contToken *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(fullPrefix),
			ContinuationToken: contToken,
		})
		if err != nil {
			return nil, eris.Wrap(err, "blobstore: s3 list")
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, strings.TrimPrefix(*obj.Key, s.prefix))
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		contToken = out.NextContinuationToken
	}
	return keys, nil
}

// New returns an S3Store if MAILBOX_S3_ENDPOINT is configured, otherwise an
// FSStore rooted at dataDir.
func New(dataDir string) (Store, error) {
	if cfg := S3ConfigFromEnv(); cfg != nil {
		store, err := NewS3Store(cfg, "blobs")
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(context.Background()); err != nil {
			return nil, err
		}
		return store, nil
	}
	return NewFSStore(dataDir), nil
}
