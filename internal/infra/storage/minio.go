package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Options configures the MinIO document store.
type Options struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicRead    bool
	PresignExpiry time.Duration
}

type Store struct {
	client     *minio.Client
	bucketName string
	endpoint   string
	useSSL     bool
	publicRead bool
	expiry     time.Duration
}

// New buat koneksi MinIO, tanpa cek bucket
func New(opts Options) (*Store, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	expiry := opts.PresignExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Store{
		client:     cli,
		bucketName: opts.Bucket,
		endpoint:   opts.Endpoint,
		useSSL:     opts.UseSSL,
		publicRead: opts.PublicRead,
		expiry:     expiry,
	}, nil
}

// EnsureBucket pastikan bucket ada
func (s *Store) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: region}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// Upload stores the object and returns a URL the extractor can fetch.
func (s *Store) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if s.publicRead {
		return s.PublicURL(key), nil
	}
	return s.PresignedURL(ctx, key)
}

// PresignedURL signs a GET for key valid for the configured expiry.
func (s *Store) PresignedURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// PublicURL only works when the bucket policy allows anonymous reads.
func (s *Store) PublicURL(key string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucketName, key)
}

// Ping is used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}
