package objstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds connection settings for self-hosted (MinIO-compatible)
// object storage.
type S3Config struct {
	Region       string
	BaseEndpoint string
	Bucket       string
	AccessKey    string
	SecretKey    string
}

// S3Store issues presigned GET/PUT URLs against self-hosted object storage,
// for deployments where the client owns the blob store instead of asking
// the backend API to resolve URLs.
type S3Store struct {
	cfg S3Config
}

func NewS3Store(cfg S3Config) *S3Store {
	return &S3Store{cfg: cfg}
}

// ObjectKey maps a file id to its object key. The mapping must stay
// deterministic: the uploader and every later downloader derive the key
// independently from the manifest's file id.
func ObjectKey(fileID string) string {
	return "attachments/" + fileID
}

func (s *S3Store) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(s.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.cfg.AccessKey,
			s.cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return s3.NewPresignClient(client), nil
}

// PresignPut returns a presigned PUT URL for uploading one ciphertext blob
// under the given object key.
func (s *S3Store) PresignPut(ctx context.Context, key string, expires time.Duration) (string, error) {
	pc, err := s.presignClient(ctx)
	if err != nil {
		return "", err
	}

	req, err := pc.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign put: %w", err)
	}

	return req.URL, nil
}

// PresignGet returns a presigned GET URL for an existing ciphertext blob.
// The URL is time-limited and must not be cached beyond one decryption
// attempt.
func (s *S3Store) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	pc, err := s.presignClient(ctx)
	if err != nil {
		return "", err
	}

	req, err := pc.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}

	return req.URL, nil
}

// S3Resolver resolves download URLs by presigning GETs against self-hosted
// object storage, replacing the backend API resolver when the client owns
// the blob store.
type S3Resolver struct {
	Store   *S3Store
	Expires time.Duration
}

func (r *S3Resolver) GetDownloadURL(ctx context.Context, fileID string) (string, error) {
	return r.Store.PresignGet(ctx, ObjectKey(fileID), r.Expires)
}
