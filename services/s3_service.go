package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/kendall-kelly/cosmetics-store-api/config"
	"github.com/kendall-kelly/cosmetics-store-api/utils"
)

// PresignedURLExpiry is how long a presigned object URL stays valid
const PresignedURLExpiry = time.Hour

// S3Interface defines the object storage operations the application needs
type S3Interface interface {
	UploadObject(ctx context.Context, key, contentType string, body io.Reader) error
	GetPresignedURL(ctx context.Context, key string) (string, error)
	GetPublicURL(key string) string
	DeleteFile(ctx context.Context, key string) error
}

// S3Service stores objects in an S3 bucket
type S3Service struct {
	client *s3.Client
	bucket string
	region string
}

// InitS3Service picks S3 when a bucket is configured and the local upload directory otherwise
func InitS3Service(ctx context.Context, cfg *appConfig.Config) (S3Interface, error) {
	if !cfg.UsesS3() {
		return NewLocalStorage(cfg.UploadDir), nil
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Service{
		client: s3.NewFromConfig(awsConfig),
		bucket: cfg.AWSS3Bucket,
		region: cfg.AWSRegion,
	}, nil
}

// UploadObject writes body to key
func (s *S3Service) UploadObject(ctx context.Context, key, contentType string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// GetPresignedURL generates a URL for a private object, valid for PresignedURLExpiry
func (s *S3Service) GetPresignedURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	presignClient := s3.NewPresignClient(s.client)
	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = PresignedURLExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return request.URL, nil
}

// GetPublicURL returns the virtual-hosted URL of an object in a public bucket
func (s *S3Service) GetPublicURL(key string) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, (&url.URL{Path: key}).EscapedPath())
}

// DeleteFile deletes an object from S3
func (s *S3Service) DeleteFile(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// LocalStorage keeps objects on disk under a directory and serves them from /api/v1/uploads
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a disk-backed store rooted at dir
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{dir: dir}
}

// UploadObject writes body to dir/key
func (l *LocalStorage) UploadObject(ctx context.Context, key, contentType string, body io.Reader) error {
	return utils.SaveFile(l.dir, key, body)
}

// GetPresignedURL returns the local serving path; local files are not access-controlled
func (l *LocalStorage) GetPresignedURL(ctx context.Context, key string) (string, error) {
	return utils.GetImageURL(key), nil
}

// GetPublicURL returns the local serving path
func (l *LocalStorage) GetPublicURL(key string) string {
	return utils.GetImageURL(key)
}

// DeleteFile removes dir/key. Missing files are not an error.
func (l *LocalStorage) DeleteFile(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if !utils.IsSafeObjectKey(key) {
		return fmt.Errorf("invalid storage key %q", key)
	}
	err := os.Remove(filepath.Join(l.dir, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete local file: %w", err)
	}
	return nil
}
