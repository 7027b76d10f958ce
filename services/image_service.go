package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/cosmetics-store-api/utils"
)

// ImageService handles validated uploads of payment proofs, product photos and avatars
type ImageService interface {
	// UploadPaymentProof stores a transfer slip for an order and returns its storage key
	UploadPaymentProof(ctx context.Context, orderID string, fileHeader *multipart.FileHeader) (string, error)

	// UploadProductImage stores a catalogue photo and returns its storage key
	UploadProductImage(ctx context.Context, fileHeader *multipart.FileHeader) (string, error)

	// UploadAvatar stores a profile picture and returns its storage key
	UploadAvatar(ctx context.Context, userID string, fileHeader *multipart.FileHeader) (string, error)

	// GetImageURL returns a short-lived URL for a private object
	GetImageURL(ctx context.Context, imageKey string) (string, error)

	// GetPublicURL returns a permanent URL for a public object
	GetPublicURL(imageKey string) string

	// DeleteImage removes an image from storage
	DeleteImage(ctx context.Context, imageKey string) error
}

// S3ImageService implements ImageService on top of an S3Interface
type S3ImageService struct {
	storage S3Interface
	now     func() time.Time
}

var imageServiceInstance ImageService

// NewImageService creates an image service writing to storage
func NewImageService(storage S3Interface) *S3ImageService {
	return &S3ImageService{storage: storage, now: time.Now}
}

// InitImageService initializes the global image service with the given storage
func InitImageService(storage S3Interface) ImageService {
	imageServiceInstance = NewImageService(storage)
	return imageServiceInstance
}

// GetImageService returns the initialized image service instance
func GetImageService() ImageService {
	return imageServiceInstance
}

// SetImageService sets the image service instance (primarily for testing)
func SetImageService(service ImageService) {
	imageServiceInstance = service
}

// PaymentProofKey builds payment-proof/<orderID>-<unix>.<ext>
func PaymentProofKey(orderID string, at time.Time, ext string) string {
	return fmt.Sprintf("payment-proof/%s-%d%s", orderID, at.Unix(), ext)
}

// UploadPaymentProof validates and stores a transfer slip
func (s *S3ImageService) UploadPaymentProof(ctx context.Context, orderID string, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}
	key := PaymentProofKey(orderID, s.now(), utils.ImageExtension(fileHeader.Filename))
	return key, s.upload(ctx, key, fileHeader)
}

// UploadProductImage validates and stores a catalogue photo under products/
func (s *S3ImageService) UploadProductImage(ctx context.Context, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}
	key := fmt.Sprintf("products/%s%s", uuid.NewString(), utils.ImageExtension(fileHeader.Filename))
	return key, s.upload(ctx, key, fileHeader)
}

// UploadAvatar validates and stores a profile picture under avatars/
func (s *S3ImageService) UploadAvatar(ctx context.Context, userID string, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}
	key := fmt.Sprintf("avatars/%s-%d%s", uuid.NewSHA1(uuid.NameSpaceURL, []byte(userID)).String(), s.now().Unix(), utils.ImageExtension(fileHeader.Filename))
	return key, s.upload(ctx, key, fileHeader)
}

func (s *S3ImageService) upload(ctx context.Context, key string, fileHeader *multipart.FileHeader) error {
	file, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	contentType := utils.ContentTypeFor(utils.ImageExtension(fileHeader.Filename))
	if err := s.storage.UploadObject(ctx, key, contentType, file); err != nil {
		return fmt.Errorf("failed to upload image: %w", err)
	}
	return nil
}

// GetImageURL generates a presigned URL for accessing an image
func (s *S3ImageService) GetImageURL(ctx context.Context, imageKey string) (string, error) {
	if imageKey == "" {
		return "", nil
	}

	url, err := s.storage.GetPresignedURL(ctx, imageKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate image URL: %w", err)
	}
	return url, nil
}

// GetPublicURL returns the permanent URL of an image
func (s *S3ImageService) GetPublicURL(imageKey string) string {
	return s.storage.GetPublicURL(imageKey)
}

// DeleteImage deletes an image from storage
func (s *S3ImageService) DeleteImage(ctx context.Context, imageKey string) error {
	if imageKey == "" {
		return nil
	}

	if err := s.storage.DeleteFile(ctx, imageKey); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
