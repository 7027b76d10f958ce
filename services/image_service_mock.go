package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"sync"

	"github.com/kendall-kelly/cosmetics-store-api/utils"
)

// MockImageService is a mock implementation of ImageService for testing
type MockImageService struct {
	uploadedImages map[string][]byte // map of image key to file content
	deleted        []string
	uploadErr      error
	mu             sync.RWMutex
}

// NewMockImageService creates a new mock image service
func NewMockImageService() *MockImageService {
	return &MockImageService{
		uploadedImages: make(map[string][]byte),
	}
}

// SetAsMockForTesting sets this mock as the global image service instance for testing
func (m *MockImageService) SetAsMockForTesting() {
	SetImageService(m)
}

// FailUploads makes every following upload return err
func (m *MockImageService) FailUploads(err error) {
	m.mu.Lock()
	m.uploadErr = err
	m.mu.Unlock()
}

func (m *MockImageService) store(key string, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	m.mu.RLock()
	uploadErr := m.uploadErr
	m.mu.RUnlock()
	if uploadErr != nil {
		return "", uploadErr
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	m.mu.Lock()
	m.uploadedImages[key] = content
	m.mu.Unlock()
	return key, nil
}

// UploadPaymentProof simulates storing a transfer slip
func (m *MockImageService) UploadPaymentProof(ctx context.Context, orderID string, fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader == nil {
		return m.store("", nil)
	}
	return m.store(fmt.Sprintf("payment-proof/%s-mock_%s", orderID, fileHeader.Filename), fileHeader)
}

// UploadProductImage simulates storing a catalogue photo
func (m *MockImageService) UploadProductImage(ctx context.Context, fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader == nil {
		return m.store("", nil)
	}
	return m.store("products/mock_"+fileHeader.Filename, fileHeader)
}

// UploadAvatar simulates storing a profile picture
func (m *MockImageService) UploadAvatar(ctx context.Context, userID string, fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader == nil {
		return m.store("", nil)
	}
	return m.store("avatars/mock_"+fileHeader.Filename, fileHeader)
}

// GetImageURL simulates generating a URL for an image
func (m *MockImageService) GetImageURL(ctx context.Context, imageKey string) (string, error) {
	if imageKey == "" {
		return "", nil
	}

	if !m.ImageExists(imageKey) {
		return "", fmt.Errorf("image not found in mock storage: %s", imageKey)
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", imageKey), nil
}

// GetPublicURL returns a fake public URL
func (m *MockImageService) GetPublicURL(imageKey string) string {
	if imageKey == "" {
		return ""
	}
	return "https://test-bucket.s3.us-east-1.amazonaws.com/" + imageKey
}

// DeleteImage simulates deleting an image
func (m *MockImageService) DeleteImage(ctx context.Context, imageKey string) error {
	if imageKey == "" {
		return nil
	}

	m.mu.Lock()
	delete(m.uploadedImages, imageKey)
	m.deleted = append(m.deleted, imageKey)
	m.mu.Unlock()
	return nil
}

// DeletedKeys returns every key passed to DeleteImage
func (m *MockImageService) DeletedKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.deleted...)
}

// GetUploadedImages returns a copy of all uploaded images
func (m *MockImageService) GetUploadedImages() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	images := make(map[string][]byte, len(m.uploadedImages))
	for k, v := range m.uploadedImages {
		images[k] = v
	}
	return images
}

// ImageExists checks if an image exists in mock storage
func (m *MockImageService) ImageExists(imageKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.uploadedImages[imageKey]
	return exists
}

// Clear removes all images from mock storage
func (m *MockImageService) Clear() {
	m.mu.Lock()
	m.uploadedImages = make(map[string][]byte)
	m.deleted = nil
	m.mu.Unlock()
}
