package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// MaxFileSize is 10MB in bytes
	MaxFileSize = 10 * 1024 * 1024
)

// allowedImageFormats maps accepted extensions to their content type
var allowedImageFormats = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// AllowedImageExtensions returns the accepted extensions in sorted order
func AllowedImageExtensions() []string {
	exts := make([]string, 0, len(allowedImageFormats))
	for ext := range allowedImageFormats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ImageExtension returns the lower-cased extension of a file name
func ImageExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// ContentTypeFor returns the content type for an accepted extension, or application/octet-stream
func ContentTypeFor(ext string) string {
	if ct, ok := allowedImageFormats[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ValidateImageFile validates the uploaded file format and size
func ValidateImageFile(fileHeader *multipart.FileHeader) error {
	if fileHeader == nil {
		return &FileUploadError{Code: "NO_FILE", Message: "No file uploaded"}
	}

	if fileHeader.Size > MaxFileSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}

	if _, ok := allowedImageFormats[ImageExtension(fileHeader.Filename)]; !ok {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: fmt.Sprintf("Only %s files are allowed", strings.Join(AllowedImageExtensions(), ", ")),
		}
	}

	return nil
}

// IsSafeObjectKey reports whether a storage key can be mapped onto the upload directory
func IsSafeObjectKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

// SaveFile writes src under uploadDir at the relative key, creating parent directories
func SaveFile(uploadDir, key string, src io.Reader) (err error) {
	if !IsSafeObjectKey(key) {
		return &FileUploadError{Code: "INVALID_KEY", Message: "Invalid storage key"}
	}

	fullPath := filepath.Join(uploadDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
	}()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}

	return nil
}

// GetImageURL returns the URL path for accessing a locally stored file
func GetImageURL(key string) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("/api/v1/uploads/%s", key)
}
