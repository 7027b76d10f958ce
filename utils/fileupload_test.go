package utils

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestFileHeader creates a mock multipart.FileHeader for testing
func createTestFileHeader(filename string, size int64, content []byte) *multipart.FileHeader {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")
	part, _ := writer.CreatePart(h)
	part.Write(content)
	writer.Close()

	reader := multipart.NewReader(body, writer.Boundary())
	form, _ := reader.ReadForm(int64(len(content)) + 1024)

	if len(form.File["file"]) > 0 {
		fileHeader := form.File["file"][0]
		// Override size for testing purposes
		fileHeader.Size = size
		return fileHeader
	}

	return nil
}

func TestValidateImageFile_AcceptedFormats(t *testing.T) {
	for _, name := range []string{"slip.png", "slip.jpg", "slip.jpeg", "slip.webp", "SLIP.PNG"} {
		t.Run(name, func(t *testing.T) {
			content := []byte("fake image content")
			fileHeader := createTestFileHeader(name, int64(len(content)), content)
			require.NotNil(t, fileHeader)

			assert.NoError(t, ValidateImageFile(fileHeader))
		})
	}
}

func TestValidateImageFile_FileTooLarge(t *testing.T) {
	content := []byte("fake png content")
	fileHeader := createTestFileHeader("large.png", 11*1024*1024, content)
	require.NotNil(t, fileHeader)

	err := ValidateImageFile(fileHeader)
	require.Error(t, err)

	fileErr, ok := err.(*FileUploadError)
	require.True(t, ok, "Error should be of type FileUploadError")
	assert.Equal(t, "FILE_TOO_LARGE", fileErr.Code)
	assert.Contains(t, fileErr.Message, "File size exceeds maximum allowed size")
}

func TestValidateImageFile_InvalidFormat(t *testing.T) {
	for _, name := range []string{"slip.gif", "slip.pdf", "slipfile"} {
		t.Run(name, func(t *testing.T) {
			content := []byte("fake content")
			fileHeader := createTestFileHeader(name, int64(len(content)), content)
			require.NotNil(t, fileHeader)

			err := ValidateImageFile(fileHeader)
			require.Error(t, err)

			fileErr, ok := err.(*FileUploadError)
			require.True(t, ok, "Error should be of type FileUploadError")
			assert.Equal(t, "INVALID_FILE_FORMAT", fileErr.Code)
			assert.Contains(t, fileErr.Message, ".png")
		})
	}
}

func TestValidateImageFile_Nil(t *testing.T) {
	err := ValidateImageFile(nil)
	require.Error(t, err)
	assert.Equal(t, "NO_FILE", err.(*FileUploadError).Code)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeFor(".JPG"))
	assert.Equal(t, "image/webp", ContentTypeFor(".webp"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor(".exe"))
}

func TestIsSafeObjectKey(t *testing.T) {
	assert.True(t, IsSafeObjectKey("payment-proof/abc-1700000000.png"))
	assert.True(t, IsSafeObjectKey("slip.png"))
	assert.False(t, IsSafeObjectKey(""))
	assert.False(t, IsSafeObjectKey("../etc/passwd"))
	assert.False(t, IsSafeObjectKey("products/../../secret"))
	assert.False(t, IsSafeObjectKey("/abs/path.png"))
	assert.False(t, IsSafeObjectKey("a//b.png"))
	assert.False(t, IsSafeObjectKey(`a\b.png`))
}

func TestSaveFile(t *testing.T) {
	dir := t.TempDir()

	err := SaveFile(dir, "payment-proof/order-1.png", strings.NewReader("slip"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "payment-proof", "order-1.png"))
	require.NoError(t, err)
	assert.Equal(t, "slip", string(data))

	err = SaveFile(dir, "../escape.png", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestGetImageURL(t *testing.T) {
	assert.Equal(t, "/api/v1/uploads/products/p.png", GetImageURL("products/p.png"))
	assert.Equal(t, "", GetImageURL(""))
}

func TestFileUploadError_Error(t *testing.T) {
	err := &FileUploadError{
		Code:    "TEST_CODE",
		Message: "Test error message",
	}

	assert.Equal(t, "Test error message", err.Error())
}
