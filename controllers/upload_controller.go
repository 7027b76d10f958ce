package controllers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cosmetics-store-api/config"
	"github.com/kendall-kelly/cosmetics-store-api/utils"
)

// GetUploadedFile handles GET /api/v1/uploads/*key - serves images kept in local storage
func GetUploadedFile(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	if !utils.IsSafeObjectKey(key) {
		respondError(c, http.StatusBadRequest, "INVALID_FILENAME", "Invalid filename")
		return
	}

	ext := utils.ImageExtension(key)
	contentType := utils.ContentTypeFor(ext)
	if contentType == "application/octet-stream" {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "Unsupported file type")
		return
	}

	filePath := filepath.Join(config.GetConfig().UploadDir, filepath.FromSlash(key))
	if info, err := os.Stat(filePath); err != nil || info.IsDir() {
		respondError(c, http.StatusNotFound, "FILE_NOT_FOUND", "Image not found")
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=86400")
	c.File(filePath)
}
