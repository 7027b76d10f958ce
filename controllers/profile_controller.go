package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cosmetics-store-api/middleware"
	"github.com/kendall-kelly/cosmetics-store-api/services"
	"github.com/kendall-kelly/cosmetics-store-api/utils"
	"go.uber.org/zap"
)

// UpdateProfileRequest represents the request body for updating a profile.
// Omitted fields are left unchanged.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
}

// GetMyProfile handles GET /api/v1/profile - the customer's profile with loyalty data
func GetMyProfile(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	customers := services.GetCustomerService()
	// Sessions opened before the profile existed still get one
	if email := middleware.GetUserEmail(c); email != "" {
		if _, err := customers.EnsureProfile(c.Request.Context(), userID, email, ""); err != nil {
			zap.L().Warn("failed to ensure profile", zap.String("user_id", userID), zap.Error(err))
		}
	}

	summary, err := customers.Summary(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err, "Failed to retrieve profile")
		return
	}
	respondOK(c, http.StatusOK, summary)
}

// UpdateMyProfile handles PUT /api/v1/profile - updates name, phone and address
func UpdateMyProfile(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	profile, err := services.GetCustomerService().UpdateProfile(c.Request.Context(), userID, services.ProfileUpdate{
		FullName: req.FullName,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		handleServiceError(c, err, "Failed to update profile")
		return
	}
	respondOK(c, http.StatusOK, profile)
}

// UploadAvatar handles POST /api/v1/profile/avatar - replaces the profile picture
func UploadAvatar(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxFileSize+1<<20)
	file, err := c.FormFile("avatar")
	if err != nil {
		respondError(c, http.StatusBadRequest, "NO_FILE", "No file uploaded")
		return
	}

	images := services.GetImageService()
	key, err := images.UploadAvatar(c.Request.Context(), userID, file)
	if err != nil {
		handleServiceError(c, err, "Failed to upload avatar")
		return
	}

	profile, err := services.GetCustomerService().SetAvatar(c.Request.Context(), userID, images.GetPublicURL(key))
	if err != nil {
		if delErr := images.DeleteImage(c.Request.Context(), key); delErr != nil {
			zap.L().Warn("failed to remove orphaned avatar", zap.String("key", key), zap.Error(delErr))
		}
		handleServiceError(c, err, "Failed to update avatar")
		return
	}
	respondOK(c, http.StatusOK, profile)
}

// GetMyPoints handles GET /api/v1/profile/points - points, tier and progress to the next tier
func GetMyPoints(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	points, err := services.GetCustomerService().PointsSummary(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err, "Failed to retrieve points")
		return
	}
	respondOK(c, http.StatusOK, points)
}
