package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cosmetics-store-api/middleware"
	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/kendall-kelly/cosmetics-store-api/services"
	"github.com/kendall-kelly/cosmetics-store-api/utils"
	"go.uber.org/zap"
)

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func respondErrorDetails(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

func respondValidation(c *gin.Context, err error) {
	respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
}

// requireUserID returns the session user, writing a 401 when there is none
func requireUserID(c *gin.Context) (string, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return "", false
	}
	return userID, true
}

// handleServiceError maps domain errors onto the HTTP error envelope.
// Anything unrecognised is logged and reported as a 500 with fallback as the message.
func handleServiceError(c *gin.Context, err error, fallback string) {
	var (
		validationErr *services.ValidationError
		stockErr      *services.InsufficientStockError
		uploadErr     *utils.FileUploadError
		passwordErr   *utils.PasswordError
		providerErr   *services.ProviderError
	)

	switch {
	case errors.As(err, &validationErr):
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Error(), gin.H{"field": validationErr.Field})
	case errors.As(err, &stockErr):
		respondErrorDetails(c, http.StatusConflict, "INSUFFICIENT_STOCK", stockErr.Error(), gin.H{
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.As(err, &uploadErr):
		status := http.StatusBadRequest
		if uploadErr.Code == "FILE_TOO_LARGE" {
			status = http.StatusRequestEntityTooLarge
		}
		respondError(c, status, uploadErr.Code, uploadErr.Message)
	case errors.As(err, &passwordErr):
		respondErrorDetails(c, http.StatusBadRequest, passwordErr.Code, passwordErr.Message, gin.H{"failures": passwordErr.Failures})
	case errors.As(err, &providerErr):
		handleProviderError(c, providerErr)
	case errors.Is(err, services.ErrOrderNotFound):
		respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
	case errors.Is(err, services.ErrProductNotFound):
		respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
	case errors.Is(err, services.ErrProfileNotFound):
		respondError(c, http.StatusNotFound, "PROFILE_NOT_FOUND", "Profile not found")
	case errors.Is(err, services.ErrCartItemNotFound):
		respondError(c, http.StatusNotFound, "CART_ITEM_NOT_FOUND", "Cart item not found")
	case errors.Is(err, services.ErrEmptyCart):
		respondError(c, http.StatusBadRequest, "EMPTY_CART", "Your cart is empty")
	case errors.Is(err, services.ErrInvalidQuantity):
		respondError(c, http.StatusBadRequest, "INVALID_QUANTITY", "Quantity must be at least 1")
	case errors.Is(err, services.ErrNoCartOwner):
		respondError(c, http.StatusBadRequest, "NO_CART", "No cart is associated with this request")
	case errors.Is(err, models.ErrInvalidTransition):
		respondError(c, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, services.ErrVersionConflict):
		respondError(c, http.StatusConflict, "VERSION_CONFLICT", "The order was changed by someone else, reload and try again")
	case errors.Is(err, services.ErrProofNotAccepted):
		respondError(c, http.StatusConflict, "PROOF_NOT_ACCEPTED", "A payment proof cannot be submitted for this order")
	case errors.Is(err, services.ErrDuplicateReview):
		respondError(c, http.StatusConflict, "DUPLICATE_REVIEW", "You have already reviewed this product")
	case errors.Is(err, services.ErrProductInUse):
		respondError(c, http.StatusConflict, "PRODUCT_IN_USE", "The product appears in existing orders")
	default:
		zap.L().Error(fallback, zap.String("path", c.Request.URL.Path), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
}

// handleProviderError relays auth provider rejections; upstream failures become 502
func handleProviderError(c *gin.Context, err *services.ProviderError) {
	switch {
	case err.Status == http.StatusTooManyRequests:
		respondError(c, http.StatusTooManyRequests, "RATE_LIMITED", err.Message)
	case err.Status >= 500:
		zap.L().Error("auth provider failure", zap.Int("status", err.Status), zap.String("code", err.Code), zap.String("message", err.Message))
		respondError(c, http.StatusBadGateway, "AUTH_PROVIDER_ERROR", "The sign-in service is unavailable, try again later")
	case err.Code == "user_already_exists" || err.Code == "email_exists":
		respondError(c, http.StatusConflict, "ACCOUNT_EXISTS", "An account with this email already exists")
	case err.Status == http.StatusUnauthorized || err.Status == http.StatusForbidden:
		respondError(c, http.StatusUnauthorized, "INVALID_SESSION", err.Message)
	default:
		respondErrorDetails(c, http.StatusBadRequest, "AUTH_ERROR", err.Message, gin.H{"provider_code": err.Code})
	}
}
