package services

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrProfileNotFound       = errors.New("profile not found")
	ErrCartItemNotFound      = errors.New("cart item not found")
	ErrEmptyCart             = errors.New("cart is empty")
	ErrInvalidQuantity       = errors.New("quantity must be at least 1")
	ErrNoCartOwner           = errors.New("cart owner is unknown")
	ErrVersionConflict       = errors.New("order was modified concurrently")
	ErrPaymentRecordMissing  = errors.New("current payment record not found")
	ErrProofNotAccepted      = errors.New("payment proof is not accepted for this order")
	ErrDuplicateReview       = errors.New("product already reviewed by this user")
	ErrProductInUse          = errors.New("product is referenced by existing orders")
	ErrStorageNotInitialized = errors.New("storage service not initialized")
)

// ValidationError reports input that failed a business rule
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InsufficientStockError is returned when checkout asks for more than is left
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}
