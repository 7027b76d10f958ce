package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/kendall-kelly/cosmetics-store-api/services"
	"github.com/kendall-kelly/cosmetics-store-api/utils"
)

// CheckoutRequest represents the checkout form. It is accepted as JSON or as a
// multipart form carrying a payment_proof file.
type CheckoutRequest struct {
	FullName      string `json:"full_name" form:"full_name" binding:"required"`
	Email         string `json:"email" form:"email" binding:"required,email"`
	Phone         string `json:"phone" form:"phone" binding:"required"`
	Address       string `json:"address" form:"address" binding:"required"`
	City          string `json:"city" form:"city" binding:"required"`
	Country       string `json:"country" form:"country" binding:"required"`
	PostalCode    string `json:"postal_code" form:"postal_code" binding:"required"`
	PaymentMethod string `json:"payment_method" form:"payment_method" binding:"required"`
	BankType      string `json:"bank_type" form:"bank_type"`
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// Checkout handles POST /api/v1/checkout - turns the customer's cart into an order
func Checkout(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	var bindErr error
	if isMultipart(c) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxFileSize+1<<20)
		bindErr = c.ShouldBind(&req)
	} else {
		bindErr = c.ShouldBindJSON(&req)
	}
	if bindErr != nil {
		respondValidation(c, bindErr)
		return
	}

	in := services.PlaceOrderInput{
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		City:          req.City,
		Country:       req.Country,
		PostalCode:    req.PostalCode,
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
		BankType:      models.BankType(req.BankType),
	}
	if isMultipart(c) {
		if proof, err := c.FormFile("payment_proof"); err == nil {
			in.PaymentProof = proof
		}
	}

	order, err := services.GetOrderService().PlaceOrder(c.Request.Context(), userID, in)
	if err != nil {
		handleServiceError(c, err, "Failed to place order")
		return
	}
	respondOK(c, http.StatusCreated, order)
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

// ListMyOrders handles GET /api/v1/orders - the customer's order history, newest first
func ListMyOrders(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	filter := services.OrderFilter{UserID: userID}
	filter.Page, filter.PageSize = pageParams(c)
	if status := c.Query("status"); status != "" {
		parsed, err := models.ParseOrderStatus(status)
		if err != nil {
			respondValidation(c, err)
			return
		}
		filter.Status = parsed
	}

	page, err := services.GetOrderService().ListOrders(c.Request.Context(), filter)
	if err != nil {
		handleServiceError(c, err, "Failed to retrieve orders")
		return
	}
	respondOK(c, http.StatusOK, page)
}

// GetMyOrder handles GET /api/v1/orders/:id - one of the customer's orders with items and payments
func GetMyOrder(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	order, err := services.GetOrderService().GetCustomerOrder(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "Failed to retrieve order")
		return
	}
	respondOK(c, http.StatusOK, order)
}

// SubmitPaymentProof handles POST /api/v1/orders/:id/payment-proof - uploads a new transfer slip
func SubmitPaymentProof(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxFileSize+1<<20)
	proof, err := c.FormFile("payment_proof")
	if err != nil {
		respondError(c, http.StatusBadRequest, "NO_FILE", "No payment proof uploaded")
		return
	}

	order, err := services.GetOrderService().SubmitPaymentProof(c.Request.Context(), userID, c.Param("id"), proof)
	if err != nil {
		handleServiceError(c, err, "Failed to submit payment proof")
		return
	}
	respondOK(c, http.StatusOK, order)
}
