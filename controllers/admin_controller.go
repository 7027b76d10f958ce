package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cosmetics-store-api/middleware"
	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/kendall-kelly/cosmetics-store-api/services"
	"github.com/kendall-kelly/cosmetics-store-api/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest represents the request body for creating or replacing a product.
// Price is a decimal string such as "12.50".
type ProductRequest struct {
	Name          string           `json:"name" binding:"required"`
	Description   string           `json:"description"`
	Price         *decimal.Decimal `json:"price" binding:"required"`
	ImageURL      string           `json:"image_url"`
	StockQuantity int              `json:"stock_quantity" binding:"gte=0"`
	Category      string           `json:"category"`
}

func (r ProductRequest) input() services.ProductInput {
	return services.ProductInput{
		Name:          r.Name,
		Description:   r.Description,
		Price:         *r.Price,
		ImageURL:      r.ImageURL,
		StockQuantity: r.StockQuantity,
		Category:      r.Category,
	}
}

// UpdateOrderStatusRequest represents the request body for moving an order along its lifecycle
type UpdateOrderStatusRequest struct {
	Status          string `json:"status" binding:"required"`
	ExpectedVersion *int   `json:"expected_version"`
}

// PaymentActionRequest carries the optional version guard of a payment action
type PaymentActionRequest struct {
	ExpectedVersion *int `json:"expected_version"`
}

// bindOptionalJSON binds the body when there is one; an empty body leaves dest untouched
func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	err := c.ShouldBindJSON(dest)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// AdminCheck handles GET /api/v1/admin/check - confirms the caller passed the admin gate
func AdminCheck(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"is_admin": true,
		"user_id":  userID,
		"email":    middleware.GetUserEmail(c),
	})
}

// AdminDashboard handles GET /api/v1/admin/dashboard
func AdminDashboard(c *gin.Context) {
	stats, err := services.GetAdminService().Dashboard(c.Request.Context())
	if err != nil {
		handleServiceError(c, err, "Failed to load dashboard")
		return
	}
	respondOK(c, http.StatusOK, stats)
}

// AdminListProducts handles GET /api/v1/admin/products - accepts stock=low|out on top of the public filters
func AdminListProducts(c *gin.Context) {
	filter := productFilter(c)
	switch filter.Stock {
	case services.StockAny, services.StockLow, services.StockOut:
	default:
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "stock must be low or out")
		return
	}

	products, err := services.GetProductService().List(c.Request.Context(), filter)
	if err != nil {
		handleServiceError(c, err, "Failed to retrieve products")
		return
	}
	respondOK(c, http.StatusOK, products)
}

// AdminCreateProduct handles POST /api/v1/admin/products
func AdminCreateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	product, err := services.GetProductService().Create(c.Request.Context(), req.input())
	if err != nil {
		handleServiceError(c, err, "Failed to create product")
		return
	}
	respondOK(c, http.StatusCreated, product)
}

// AdminUpdateProduct handles PUT /api/v1/admin/products/:id
func AdminUpdateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	product, err := services.GetProductService().Update(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		handleServiceError(c, err, "Failed to update product")
		return
	}
	respondOK(c, http.StatusOK, product)
}

// AdminDeleteProduct handles DELETE /api/v1/admin/products/:id
func AdminDeleteProduct(c *gin.Context) {
	if err := services.GetProductService().Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleServiceError(c, err, "Failed to delete product")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"deleted": true})
}

// AdminUploadProductImage handles POST /api/v1/admin/products/:id/image
func AdminUploadProductImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxFileSize+1<<20)
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "NO_FILE", "No file uploaded")
		return
	}

	ctx := c.Request.Context()
	products := services.GetProductService()
	if _, err := products.Get(ctx, c.Param("id")); err != nil {
		handleServiceError(c, err, "Failed to retrieve product")
		return
	}

	images := services.GetImageService()
	key, err := images.UploadProductImage(ctx, file)
	if err != nil {
		handleServiceError(c, err, "Failed to upload product image")
		return
	}

	product, err := products.SetImage(ctx, c.Param("id"), images.GetPublicURL(key))
	if err != nil {
		if delErr := images.DeleteImage(ctx, key); delErr != nil {
			zap.L().Warn("failed to remove orphaned product image", zap.String("key", key), zap.Error(delErr))
		}
		handleServiceError(c, err, "Failed to update product image")
		return
	}
	respondOK(c, http.StatusOK, product)
}

// AdminListOrders handles GET /api/v1/admin/orders - filters by status, payment_status and search
func AdminListOrders(c *gin.Context) {
	var filter services.OrderFilter
	filter.Page, filter.PageSize = pageParams(c)
	filter.Search = c.Query("search")

	if status := c.Query("status"); status != "" {
		parsed, err := models.ParseOrderStatus(status)
		if err != nil {
			respondValidation(c, err)
			return
		}
		filter.Status = parsed
	}
	if status := c.Query("payment_status"); status != "" {
		parsed, err := models.ParsePaymentStatus(status)
		if err != nil {
			respondValidation(c, err)
			return
		}
		filter.PaymentStatus = parsed
	}

	page, err := services.GetOrderService().ListOrders(c.Request.Context(), filter)
	if err != nil {
		handleServiceError(c, err, "Failed to retrieve orders")
		return
	}
	respondOK(c, http.StatusOK, page)
}

// AdminGetOrder handles GET /api/v1/admin/orders/:id
func AdminGetOrder(c *gin.Context) {
	order, err := services.GetOrderService().GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "Failed to retrieve order")
		return
	}
	respondOK(c, http.StatusOK, order)
}

// AdminUpdateOrderStatus handles PATCH /api/v1/admin/orders/:id/status
func AdminUpdateOrderStatus(c *gin.Context) {
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	target, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		respondValidation(c, err)
		return
	}

	order, err := services.GetOrderService().UpdateStatus(c.Request.Context(), c.Param("id"), target, req.ExpectedVersion)
	if err != nil {
		handleServiceError(c, err, "Failed to update order status")
		return
	}
	respondOK(c, http.StatusOK, order)
}

type paymentAction func(svc *services.OrderService, ctx context.Context, orderID string, expectedVersion *int) (*models.Order, error)

func handlePaymentAction(action paymentAction, fallback string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaymentActionRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			respondValidation(c, err)
			return
		}

		order, err := action(services.GetOrderService(), c.Request.Context(), c.Param("id"), req.ExpectedVersion)
		if err != nil {
			handleServiceError(c, err, fallback)
			return
		}
		respondOK(c, http.StatusOK, order)
	}
}

var (
	// AdminConfirmPayment handles POST /api/v1/admin/orders/:id/payment/confirm
	AdminConfirmPayment = handlePaymentAction((*services.OrderService).ConfirmPayment, "Failed to confirm payment")
	// AdminCancelPayment handles POST /api/v1/admin/orders/:id/payment/cancel
	AdminCancelPayment = handlePaymentAction((*services.OrderService).CancelPayment, "Failed to cancel payment")
	// AdminRefundPayment handles POST /api/v1/admin/orders/:id/payment/refund
	AdminRefundPayment = handlePaymentAction((*services.OrderService).RefundPayment, "Failed to refund payment")
)

// AdminListCustomers handles GET /api/v1/admin/customers - filters by segment, membership and search
func AdminListCustomers(c *gin.Context) {
	filter := services.CustomerFilter{Search: c.Query("search")}

	if segment := c.Query("segment"); segment != "" {
		switch s := models.CustomerSegment(segment); s {
		case models.SegmentNew, models.SegmentLoyal, models.SegmentInactive:
			filter.Segment = s
		default:
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "segment must be new, loyal or inactive")
			return
		}
	}
	if membership := c.Query("membership"); membership != "" {
		level, ok := models.ParseMembershipLevel(membership)
		if !ok {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown membership level")
			return
		}
		filter.Membership = level
	}

	customers, err := services.GetCustomerService().ListCustomers(c.Request.Context(), filter)
	if err != nil {
		handleServiceError(c, err, "Failed to retrieve customers")
		return
	}
	respondOK(c, http.StatusOK, customers)
}

// AdminGetCustomer handles GET /api/v1/admin/customers/:id - profile, loyalty data and order history
func AdminGetCustomer(c *gin.Context) {
	customer, err := services.GetCustomerService().GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "Failed to retrieve customer")
		return
	}
	respondOK(c, http.StatusOK, customer)
}
