package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/cosmetics-store-api/services"
)

// CreateReviewRequest represents the request body for reviewing a product
type CreateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=2000"`
}

func productFilter(c *gin.Context) services.ProductFilter {
	filter := services.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Stock:    services.StockFilter(c.Query("stock")),
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	return filter
}

// ListProducts handles GET /api/v1/products - the catalogue with optional category and search filters
func ListProducts(c *gin.Context) {
	products := services.GetProductService()
	list, err := products.List(c.Request.Context(), productFilter(c))
	if err != nil {
		handleServiceError(c, err, "Failed to retrieve products")
		return
	}
	categories, err := products.Categories(c.Request.Context())
	if err != nil {
		handleServiceError(c, err, "Failed to retrieve categories")
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"products":   list,
		"categories": categories,
	})
}

// GetProduct handles GET /api/v1/products/:id
func GetProduct(c *gin.Context) {
	product, err := services.GetProductService().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "Failed to retrieve product")
		return
	}
	respondOK(c, http.StatusOK, product)
}

// GetRelatedProducts handles GET /api/v1/products/:id/related
func GetRelatedProducts(c *gin.Context) {
	related, err := services.GetProductService().Related(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "Failed to retrieve related products")
		return
	}
	respondOK(c, http.StatusOK, related)
}

// GetProductReviews handles GET /api/v1/products/:id/reviews
func GetProductReviews(c *gin.Context) {
	summary, err := services.GetProductService().Reviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "Failed to retrieve reviews")
		return
	}
	respondOK(c, http.StatusOK, summary)
}

// CreateProductReview handles POST /api/v1/products/:id/reviews - one review per customer and product
func CreateProductReview(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	review, err := services.GetProductService().AddReview(c.Request.Context(), c.Param("id"), userID, req.Rating, req.Comment)
	if err != nil {
		handleServiceError(c, err, "Failed to create review")
		return
	}
	respondOK(c, http.StatusCreated, review)
}
