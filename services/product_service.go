package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/kendall-kelly/cosmetics-store-api/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RelatedProductsLimit is how many same-category products are suggested
const RelatedProductsLimit = 4

// ProductInput is the editable content of a product
type ProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	ImageURL      string
	StockQuantity int
	Category      string
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if in.Price.IsNegative() {
		return &ValidationError{Field: "price", Message: "must not be negative"}
	}
	if in.StockQuantity < 0 {
		return &ValidationError{Field: "stock_quantity", Message: "must not be negative"}
	}
	return nil
}

// StockFilter selects products by stock level
type StockFilter string

const (
	StockAny StockFilter = ""
	StockLow StockFilter = "low"
	StockOut StockFilter = "out"
)

// ProductFilter narrows a product listing
type ProductFilter struct {
	Category string
	Search   string
	Stock    StockFilter
	Limit    int
}

// ReviewSummary is a product's reviews with their average rating
type ReviewSummary struct {
	Reviews       []models.ProductReview `json:"reviews"`
	AverageRating float64                `json:"average_rating"`
	Count         int                    `json:"count"`
}

// ProductService manages the catalogue and product reviews
type ProductService struct {
	db *gorm.DB
}

var productServiceInstance *ProductService

// NewProductService creates a product service
func NewProductService(db *gorm.DB) *ProductService {
	return &ProductService{db: db}
}

// GetProductService returns the global product service
func GetProductService() *ProductService {
	return productServiceInstance
}

// SetProductService sets the global product service
func SetProductService(s *ProductService) {
	productServiceInstance = s
}

// List returns products matching the filter, newest first
func (s *ProductService) List(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	q := s.db.WithContext(ctx).Model(&models.Product{})
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	switch filter.Stock {
	case StockLow:
		q = q.Where("stock_quantity < ?", models.LowStockThreshold)
	case StockOut:
		q = q.Where("stock_quantity <= 0")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	products := []models.Product{}
	if err := q.Order("created_at DESC, id ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Categories returns the distinct non-empty categories
func (s *ProductService) Categories(ctx context.Context) ([]string, error) {
	categories := []string{}
	err := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("category <> ''").
		Distinct().
		Order("category").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// Get loads one product
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &product, nil
}

// Related returns up to RelatedProductsLimit other products of the same category
func (s *ProductService) Related(ctx context.Context, id string) ([]models.Product, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	related := []models.Product{}
	if product.Category == "" {
		return related, nil
	}
	err = s.db.WithContext(ctx).
		Where("category = ? AND id <> ?", product.Category, product.ID).
		Order("created_at DESC, id ASC").
		Limit(RelatedProductsLimit).
		Find(&related).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load related products: %w", err)
	}
	return related, nil
}

// Create adds a product to the catalogue
func (s *ProductService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	product := models.Product{
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Price:         in.Price,
		ImageURL:      in.ImageURL,
		StockQuantity: in.StockQuantity,
		Category:      strings.TrimSpace(in.Category),
	}
	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &product, nil
}

// Update replaces a product's content
func (s *ProductService) Update(ctx context.Context, id string, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":           strings.TrimSpace(in.Name),
		"description":    in.Description,
		"price":          in.Price,
		"image_url":      in.ImageURL,
		"stock_quantity": in.StockQuantity,
		"category":       strings.TrimSpace(in.Category),
	})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrProductNotFound
	}
	return s.Get(ctx, id)
}

// SetImage stores the image URL of a product
func (s *ProductService) SetImage(ctx context.Context, id, imageURL string) (*models.Product, error) {
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("image_url", imageURL)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update product image: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrProductNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes a product that no order refers to. Cart lines and reviews go with it.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var used int64
		if err := tx.Model(&models.OrderItem{}).Where("product_id = ?", id).Count(&used).Error; err != nil {
			return fmt.Errorf("failed to check product usage: %w", err)
		}
		if used > 0 {
			return ErrProductInUse
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to remove product from carts: %w", err)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductReview{}).Error; err != nil {
			return fmt.Errorf("failed to remove product reviews: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Product{})
		if res.Error != nil {
			if utils.IsForeignKeyViolation(res.Error) {
				return ErrProductInUse
			}
			return fmt.Errorf("failed to delete product: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrProductNotFound
		}
		return nil
	})
}

// Reviews returns a product's reviews, newest first, with the average rating
func (s *ProductService) Reviews(ctx context.Context, productID string) (*ReviewSummary, error) {
	if _, err := s.Get(ctx, productID); err != nil {
		return nil, err
	}

	reviews := []models.ProductReview{}
	if err := s.db.WithContext(ctx).Where("product_id = ?", productID).Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}

	summary := &ReviewSummary{Reviews: reviews, Count: len(reviews)}
	if len(reviews) > 0 {
		sum := 0
		for _, r := range reviews {
			sum += r.Rating
		}
		summary.AverageRating = float64(sum) / float64(len(reviews))
	}
	return summary, nil
}

// AddReview records a rating from 1 to 5. Each customer reviews a product once.
func (s *ProductService) AddReview(ctx context.Context, productID, userID string, rating int, comment string) (*models.ProductReview, error) {
	if rating < 1 || rating > 5 {
		return nil, &ValidationError{Field: "rating", Message: "must be between 1 and 5"}
	}
	if _, err := s.Get(ctx, productID); err != nil {
		return nil, err
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.ProductReview{}).Where("product_id = ? AND user_id = ?", productID, userID).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing review: %w", err)
	}
	if existing > 0 {
		return nil, ErrDuplicateReview
	}

	review := models.ProductReview{ProductID: productID, UserID: userID, Rating: rating, Comment: strings.TrimSpace(comment)}
	if err := s.db.WithContext(ctx).Create(&review).Error; err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	return &review, nil
}
