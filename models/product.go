package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LowStockThreshold is the stock level below which a product is flagged for restocking
const LowStockThreshold = 10

// Product represents an item in the catalogue
type Product struct {
	ID            string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name          string          `gorm:"not null" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	ImageURL      string          `json:"image_url"`
	StockQuantity int             `gorm:"not null;default:0;check:stock_quantity >= 0" json:"stock_quantity"`
	Category      string          `gorm:"index" json:"category"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// BeforeCreate assigns a UUID when none was provided
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsLowStock reports whether stock is below LowStockThreshold
func (p Product) IsLowStock() bool {
	return p.StockQuantity < LowStockThreshold
}

// IsOutOfStock reports whether nothing is left to sell
func (p Product) IsOutOfStock() bool {
	return p.StockQuantity <= 0
}

// ProductReview is a customer rating of a product
type ProductReview struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProductID string    `gorm:"type:varchar(36);not null;index" json:"product_id"`
	UserID    string    `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Rating    int       `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the ProductReview model
func (ProductReview) TableName() string {
	return "product_reviews"
}

// BeforeCreate assigns a UUID when none was provided
func (r *ProductReview) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
