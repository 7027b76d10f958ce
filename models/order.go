package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultShippingMethod is the only shipping method currently offered
const DefaultShippingMethod = "standard"

// Order represents a customer purchase
type Order struct {
	ID               string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID           string          `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Status           OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus    PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	ShippingAddress  string          `gorm:"type:text;not null" json:"shipping_address"`
	ShippingMethod   string          `gorm:"type:varchar(32);not null" json:"shipping_method"`
	PaymentMethod    PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	BankType         *BankType       `gorm:"type:varchar(20)" json:"bank_type,omitempty"`
	FullName         string          `gorm:"not null" json:"full_name"`
	Email            string          `gorm:"not null;index" json:"email"`
	Phone            string          `gorm:"not null" json:"phone"`
	PaymentProofKey  *string         `json:"payment_proof_key,omitempty"`
	PaymentProofURL  *string         `gorm:"-" json:"payment_proof_url,omitempty"`    // computed, presigned URL
	CurrentPaymentID *string         `gorm:"type:varchar(36)" json:"current_payment_id"` // latest payment record
	Version          int             `gorm:"not null" json:"version"`
	Items            []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Payments         []PaymentRecord `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"payment_history,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns a UUID when none was provided
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// State returns the order's status pair
func (o Order) State() OrderState {
	return OrderState{Status: o.Status, PaymentStatus: o.PaymentStatus}
}

// CountsTowardSpend reports whether the order contributes to lifetime spend.
// Cancelled orders and cancelled or refunded payments do not count.
func (o Order) CountsTowardSpend() bool {
	if o.Status == OrderCancelled {
		return false
	}
	return o.PaymentStatus != PaymentCancelled && o.PaymentStatus != PaymentRefunded
}

// FormatShippingAddress joins the address parts the way they are stored on an order
func FormatShippingAddress(address, city, country, postalCode string) string {
	parts := []string{}
	for _, p := range []string{address, city, country, postalCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// OrderItem is a single product line of an order with the price paid at checkout
type OrderItem struct {
	ID        string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID   string          `gorm:"type:varchar(36);not null;index" json:"order_id"`
	ProductID string          `gorm:"type:varchar(36);not null;index" json:"product_id"`
	Product   *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"` // unit price snapshot
	CreatedAt time.Time       `json:"created_at"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// BeforeCreate assigns a UUID when none was provided
func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Subtotal is the unit price times quantity
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PaymentRecord is one payment attempt for an order. An order may collect
// several records over time; Sequence orders them per order.
type PaymentRecord struct {
	ID            string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID       string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_payment_order_sequence" json:"order_id"`
	Sequence      int             `gorm:"not null;uniqueIndex:idx_payment_order_sequence" json:"sequence"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentStatus PaymentStatus   `gorm:"type:varchar(20);not null" json:"payment_status"`
	ProofKey      *string         `json:"proof_key,omitempty"`
	ProofURL      *string         `gorm:"-" json:"proof_url,omitempty"`
	Notes         *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the PaymentRecord model
func (PaymentRecord) TableName() string {
	return "payment_history"
}

// BeforeCreate assigns a UUID when none was provided
func (p *PaymentRecord) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
