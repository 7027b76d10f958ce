package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"mime/multipart"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/cosmetics-store-api/metrics"
	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/kendall-kelly/cosmetics-store-api/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultRetryDelays are the waits between attempts of a transaction that hit a serialization failure or deadlock
var DefaultRetryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// PlaceOrderInput is what the customer submits at checkout
type PlaceOrderInput struct {
	FullName      string
	Email         string
	Phone         string
	Address       string
	City          string
	Country       string
	PostalCode    string
	PaymentMethod models.PaymentMethod
	BankType      models.BankType
	PaymentProof  *multipart.FileHeader
}

func (in PlaceOrderInput) validate() error {
	minLen := []struct {
		field, value string
		min          int
	}{
		{"full_name", in.FullName, 3},
		{"phone", in.Phone, 9},
		{"address", in.Address, 5},
		{"city", in.City, 2},
		{"country", in.Country, 2},
		{"postal_code", in.PostalCode, 3},
	}
	for _, f := range minLen {
		if len([]rune(strings.TrimSpace(f.value))) < f.min {
			return &ValidationError{Field: f.field, Message: fmt.Sprintf("must be at least %d characters", f.min)}
		}
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return &ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	if !in.PaymentMethod.IsValid() {
		return &ValidationError{Field: "payment_method", Message: "must be credit_card, bank_transfer or qr_code"}
	}
	if in.PaymentMethod == models.PaymentMethodBankTransfer && !in.BankType.IsValid() {
		return &ValidationError{Field: "bank_type", Message: "a known bank is required for bank transfers"}
	}
	if in.PaymentMethod != models.PaymentMethodBankTransfer && in.BankType != "" {
		return &ValidationError{Field: "bank_type", Message: "only allowed for bank transfers"}
	}
	if in.PaymentProof != nil && !in.PaymentMethod.AcceptsProof() {
		return &ValidationError{Field: "payment_proof", Message: "only accepted for bank transfer or QR code payments"}
	}
	return nil
}

func paymentNotes(method models.PaymentMethod, bank models.BankType) *string {
	var note string
	switch method {
	case models.PaymentMethodBankTransfer:
		note = "Bank transfer via " + bank.DisplayName()
	case models.PaymentMethodQRCode:
		note = "QR code payment"
	default:
		note = "Credit card payment"
	}
	return &note
}

// OrderFilter narrows an order listing
type OrderFilter struct {
	UserID        string
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
	Search        string // matches order ID, customer name or email
	Page          int
	PageSize      int
}

func (f *OrderFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
}

func (f OrderFilter) scope(db *gorm.DB) *gorm.DB {
	if f.UserID != "" {
		db = db.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		db = db.Where("status = ?", string(f.Status))
	}
	if f.PaymentStatus != "" {
		db = db.Where("payment_status = ?", string(f.PaymentStatus))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		db = db.Where("LOWER(id) LIKE ? OR LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	return db
}

// OrderPage is one page of an order listing
type OrderPage struct {
	Orders   []models.Order `json:"orders"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// OrderService places orders and drives their status and payment lifecycle
type OrderService struct {
	db          *gorm.DB
	images      ImageService
	events      EventPublisher
	notifier    *CartNotifier
	logger      *zap.Logger
	group       singleflight.Group
	retryDelays []time.Duration
	now         func() time.Time
}

var orderServiceInstance *OrderService

// NewOrderService creates an order service
func NewOrderService(db *gorm.DB, images ImageService, events EventPublisher, notifier *CartNotifier, logger *zap.Logger) *OrderService {
	if events == nil {
		events = NoopEventPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		db:          db,
		images:      images,
		events:      events,
		notifier:    notifier,
		logger:      logger,
		retryDelays: DefaultRetryDelays,
		now:         time.Now,
	}
}

// GetOrderService returns the global order service
func GetOrderService() *OrderService {
	return orderServiceInstance
}

// SetOrderService sets the global order service
func SetOrderService(s *OrderService) {
	orderServiceInstance = s
}

// SetRetryDelays overrides the transaction retry schedule
func (s *OrderService) SetRetryDelays(delays []time.Duration) {
	s.retryDelays = delays
}

// withRetry runs fn again after a serialization failure or deadlock, waiting retryDelays between attempts
func (s *OrderService) withRetry(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !utils.IsRetryableDBError(err) || attempt >= len(s.retryDelays) {
			return err
		}

		s.logger.Warn("retrying order transaction",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", s.retryDelays[attempt]),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryDelays[attempt]):
		}
	}
}

func (s *OrderService) publish(ctx context.Context, t OrderEventType, order *models.Order) {
	if err := s.events.Publish(ctx, newOrderEvent(t, order, s.now())); err != nil {
		metrics.EventPublishFailures.Inc()
		s.logger.Error("failed to publish order event",
			zap.String("type", string(t)),
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
}

func (s *OrderService) discardProof(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.images.DeleteImage(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Error("failed to delete orphaned payment proof", zap.String("key", key), zap.Error(err))
	}
}

func checkoutOutcome(err error) string {
	var stockErr *InsufficientStockError
	var validationErr *ValidationError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.As(err, &stockErr):
		return "out_of_stock"
	case errors.As(err, &validationErr):
		return "invalid"
	}
	return "error"
}

// checkoutKey groups concurrent checkouts that carry the same customer and the
// same submitted form. A different form is never handed another request's order.
func checkoutKey(userID string, in PlaceOrderInput) string {
	h := sha256.New()
	for _, field := range []string{
		in.FullName, in.Email, in.Phone, in.Address, in.City, in.Country, in.PostalCode,
		string(in.PaymentMethod), string(in.BankType),
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	if in.PaymentProof != nil {
		fmt.Fprintf(h, "%s\x00%d", in.PaymentProof.Filename, in.PaymentProof.Size)
	}
	return "checkout:" + userID + ":" + hex.EncodeToString(h.Sum(nil))
}

// PlaceOrder turns the customer's cart into an order. Stock is reserved, prices
// are snapshotted, the first payment record is written and the cart is emptied,
// all in one transaction. Concurrent checkouts by the same customer share one result.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, in PlaceOrderInput) (*models.Order, error) {
	if err := in.validate(); err != nil {
		metrics.OrdersPlaced.WithLabelValues(checkoutOutcome(err)).Inc()
		return nil, err
	}

	v, err, _ := s.group.Do(checkoutKey(userID, in), func() (interface{}, error) {
		order, err := s.placeOrder(ctx, userID, in)
		metrics.OrdersPlaced.WithLabelValues(checkoutOutcome(err)).Inc()
		return order, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Order), nil
}

func (s *OrderService) placeOrder(ctx context.Context, userID string, in PlaceOrderInput) (*models.Order, error) {
	orderID := uuid.NewString()
	paymentID := uuid.NewString()

	// The slip is stored first; a failed transaction deletes it again.
	var proofKey string
	if in.PaymentProof != nil {
		key, err := s.images.UploadPaymentProof(ctx, orderID, in.PaymentProof)
		if err != nil {
			return nil, err
		}
		proofKey = key
	}

	var order *models.Order
	err := s.withRetry(ctx, func() error {
		var err error
		order, err = s.checkout(ctx, userID, orderID, paymentID, proofKey, in)
		return err
	})
	if err != nil {
		s.discardProof(ctx, proofKey)
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("total", order.TotalAmount.StringFixed(2)))

	if s.notifier != nil {
		s.notifier.Publish(CartEvent{Owner: UserCart(userID).Key(), Count: 0})
	}
	s.publish(ctx, EventOrderPlaced, order)

	return s.GetOrder(ctx, order.ID)
}

func (s *OrderService) checkout(ctx context.Context, userID, orderID, paymentID, proofKey string, in PlaceOrderInput) (*models.Order, error) {
	now := s.now()
	var order models.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lines []models.CartItem
		if err := tx.Preload("Product").Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&lines).Error; err != nil {
			return fmt.Errorf("failed to load cart: %w", err)
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			if line.Product == nil {
				return fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
			}

			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock_quantity >= ?", line.ProductID, line.Quantity).
				Update("stock_quantity", gorm.Expr("stock_quantity - ?", line.Quantity))
			if res.Error != nil {
				return fmt.Errorf("failed to reserve stock: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return &InsufficientStockError{
					ProductID:   line.ProductID,
					ProductName: line.Product.Name,
					Requested:   line.Quantity,
					Available:   line.Product.StockQuantity,
				}
			}

			item := models.OrderItem{
				OrderID:   orderID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     line.Product.Price,
			}
			items = append(items, item)
			total = total.Add(item.Subtotal())
		}

		order = models.Order{
			ID:               orderID,
			UserID:           userID,
			Status:           models.OrderPending,
			PaymentStatus:    models.PaymentPending,
			TotalAmount:      total,
			ShippingAddress:  models.FormatShippingAddress(in.Address, in.City, in.Country, in.PostalCode),
			ShippingMethod:   models.DefaultShippingMethod,
			PaymentMethod:    in.PaymentMethod,
			FullName:         strings.TrimSpace(in.FullName),
			Email:            strings.TrimSpace(in.Email),
			Phone:            strings.TrimSpace(in.Phone),
			CurrentPaymentID: &paymentID,
			Version:          1,
		}
		if in.BankType != "" {
			bank := in.BankType
			order.BankType = &bank
		}
		if proofKey != "" {
			key := proofKey
			order.PaymentProofKey = &key
		}
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}

		record := models.PaymentRecord{
			ID:            paymentID,
			OrderID:       orderID,
			Sequence:      1,
			PaymentDate:   now,
			Amount:        total,
			PaymentMethod: in.PaymentMethod,
			PaymentStatus: models.PaymentPending,
			ProofKey:      order.PaymentProofKey,
			Notes:         paymentNotes(in.PaymentMethod, in.BankType),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to create payment record: %w", err)
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// stateChangeHook runs inside the transaction after the order row has been updated
type stateChangeHook func(tx *gorm.DB, order *models.Order, change models.StateChange) error

// syncCurrentPayment copies the new payment status onto the order's current payment record
func syncCurrentPayment(tx *gorm.DB, order *models.Order, change models.StateChange) error {
	if order.CurrentPaymentID == nil {
		return nil
	}
	res := tx.Model(&models.PaymentRecord{}).
		Where("id = ? AND order_id = ?", *order.CurrentPaymentID, order.ID).
		Update("payment_status", string(change.PaymentStatus))
	if res.Error != nil {
		return fmt.Errorf("failed to update payment record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPaymentRecordMissing
	}
	return nil
}

// restockOnCancel returns reserved units to stock when an order is cancelled
func restockOnCancel(tx *gorm.DB, order *models.Order, change models.StateChange) error {
	if change.Status != models.OrderCancelled || order.Status == models.OrderCancelled {
		return nil
	}
	var items []models.OrderItem
	if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	for _, item := range items {
		err := tx.Model(&models.Product{}).
			Where("id = ?", item.ProductID).
			Update("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity)).Error
		if err != nil {
			return fmt.Errorf("failed to restock product %s: %w", item.ProductID, err)
		}
	}
	return nil
}

// transition loads the order, applies the state change and writes it with an
// optimistic version check, all in one transaction
func (s *OrderService) transition(
	ctx context.Context,
	orderID string,
	expectedVersion *int,
	apply func(models.OrderState) (models.StateChange, error),
	hook stateChangeHook,
) (*models.Order, bool, error) {
	var changed bool
	err := s.withRetry(ctx, func() error {
		changed = false
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var order models.Order
			if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrOrderNotFound
				}
				return fmt.Errorf("failed to load order: %w", err)
			}
			if expectedVersion != nil && *expectedVersion != order.Version {
				return ErrVersionConflict
			}

			change, err := apply(order.State())
			if err != nil {
				return err
			}
			if !change.Changed {
				return nil
			}

			res := tx.Model(&models.Order{}).
				Where("id = ? AND version = ?", order.ID, order.Version).
				Updates(map[string]interface{}{
					"status":         string(change.Status),
					"payment_status": string(change.PaymentStatus),
					"version":        order.Version + 1,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to update order: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrVersionConflict
			}

			if hook != nil {
				if err := hook(tx, &order, change); err != nil {
					return err
				}
			}
			changed = true
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}

	order, err := s.GetOrder(ctx, orderID)
	return order, changed, err
}

func transitionOutcome(err error, changed bool) string {
	switch {
	case err == nil && changed:
		return "changed"
	case err == nil:
		return "unchanged"
	case errors.Is(err, models.ErrInvalidTransition):
		return "invalid"
	case errors.Is(err, ErrVersionConflict):
		return "conflict"
	case errors.Is(err, ErrOrderNotFound):
		return "not_found"
	}
	return "error"
}

func flightKey(parts ...string) string {
	return strings.Join(parts, ":")
}

func versionKey(v *int) string {
	if v == nil {
		return "any"
	}
	return strconv.Itoa(*v)
}

func (s *OrderService) setPaymentStatus(ctx context.Context, orderID string, target models.PaymentStatus, expectedVersion *int) (*models.Order, error) {
	key := flightKey("payment", orderID, string(target), versionKey(expectedVersion))
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		order, changed, err := s.transition(ctx, orderID, expectedVersion, func(st models.OrderState) (models.StateChange, error) {
			return models.ApplyPaymentStatus(st, target)
		}, syncCurrentPayment)
		metrics.OrderTransitions.WithLabelValues("payment", string(target), transitionOutcome(err, changed)).Inc()
		if err != nil {
			return nil, err
		}
		if changed {
			s.logger.Info("payment status changed",
				zap.String("order_id", orderID),
				zap.String("payment_status", string(order.PaymentStatus)),
				zap.String("status", string(order.Status)))
			s.publish(ctx, paymentEventType(target), order)
		}
		return order, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Order), nil
}

// ConfirmPayment marks the payment confirmed. A pending order becomes confirmed too.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID string, expectedVersion *int) (*models.Order, error) {
	return s.setPaymentStatus(ctx, orderID, models.PaymentConfirmed, expectedVersion)
}

// CancelPayment marks the payment cancelled without touching the order status
func (s *OrderService) CancelPayment(ctx context.Context, orderID string, expectedVersion *int) (*models.Order, error) {
	return s.setPaymentStatus(ctx, orderID, models.PaymentCancelled, expectedVersion)
}

// RefundPayment marks a confirmed payment refunded without touching the order status
func (s *OrderService) RefundPayment(ctx context.Context, orderID string, expectedVersion *int) (*models.Order, error) {
	return s.setPaymentStatus(ctx, orderID, models.PaymentRefunded, expectedVersion)
}

// UpdateStatus moves the order along its fulfilment lifecycle. Cancelling returns stock.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, target models.OrderStatus, expectedVersion *int) (*models.Order, error) {
	key := flightKey("status", orderID, string(target), versionKey(expectedVersion))
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		order, changed, err := s.transition(ctx, orderID, expectedVersion, func(st models.OrderState) (models.StateChange, error) {
			return models.ApplyOrderStatus(st, target)
		}, restockOnCancel)
		metrics.OrderTransitions.WithLabelValues("status", string(target), transitionOutcome(err, changed)).Inc()
		if err != nil {
			return nil, err
		}
		if changed {
			s.logger.Info("order status changed", zap.String("order_id", orderID), zap.String("status", string(order.Status)))
			s.publish(ctx, EventOrderStatusChanged, order)
		}
		return order, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Order), nil
}

// SubmitPaymentProof attaches a new transfer slip to a customer's pending order.
// A new payment record is appended and becomes the current one.
func (s *OrderService) SubmitPaymentProof(ctx context.Context, userID, orderID string, proof *multipart.FileHeader) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ? AND user_id = ?", orderID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if !order.PaymentMethod.AcceptsProof() || order.PaymentStatus != models.PaymentPending || order.Status == models.OrderCancelled {
		return nil, ErrProofNotAccepted
	}

	key, err := s.images.UploadPaymentProof(ctx, order.ID, proof)
	if err != nil {
		return nil, err
	}

	err = s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var current models.Order
			if err := tx.First(&current, "id = ?", order.ID).Error; err != nil {
				return fmt.Errorf("failed to reload order: %w", err)
			}
			if current.PaymentStatus != models.PaymentPending || current.Status == models.OrderCancelled {
				return ErrProofNotAccepted
			}

			var maxSeq int
			if err := tx.Model(&models.PaymentRecord{}).Where("order_id = ?", current.ID).Select("COALESCE(MAX(sequence), 0)").Scan(&maxSeq).Error; err != nil {
				return fmt.Errorf("failed to read payment sequence: %w", err)
			}

			note := "Payment proof submitted"
			proofKey := key
			record := models.PaymentRecord{
				OrderID:       current.ID,
				Sequence:      maxSeq + 1,
				PaymentDate:   s.now(),
				Amount:        current.TotalAmount,
				PaymentMethod: current.PaymentMethod,
				PaymentStatus: models.PaymentPending,
				ProofKey:      &proofKey,
				Notes:         &note,
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("failed to create payment record: %w", err)
			}

			res := tx.Model(&models.Order{}).
				Where("id = ? AND version = ?", current.ID, current.Version).
				Updates(map[string]interface{}{
					"payment_proof_key":  key,
					"current_payment_id": record.ID,
					"version":            current.Version + 1,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to update order: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrVersionConflict
			}
			return nil
		})
	})
	if err != nil {
		s.discardProof(ctx, key)
		return nil, err
	}

	updated, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventPaymentProofSubmitted, updated)
	return updated, nil
}

// GetOrder loads an order with its items, products and payment history (newest first)
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Items.Product").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("sequence DESC") }).
		First(&order, "id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	s.attachProofURLs(ctx, &order)
	return &order, nil
}

// GetCustomerOrder loads an order only if it belongs to userID
func (s *OrderService) GetCustomerOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) proofURL(ctx context.Context, key *string) *string {
	if key == nil || *key == "" || s.images == nil {
		return nil
	}
	url, err := s.images.GetImageURL(ctx, *key)
	if err != nil {
		s.logger.Warn("failed to sign payment proof URL", zap.String("key", *key), zap.Error(err))
		return nil
	}
	return &url
}

func (s *OrderService) attachProofURLs(ctx context.Context, order *models.Order) {
	order.PaymentProofURL = s.proofURL(ctx, order.PaymentProofKey)
	for i := range order.Payments {
		order.Payments[i].ProofURL = s.proofURL(ctx, order.Payments[i].ProofKey)
	}
}

// ListOrders returns one page of orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) (*OrderPage, error) {
	filter.normalize()

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Scopes(filter.scope).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	orders := []models.Order{}
	err := s.db.WithContext(ctx).
		Scopes(filter.scope).
		Preload("Items").
		Order("created_at DESC, id DESC").
		Limit(filter.PageSize).
		Offset((filter.Page - 1) * filter.PageSize).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return &OrderPage{Orders: orders, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}
