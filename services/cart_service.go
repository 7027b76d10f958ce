package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/kendall-kelly/cosmetics-store-api/metrics"
	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CartOwner identifies whose cart is addressed: a signed-in user or an anonymous guest
type CartOwner struct {
	UserID  string
	GuestID string
}

// UserCart addresses a signed-in customer's cart
func UserCart(userID string) CartOwner {
	return CartOwner{UserID: userID}
}

// GuestCart addresses an anonymous visitor's cart
func GuestCart(guestID string) CartOwner {
	return CartOwner{GuestID: guestID}
}

// IsGuest reports whether the owner is anonymous
func (o CartOwner) IsGuest() bool {
	return o.UserID == ""
}

// Key is the notifier key of the cart
func (o CartOwner) Key() string {
	if o.UserID != "" {
		return "user:" + o.UserID
	}
	return "guest:" + o.GuestID
}

// CartViewItem is a cart line joined with its product
type CartViewItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Product   *models.Product `json:"product,omitempty"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartView is the cart as shown to the customer
type CartView struct {
	Items []CartViewItem  `json:"items"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// CartService manages user and guest carts and notifies count changes
type CartService struct {
	db       *gorm.DB
	users    CartStore
	guests   CartStore
	notifier *CartNotifier
	logger   *zap.Logger
}

var cartServiceInstance *CartService

// NewCartService creates a cart service. users holds signed-in carts, guests anonymous ones.
func NewCartService(db *gorm.DB, users, guests CartStore, notifier *CartNotifier, logger *zap.Logger) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{
		db:       db,
		users:    users,
		guests:   guests,
		notifier: notifier,
		logger:   logger,
	}
}

// GetCartService returns the global cart service
func GetCartService() *CartService {
	return cartServiceInstance
}

// SetCartService sets the global cart service
func SetCartService(s *CartService) {
	cartServiceInstance = s
}

func recordMutation(op string, owner CartOwner) {
	kind := "user"
	if owner.IsGuest() {
		kind = "guest"
	}
	metrics.CartMutations.WithLabelValues(op, kind).Inc()
}

// Notifier returns the notifier count changes are published on
func (s *CartService) Notifier() *CartNotifier {
	return s.notifier
}

func (s *CartService) store(owner CartOwner) (CartStore, string, error) {
	switch {
	case owner.UserID != "":
		return s.users, owner.UserID, nil
	case owner.GuestID != "":
		return s.guests, owner.GuestID, nil
	}
	return nil, "", ErrNoCartOwner
}

// publishCount reads the fresh count and notifies subscribers
func (s *CartService) publishCount(ctx context.Context, owner CartOwner) int {
	count, err := s.Count(ctx, owner)
	if err != nil {
		s.logger.Warn("failed to read cart count for notification", zap.String("owner", owner.Key()), zap.Error(err))
		return 0
	}
	s.notifier.Publish(CartEvent{Owner: owner.Key(), Count: count})
	return count
}

// Add puts quantity units of a product into the cart, summing with an existing line
func (s *CartService) Add(ctx context.Context, owner CartOwner, productID string, quantity int) (*CartView, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	store, id, err := s.store(owner)
	if err != nil {
		return nil, err
	}

	var product models.Product
	if err := s.db.WithContext(ctx).Select("id").First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	if _, err := store.Add(ctx, id, productID, quantity); err != nil {
		return nil, err
	}
	recordMutation("add", owner)
	s.publishCount(ctx, owner)
	return s.Get(ctx, owner)
}

// Remove deletes a line from the cart
func (s *CartService) Remove(ctx context.Context, owner CartOwner, lineID string) (*CartView, error) {
	store, id, err := s.store(owner)
	if err != nil {
		return nil, err
	}
	if err := store.Remove(ctx, id, lineID); err != nil {
		return nil, err
	}
	recordMutation("remove", owner)
	s.publishCount(ctx, owner)
	return s.Get(ctx, owner)
}

// SetQuantity replaces a line's quantity. Values below 1 are rejected and change nothing.
func (s *CartService) SetQuantity(ctx context.Context, owner CartOwner, lineID string, quantity int) (*CartView, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	store, id, err := s.store(owner)
	if err != nil {
		return nil, err
	}
	if _, err := store.SetQuantity(ctx, id, lineID, quantity); err != nil {
		return nil, err
	}
	recordMutation("set_quantity", owner)
	s.publishCount(ctx, owner)
	return s.Get(ctx, owner)
}

// Clear empties the cart
func (s *CartService) Clear(ctx context.Context, owner CartOwner) error {
	store, id, err := s.store(owner)
	if err != nil {
		return err
	}
	if err := store.Clear(ctx, id); err != nil {
		return err
	}
	recordMutation("clear", owner)
	s.notifier.Publish(CartEvent{Owner: owner.Key(), Count: 0})
	return nil
}

// Count returns the total quantity in the cart; a cart that does not exist counts 0
func (s *CartService) Count(ctx context.Context, owner CartOwner) (int, error) {
	store, id, err := s.store(owner)
	if err != nil {
		return 0, err
	}
	return store.Count(ctx, id)
}

// Get returns the cart with product details and totals
func (s *CartService) Get(ctx context.Context, owner CartOwner) (*CartView, error) {
	store, id, err := s.store(owner)
	if err != nil {
		return nil, err
	}
	lines, err := store.Lines(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &CartView{Items: make([]CartViewItem, 0, len(lines)), Total: decimal.Zero}
	if len(lines) == 0 {
		return view, nil
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	var products []models.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}
	byID := make(map[string]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, l := range lines {
		item := CartViewItem{ID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity, Subtotal: decimal.Zero}
		if p, ok := byID[l.ProductID]; ok {
			item.Product = p
			item.Subtotal = p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		}
		view.Items = append(view.Items, item)
		view.Count += l.Quantity
		view.Total = view.Total.Add(item.Subtotal)
	}
	return view, nil
}

// Merge moves a guest cart into a user cart, summing quantities per product,
// then empties the guest cart. Merging an empty guest cart changes nothing.
func (s *CartService) Merge(ctx context.Context, guestID, userID string) (*CartView, error) {
	user := UserCart(userID)
	if guestID == "" {
		return s.Get(ctx, user)
	}
	guest := GuestCart(guestID)

	lines, err := s.guests.Lines(ctx, guestID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return s.Get(ctx, user)
	}

	// A guest line leaves the guest cart as soon as it lands in the user cart.
	for _, l := range lines {
		var product models.Product
		err := s.db.WithContext(ctx).Select("id").First(&product, "id = ?", l.ProductID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			s.logger.Info("dropping guest cart line for deleted product", zap.String("product_id", l.ProductID))
		case err != nil:
			s.publishMergeProgress(ctx, guest, user)
			return nil, fmt.Errorf("failed to load product: %w", err)
		default:
			if _, err := s.users.Add(ctx, userID, l.ProductID, l.Quantity); err != nil {
				s.publishMergeProgress(ctx, guest, user)
				return nil, err
			}
		}
		if err := s.guests.Remove(ctx, guestID, l.ID); err != nil {
			s.publishMergeProgress(ctx, guest, user)
			return nil, err
		}
	}

	if err := s.guests.Clear(ctx, guestID); err != nil {
		return nil, err
	}
	recordMutation("merge", user)
	s.notifier.Publish(CartEvent{Owner: guest.Key(), Count: 0})
	s.publishCount(ctx, user)
	return s.Get(ctx, user)
}

// publishMergeProgress reports both carts after a merge stopped partway
func (s *CartService) publishMergeProgress(ctx context.Context, guest, user CartOwner) {
	s.publishCount(ctx, guest)
	s.publishCount(ctx, user)
}
