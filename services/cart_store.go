package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartLine is one product line of a cart as held by a store
type CartLine struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CartStore persists cart lines for one kind of owner
type CartStore interface {
	// Add merges quantity into the line for productID, creating it if needed
	Add(ctx context.Context, owner, productID string, quantity int) (CartLine, error)
	// Remove deletes a line; removing a missing line is not an error
	Remove(ctx context.Context, owner, lineID string) error
	// SetQuantity replaces the quantity of an existing line
	SetQuantity(ctx context.Context, owner, lineID string, quantity int) (CartLine, error)
	// Lines returns every line of the cart
	Lines(ctx context.Context, owner string) ([]CartLine, error)
	// Count returns the total quantity across lines
	Count(ctx context.Context, owner string) (int, error)
	// Clear removes every line
	Clear(ctx context.Context, owner string) error
}

func sumQuantities(lines []CartLine) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

// DBCartStore keeps signed-in customers' carts in the cart_items table
type DBCartStore struct {
	db *gorm.DB
}

// NewDBCartStore creates a database-backed cart store
func NewDBCartStore(db *gorm.DB) *DBCartStore {
	return &DBCartStore{db: db}
}

func toCartLine(item models.CartItem) CartLine {
	return CartLine{ID: item.ID, ProductID: item.ProductID, Quantity: item.Quantity}
}

// Add upserts the line so concurrent adds of the same product sum instead of colliding
func (s *DBCartStore) Add(ctx context.Context, owner, productID string, quantity int) (CartLine, error) {
	if quantity < 1 {
		return CartLine{}, ErrInvalidQuantity
	}

	item := models.CartItem{UserID: owner, ProductID: productID, Quantity: quantity}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + ?", quantity),
			"updated_at": time.Now(),
		}),
	}).Create(&item).Error
	if err != nil {
		return CartLine{}, fmt.Errorf("failed to add cart item: %w", err)
	}

	var stored models.CartItem
	if err := s.db.WithContext(ctx).Where("user_id = ? AND product_id = ?", owner, productID).First(&stored).Error; err != nil {
		return CartLine{}, fmt.Errorf("failed to reload cart item: %w", err)
	}
	return toCartLine(stored), nil
}

// Remove deletes the line if it belongs to owner
func (s *DBCartStore) Remove(ctx context.Context, owner, lineID string) error {
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", lineID, owner).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

// SetQuantity updates the line if it belongs to owner
func (s *DBCartStore) SetQuantity(ctx context.Context, owner, lineID string, quantity int) (CartLine, error) {
	if quantity < 1 {
		return CartLine{}, ErrInvalidQuantity
	}

	res := s.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ? AND user_id = ?", lineID, owner).
		Update("quantity", quantity)
	if res.Error != nil {
		return CartLine{}, fmt.Errorf("failed to update cart item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return CartLine{}, ErrCartItemNotFound
	}

	var stored models.CartItem
	if err := s.db.WithContext(ctx).First(&stored, "id = ?", lineID).Error; err != nil {
		return CartLine{}, fmt.Errorf("failed to reload cart item: %w", err)
	}
	return toCartLine(stored), nil
}

// Lines returns the owner's lines, oldest first
func (s *DBCartStore) Lines(ctx context.Context, owner string) ([]CartLine, error) {
	var items []models.CartItem
	if err := s.db.WithContext(ctx).Where("user_id = ?", owner).Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	lines := make([]CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, toCartLine(item))
	}
	return lines, nil
}

// Count sums quantities in the database
func (s *DBCartStore) Count(ctx context.Context, owner string) (int, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("user_id = ?", owner).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count cart: %w", err)
	}
	return int(total), nil
}

// Clear deletes every line of the owner
func (s *DBCartStore) Clear(ctx context.Context, owner string) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", owner).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// GuestCartTTL is how long an untouched guest cart is kept in redis
const GuestCartTTL = 30 * 24 * time.Hour

// Guest lines use the product ID as their line ID; the hash field is the product ID.
var setIfExistsScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return -1
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return tonumber(ARGV[2])
`)

// RedisCartStore keeps guest carts as one redis hash per guest
type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCartStore creates a redis-backed guest cart store
func NewRedisCartStore(client *redis.Client) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: GuestCartTTL}
}

func guestCartKey(guestID string) string {
	return fmt.Sprintf("cart:guest:%s:items", guestID)
}

// Add increments the product's quantity in the hash
func (s *RedisCartStore) Add(ctx context.Context, owner, productID string, quantity int) (CartLine, error) {
	if quantity < 1 {
		return CartLine{}, ErrInvalidQuantity
	}
	key := guestCartKey(owner)

	pipe := s.client.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, productID, int64(quantity))
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return CartLine{}, fmt.Errorf("failed to add guest cart item: %w", err)
	}
	return CartLine{ID: productID, ProductID: productID, Quantity: int(incr.Val())}, nil
}

// Remove deletes the product field
func (s *RedisCartStore) Remove(ctx context.Context, owner, lineID string) error {
	if err := s.client.HDel(ctx, guestCartKey(owner), lineID).Err(); err != nil {
		return fmt.Errorf("failed to remove guest cart item: %w", err)
	}
	return nil
}

// SetQuantity overwrites an existing product field atomically
func (s *RedisCartStore) SetQuantity(ctx context.Context, owner, lineID string, quantity int) (CartLine, error) {
	if quantity < 1 {
		return CartLine{}, ErrInvalidQuantity
	}

	res, err := setIfExistsScript.Run(ctx, s.client, []string{guestCartKey(owner)}, lineID, quantity, s.ttl.Milliseconds()).Int64()
	if err != nil {
		return CartLine{}, fmt.Errorf("failed to update guest cart item: %w", err)
	}
	if res < 0 {
		return CartLine{}, ErrCartItemNotFound
	}
	return CartLine{ID: lineID, ProductID: lineID, Quantity: int(res)}, nil
}

// Lines reads the whole hash, ordered by product ID
func (s *RedisCartStore) Lines(ctx context.Context, owner string) ([]CartLine, error) {
	items, err := s.client.HGetAll(ctx, guestCartKey(owner)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load guest cart: %w", err)
	}

	lines := make([]CartLine, 0, len(items))
	for productID, raw := range items {
		quantity, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity for product %s: %w", productID, err)
		}
		if quantity > 0 {
			lines = append(lines, CartLine{ID: productID, ProductID: productID, Quantity: quantity})
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

// Count sums the hash values
func (s *RedisCartStore) Count(ctx context.Context, owner string) (int, error) {
	lines, err := s.Lines(ctx, owner)
	if err != nil {
		return 0, err
	}
	return sumQuantities(lines), nil
}

// Clear deletes the hash
func (s *RedisCartStore) Clear(ctx context.Context, owner string) error {
	if err := s.client.Del(ctx, guestCartKey(owner)).Err(); err != nil {
		return fmt.Errorf("failed to clear guest cart: %w", err)
	}
	return nil
}

// MemoryCartStore keeps guest carts in process memory when redis is not configured.
// Carts are lost on restart.
type MemoryCartStore struct {
	mu    sync.Mutex
	carts map[string]map[string]int
}

// NewMemoryCartStore creates an empty in-memory store
func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string]map[string]int)}
}

// Add increments the product's quantity
func (s *MemoryCartStore) Add(ctx context.Context, owner, productID string, quantity int) (CartLine, error) {
	if quantity < 1 {
		return CartLine{}, ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[owner]
	if !ok {
		cart = make(map[string]int)
		s.carts[owner] = cart
	}
	cart[productID] += quantity
	return CartLine{ID: productID, ProductID: productID, Quantity: cart[productID]}, nil
}

// Remove deletes the product line
func (s *MemoryCartStore) Remove(ctx context.Context, owner, lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts[owner], lineID)
	return nil
}

// SetQuantity overwrites an existing line
func (s *MemoryCartStore) SetQuantity(ctx context.Context, owner, lineID string, quantity int) (CartLine, error) {
	if quantity < 1 {
		return CartLine{}, ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.carts[owner]
	if _, ok := cart[lineID]; !ok {
		return CartLine{}, ErrCartItemNotFound
	}
	cart[lineID] = quantity
	return CartLine{ID: lineID, ProductID: lineID, Quantity: quantity}, nil
}

// Lines returns the lines ordered by product ID
func (s *MemoryCartStore) Lines(ctx context.Context, owner string) ([]CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]CartLine, 0, len(s.carts[owner]))
	for productID, quantity := range s.carts[owner] {
		lines = append(lines, CartLine{ID: productID, ProductID: productID, Quantity: quantity})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

// Count sums the quantities
func (s *MemoryCartStore) Count(ctx context.Context, owner string) (int, error) {
	lines, _ := s.Lines(ctx, owner)
	return sumQuantities(lines), nil
}

// Clear drops the owner's cart
func (s *MemoryCartStore) Clear(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, owner)
	return nil
}
