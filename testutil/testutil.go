package testutil

import (
	"os"
	"testing"

	"github.com/kendall-kelly/cosmetics-store-api/config"
	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// NewTestDB opens a migrated in-memory sqlite database and closes it when the test ends
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := config.ConnectDatabase(config.NewTestConfig())
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateProduct inserts a product with the given price and stock
func CreateProduct(t *testing.T, db *gorm.DB, name, price string, stock int) models.Product {
	t.Helper()

	product := models.Product{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Category:      "skincare",
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("Failed to create product %q: %v", name, err)
	}
	return product
}

// CreateProfile inserts a customer profile
func CreateProfile(t *testing.T, db *gorm.DB, userID, email, fullName string) models.Profile {
	t.Helper()

	profile := models.Profile{ID: userID, Email: email, FullName: fullName}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("Failed to create profile %q: %v", userID, err)
	}
	return profile
}

// AddCartItem puts a line in a user's cart
func AddCartItem(t *testing.T, db *gorm.DB, userID, productID string, quantity int) {
	t.Helper()

	item := models.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("Failed to add cart item: %v", err)
	}
}

// GrantAdmin adds a user to the admin allow-list
func GrantAdmin(t *testing.T, db *gorm.DB, userID, email string) {
	t.Helper()

	if err := db.Create(&models.AdminUser{ID: userID, Email: email}).Error; err != nil {
		t.Fatalf("Failed to grant admin to %q: %v", userID, err)
	}
}
