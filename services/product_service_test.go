package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/kendall-kelly/cosmetics-store-api/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestProductService(t *testing.T) (*ProductService, *gorm.DB) {
	db := testutil.NewTestDB(t)
	return NewProductService(db), db
}

func productInput(name, category string, stock int) ProductInput {
	return ProductInput{
		Name:          name,
		Description:   name + " for every skin type",
		Price:         decimal.RequireFromString("199.00"),
		StockQuantity: stock,
		Category:      category,
	}
}

func TestProductService_CreateUpdateGet(t *testing.T) {
	svc, _ := newTestProductService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, productInput("  Hydra Serum ", "serum", 12))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Hydra Serum", created.Name)

	in := productInput("Hydra Serum XL", "serum", 4)
	in.Price = decimal.RequireFromString("249.50")
	updated, err := svc.Update(ctx, created.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Hydra Serum XL", updated.Name)
	assert.True(t, decimal.RequireFromString("249.50").Equal(updated.Price))
	assert.True(t, updated.IsLowStock())
	assert.False(t, updated.IsOutOfStock())

	_, err = svc.Update(ctx, "missing", in)
	assert.ErrorIs(t, err, ErrProductNotFound)

	withImage, err := svc.SetImage(ctx, created.ID, "https://cdn.example.com/products/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/products/a.png", withImage.ImageURL)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_Validation(t *testing.T) {
	svc, _ := newTestProductService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    ProductInput
		field string
	}{
		{"empty name", productInput(" ", "serum", 1), "name"},
		{"negative price", ProductInput{Name: "X", Price: decimal.NewFromInt(-1)}, "price"},
		{"negative stock", productInput("X", "serum", -1), "stock_quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestProductService_ListFilters(t *testing.T) {
	svc, _ := newTestProductService(t)
	ctx := context.Background()

	for _, in := range []ProductInput{
		productInput("Rose Toner", "toner", 30),
		productInput("Green Tea Toner", "toner", 5),
		productInput("Night Cream", "cream", 0),
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	toners, err := svc.List(ctx, ProductFilter{Category: "toner"})
	require.NoError(t, err)
	assert.Len(t, toners, 2)

	searched, err := svc.List(ctx, ProductFilter{Search: "TEA"})
	require.NoError(t, err)
	require.Len(t, searched, 1)
	assert.Equal(t, "Green Tea Toner", searched[0].Name)

	low, err := svc.List(ctx, ProductFilter{Stock: StockLow})
	require.NoError(t, err)
	assert.Len(t, low, 2)

	out, err := svc.List(ctx, ProductFilter{Stock: StockOut})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Night Cream", out[0].Name)

	limited, err := svc.List(ctx, ProductFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	categories, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cream", "toner"}, categories)
}

func TestProductService_Related(t *testing.T) {
	svc, _ := newTestProductService(t)
	ctx := context.Background()

	base, err := svc.Create(ctx, productInput("Lip Tint 1", "lips", 10))
	require.NoError(t, err)
	for i := 2; i <= 7; i++ {
		_, err := svc.Create(ctx, productInput(fmt.Sprintf("Lip Tint %d", i), "lips", 10))
		require.NoError(t, err)
	}
	_, err = svc.Create(ctx, productInput("Body Lotion", "body", 10))
	require.NoError(t, err)

	related, err := svc.Related(ctx, base.ID)
	require.NoError(t, err)
	assert.Len(t, related, RelatedProductsLimit)
	for _, p := range related {
		assert.Equal(t, "lips", p.Category)
		assert.NotEqual(t, base.ID, p.ID)
	}

	_, err = svc.Related(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_Delete(t *testing.T) {
	svc, db := newTestProductService(t)
	ctx := context.Background()

	unused, err := svc.Create(ctx, productInput("Unused", "misc", 1))
	require.NoError(t, err)
	testutil.AddCartItem(t, db, "user-1", unused.ID, 1)
	require.NoError(t, svc.Delete(ctx, unused.ID))

	var cartLines int64
	db.Model(&models.CartItem{}).Count(&cartLines)
	assert.Zero(t, cartLines, "cart lines go with the product")

	assert.ErrorIs(t, svc.Delete(ctx, unused.ID), ErrProductNotFound)

	ordered, err := svc.Create(ctx, productInput("Ordered", "misc", 1))
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.OrderItem{OrderID: "order-1", ProductID: ordered.ID, Quantity: 1, Price: ordered.Price}).Error)
	assert.ErrorIs(t, svc.Delete(ctx, ordered.ID), ErrProductInUse)
}

func TestProductService_Reviews(t *testing.T) {
	svc, _ := newTestProductService(t)
	ctx := context.Background()
	product, err := svc.Create(ctx, productInput("Clay Mask", "mask", 10))
	require.NoError(t, err)

	_, err = svc.AddReview(ctx, product.ID, "user-1", 5, " Lovely ")
	require.NoError(t, err)
	_, err = svc.AddReview(ctx, product.ID, "user-2", 2, "")
	require.NoError(t, err)

	_, err = svc.AddReview(ctx, product.ID, "user-1", 4, "again")
	assert.ErrorIs(t, err, ErrDuplicateReview)

	for _, rating := range []int{0, 6} {
		_, err = svc.AddReview(ctx, product.ID, "user-3", rating, "")
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	}

	_, err = svc.AddReview(ctx, "missing", "user-3", 3, "")
	assert.ErrorIs(t, err, ErrProductNotFound)

	summary, err := svc.Reviews(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count)
	assert.InDelta(t, 3.5, summary.AverageRating, 0.001)
}
