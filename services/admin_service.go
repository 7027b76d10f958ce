package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdminService answers allow-list questions and aggregates back-office figures
type AdminService struct {
	db *gorm.DB
}

var adminServiceInstance *AdminService

// NewAdminService creates an admin service
func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db}
}

// GetAdminService returns the global admin service
func GetAdminService() *AdminService {
	return adminServiceInstance
}

// SetAdminService sets the global admin service
func SetAdminService(s *AdminService) {
	adminServiceInstance = s
}

// IsAdmin reports whether userID is on the admin allow-list
func (s *AdminService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var admin models.AdminUser
	err := s.db.WithContext(ctx).Select("id").First(&admin, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check admin allow-list: %w", err)
	}
	return true, nil
}

// DashboardStats are the headline numbers of the back-office home page
type DashboardStats struct {
	TotalOrders        int64                        `json:"total_orders"`
	OrdersByStatus     map[models.OrderStatus]int64 `json:"orders_by_status"`
	PendingPayments    int64                        `json:"pending_payments"`
	Revenue            decimal.Decimal              `json:"revenue"` // confirmed payments only
	TotalProducts      int64                        `json:"total_products"`
	LowStockProducts   int64                        `json:"low_stock_products"`
	OutOfStockProducts int64                        `json:"out_of_stock_products"`
	TotalCustomers     int64                        `json:"total_customers"`
	RecentOrders       []models.Order               `json:"recent_orders"`
}

// Dashboard gathers order, revenue, stock and customer figures
func (s *AdminService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &DashboardStats{
		OrdersByStatus: map[models.OrderStatus]int64{},
		Revenue:        decimal.Zero,
		RecentOrders:   []models.Order{},
	}

	var byStatus []struct {
		Status string
		Count  int64
	}
	if err := db.Model(&models.Order{}).Select("status, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	for _, row := range byStatus {
		stats.OrdersByStatus[models.OrderStatus(row.Status)] = row.Count
		stats.TotalOrders += row.Count
	}

	if err := db.Model(&models.Order{}).Where("payment_status = ?", string(models.PaymentPending)).Count(&stats.PendingPayments).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending payments: %w", err)
	}

	var amounts []decimal.Decimal
	if err := db.Model(&models.Order{}).Where("payment_status = ?", string(models.PaymentConfirmed)).Pluck("total_amount", &amounts).Error; err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	for _, a := range amounts {
		stats.Revenue = stats.Revenue.Add(a)
	}

	counts := []struct {
		dest  *int64
		model interface{}
		where string
		args  []interface{}
	}{
		{&stats.TotalProducts, &models.Product{}, "", nil},
		{&stats.LowStockProducts, &models.Product{}, "stock_quantity < ?", []interface{}{models.LowStockThreshold}},
		{&stats.OutOfStockProducts, &models.Product{}, "stock_quantity <= 0", nil},
		{&stats.TotalCustomers, &models.Profile{}, "", nil},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}

	if err := db.Order("created_at DESC, id DESC").Limit(5).Find(&stats.RecentOrders).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent orders: %w", err)
	}
	return stats, nil
}
