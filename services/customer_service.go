package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/kendall-kelly/cosmetics-store-api/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CustomerSummary is a profile with its purchase aggregates and derived loyalty data
type CustomerSummary struct {
	models.Profile
	TotalOrders     int                      `json:"total_orders"`
	TotalSpent      decimal.Decimal          `json:"total_spent"`
	Points          int64                    `json:"points"`
	MembershipLevel models.MembershipLevel   `json:"membership_level"`
	LastPurchase    *time.Time               `json:"last_purchase,omitempty"`
	Segments        []models.CustomerSegment `json:"segments"`
}

// CustomerDetail adds the order history to a summary
type CustomerDetail struct {
	CustomerSummary
	Orders []models.Order `json:"orders"`
}

// PointsSummary is what a customer sees on their loyalty page
type PointsSummary struct {
	Points          int64                  `json:"points"`
	TotalSpent      decimal.Decimal        `json:"total_spent"`
	TotalOrders     int                    `json:"total_orders"`
	MembershipLevel models.MembershipLevel `json:"membership_level"`
	Progress        models.TierProgress    `json:"progress"`
	History         []PointsEntry          `json:"history"`
}

// PointsHistoryLimit is how many orders the points history shows
const PointsHistoryLimit = 10

// PointsEntry is what one order earned. Entries are derived from orders, never stored.
type PointsEntry struct {
	OrderID string          `json:"order_id"`
	Date    time.Time       `json:"date"`
	Amount  decimal.Decimal `json:"amount"`
	Points  int64           `json:"points"`
}

// CustomerFilter narrows the customer listing
type CustomerFilter struct {
	Segment    models.CustomerSegment // empty means all
	Membership models.MembershipLevel // empty means all
	Search     string                 // matches name, email or phone
}

// ProfileUpdate holds the editable profile fields; nil leaves a field unchanged
type ProfileUpdate struct {
	FullName *string
	Phone    *string
	Address  *string
}

// CustomerService manages profiles and derives membership, points and segments
type CustomerService struct {
	db  *gorm.DB
	now func() time.Time
}

var customerServiceInstance *CustomerService

// NewCustomerService creates a customer service
func NewCustomerService(db *gorm.DB) *CustomerService {
	return &CustomerService{db: db, now: time.Now}
}

// GetCustomerService returns the global customer service
func GetCustomerService() *CustomerService {
	return customerServiceInstance
}

// SetCustomerService sets the global customer service
func SetCustomerService(s *CustomerService) {
	customerServiceInstance = s
}

// SetClock overrides the time source used for segment classification
func (s *CustomerService) SetClock(now func() time.Time) {
	s.now = now
}

// EnsureProfile returns the profile for userID, creating it on first sign-in
func (s *CustomerService) EnsureProfile(ctx context.Context, userID, email, fullName string) (*models.Profile, error) {
	profile := models.Profile{ID: userID}
	err := s.db.WithContext(ctx).
		Where(models.Profile{ID: userID}).
		Attrs(models.Profile{Email: strings.TrimSpace(email), FullName: strings.TrimSpace(fullName)}).
		FirstOrCreate(&profile).Error
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return nil, &ValidationError{Field: "email", Message: "already used by another profile"}
		}
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return &profile, nil
}

// GetProfile loads a profile
func (s *CustomerService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &profile, nil
}

// UpdateProfile changes the editable fields of a profile
func (s *CustomerService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.Profile, error) {
	changes := map[string]interface{}{}
	if update.FullName != nil {
		name := strings.TrimSpace(*update.FullName)
		if len([]rune(name)) < 3 {
			return nil, &ValidationError{Field: "full_name", Message: "must be at least 3 characters"}
		}
		changes["full_name"] = name
	}
	if update.Phone != nil {
		changes["phone"] = strings.TrimSpace(*update.Phone)
	}
	if update.Address != nil {
		changes["address"] = strings.TrimSpace(*update.Address)
	}

	if len(changes) > 0 {
		res := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", userID).Updates(changes)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to update profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrProfileNotFound
		}
	}
	return s.GetProfile(ctx, userID)
}

// SetAvatar stores the avatar URL of a profile
func (s *CustomerService) SetAvatar(ctx context.Context, userID, avatarURL string) (*models.Profile, error) {
	res := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", userID).Update("avatar_url", avatarURL)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update avatar: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrProfileNotFound
	}
	return s.GetProfile(ctx, userID)
}

// statsFor aggregates the orders of the given users
func (s *CustomerService) statsFor(ctx context.Context, userIDs []string) (map[string]*models.CustomerStats, error) {
	stats := make(map[string]*models.CustomerStats, len(userIDs))
	for _, id := range userIDs {
		stats[id] = &models.CustomerStats{TotalSpent: decimal.Zero}
	}
	if len(userIDs) == 0 {
		return stats, nil
	}

	var orders []models.Order
	err := s.db.WithContext(ctx).
		Select("id", "user_id", "status", "payment_status", "total_amount", "created_at").
		Where("user_id IN ?", userIDs).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load customer orders: %w", err)
	}
	for _, o := range orders {
		stats[o.UserID].Add(o)
	}
	return stats, nil
}

func (s *CustomerService) summarize(profile models.Profile, stats *models.CustomerStats, now time.Time) CustomerSummary {
	return CustomerSummary{
		Profile:         profile,
		TotalOrders:     stats.TotalOrders,
		TotalSpent:      stats.TotalSpent,
		Points:          stats.Points(),
		MembershipLevel: stats.Membership(),
		LastPurchase:    stats.LastPurchase,
		Segments:        models.SegmentsFor(*stats, profile.CreatedAt, now),
	}
}

// Summary returns the aggregates and derived loyalty data of one customer
func (s *CustomerService) Summary(ctx context.Context, userID string) (*CustomerSummary, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.statsFor(ctx, []string{userID})
	if err != nil {
		return nil, err
	}
	summary := s.summarize(*profile, stats[userID], s.now())
	return &summary, nil
}

// PointsSummary returns a customer's points, tier and progress toward the next tier
func (s *CustomerService) PointsSummary(ctx context.Context, userID string) (*PointsSummary, error) {
	summary, err := s.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	history, err := s.pointsHistory(ctx, userID, PointsHistoryLimit)
	if err != nil {
		return nil, err
	}
	return &PointsSummary{
		Points:          summary.Points,
		TotalSpent:      summary.TotalSpent,
		TotalOrders:     summary.TotalOrders,
		MembershipLevel: summary.MembershipLevel,
		Progress:        models.ProgressFor(summary.TotalSpent),
		History:         history,
	}, nil
}

// pointsHistory lists the newest orders that count toward spend with the points each earned
func (s *CustomerService) pointsHistory(ctx context.Context, userID string, limit int) ([]PointsEntry, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Select("id", "total_amount", "created_at").
		Where("user_id = ?", userID).
		Where("status <> ?", models.OrderCancelled).
		Where("payment_status NOT IN ?", []models.PaymentStatus{models.PaymentCancelled, models.PaymentRefunded}).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load points history: %w", err)
	}

	history := make([]PointsEntry, 0, len(orders))
	for _, o := range orders {
		history = append(history, PointsEntry{
			OrderID: o.ID,
			Date:    o.CreatedAt,
			Amount:  o.TotalAmount,
			Points:  models.PointsFor(o.TotalAmount),
		})
	}
	return history, nil
}

func hasSegment(segments []models.CustomerSegment, want models.CustomerSegment) bool {
	for _, s := range segments {
		if s == want {
			return true
		}
	}
	return false
}

// ListCustomers returns every customer matching the filter, biggest spenders first
func (s *CustomerService) ListCustomers(ctx context.Context, filter CustomerFilter) ([]CustomerSummary, error) {
	q := s.db.WithContext(ctx).Model(&models.Profile{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", like, like, "%"+search+"%")
	}

	var profiles []models.Profile
	if err := q.Order("created_at DESC").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	stats, err := s.statsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := make([]CustomerSummary, 0, len(profiles))
	for _, p := range profiles {
		summary := s.summarize(p, stats[p.ID], now)
		if filter.Segment != "" && !hasSegment(summary.Segments, filter.Segment) {
			continue
		}
		if filter.Membership != "" && summary.MembershipLevel != filter.Membership {
			continue
		}
		result = append(result, summary)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TotalSpent.GreaterThan(result[j].TotalSpent)
	})
	return result, nil
}

// GetCustomer returns one customer's summary with every order, newest first
func (s *CustomerService) GetCustomer(ctx context.Context, userID string) (*CustomerDetail, error) {
	summary, err := s.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}

	orders := []models.Order{}
	if err := s.db.WithContext(ctx).Preload("Items").Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to load customer orders: %w", err)
	}
	return &CustomerDetail{CustomerSummary: *summary, Orders: orders}, nil
}
