package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MembershipLevel is the loyalty tier derived from lifetime spend
type MembershipLevel string

const (
	MembershipRegular  MembershipLevel = "Regular"
	MembershipSilver   MembershipLevel = "Silver"
	MembershipGold     MembershipLevel = "Gold"
	MembershipPlatinum MembershipLevel = "Platinum"
)

// CustomerSegment is a marketing group a customer can fall into
type CustomerSegment string

const (
	SegmentNew      CustomerSegment = "new"
	SegmentLoyal    CustomerSegment = "loyal"
	SegmentInactive CustomerSegment = "inactive"
)

const (
	// NewCustomerWindow is how long after sign-up a customer counts as new (inclusive)
	NewCustomerWindow = 30 * 24 * time.Hour
	// InactiveAfter is how long without a purchase before a customer counts as inactive
	InactiveAfter = 90 * 24 * time.Hour
	// LoyalOrderCount is the number of orders that makes a customer loyal
	LoyalOrderCount = 5
	// SpendPerPoint is how much spend earns one point
	SpendPerPoint = 100
)

type tier struct {
	level     MembershipLevel
	threshold decimal.Decimal
}

// Highest first.
var tiers = []tier{
	{MembershipPlatinum, decimal.NewFromInt(30000)},
	{MembershipGold, decimal.NewFromInt(10000)},
	{MembershipSilver, decimal.NewFromInt(5000)},
	{MembershipRegular, decimal.Zero},
}

// MembershipLevelFor returns the tier for a lifetime spend
func MembershipLevelFor(totalSpent decimal.Decimal) MembershipLevel {
	for _, t := range tiers {
		if totalSpent.GreaterThanOrEqual(t.threshold) {
			return t.level
		}
	}
	return MembershipRegular
}

// ParseMembershipLevel returns the level for a name and whether it is known
func ParseMembershipLevel(s string) (MembershipLevel, bool) {
	for _, t := range tiers {
		if string(t.level) == s {
			return t.level, true
		}
	}
	return "", false
}

// PointsFor returns floor(totalSpent / SpendPerPoint). Negative spend earns nothing.
func PointsFor(totalSpent decimal.Decimal) int64 {
	if totalSpent.IsNegative() {
		return 0
	}
	return totalSpent.Div(decimal.NewFromInt(SpendPerPoint)).Floor().IntPart()
}

// TierProgress describes how far a customer is from the next tier
type TierProgress struct {
	Current       MembershipLevel  `json:"current"`
	Next          *MembershipLevel `json:"next,omitempty"`
	NextThreshold *decimal.Decimal `json:"next_threshold,omitempty"`
	Remaining     decimal.Decimal  `json:"remaining"`
	Percent       float64          `json:"percent"`
}

// ProgressFor computes the progress toward the next tier. Platinum has no next tier.
func ProgressFor(totalSpent decimal.Decimal) TierProgress {
	current := MembershipLevelFor(totalSpent)
	progress := TierProgress{Current: current, Remaining: decimal.Zero, Percent: 100}

	for i := len(tiers) - 1; i >= 0; i-- {
		t := tiers[i]
		if t.threshold.GreaterThan(totalSpent) {
			level := t.level
			threshold := t.threshold
			progress.Next = &level
			progress.NextThreshold = &threshold
			progress.Remaining = threshold.Sub(totalSpent)
			pct, _ := totalSpent.Div(threshold).Mul(decimal.NewFromInt(100)).Float64()
			if pct < 0 {
				pct = 0
			}
			progress.Percent = pct
			break
		}
	}
	return progress
}

// CustomerStats are the purchase aggregates a customer's classification is derived from
type CustomerStats struct {
	TotalOrders  int             `json:"total_orders"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
	LastPurchase *time.Time      `json:"last_purchase,omitempty"`
}

// Add folds an order into the aggregates if it counts toward spend
func (s *CustomerStats) Add(o Order) {
	if !o.CountsTowardSpend() {
		return
	}
	s.TotalOrders++
	s.TotalSpent = s.TotalSpent.Add(o.TotalAmount)
	if s.LastPurchase == nil || o.CreatedAt.After(*s.LastPurchase) {
		created := o.CreatedAt
		s.LastPurchase = &created
	}
}

// Membership returns the tier for the aggregated spend
func (s CustomerStats) Membership() MembershipLevel {
	return MembershipLevelFor(s.TotalSpent)
}

// Points returns the loyalty points for the aggregated spend
func (s CustomerStats) Points() int64 {
	return PointsFor(s.TotalSpent)
}

// IsNewCustomer reports whether the account was created within NewCustomerWindow of now
func IsNewCustomer(createdAt, now time.Time) bool {
	return now.Sub(createdAt) <= NewCustomerWindow
}

// IsLoyalCustomer reports whether the customer has placed at least LoyalOrderCount orders
func IsLoyalCustomer(totalOrders int) bool {
	return totalOrders >= LoyalOrderCount
}

// IsInactiveCustomer reports whether the customer never purchased or has not for InactiveAfter
func IsInactiveCustomer(lastPurchase *time.Time, now time.Time) bool {
	if lastPurchase == nil {
		return true
	}
	return now.Sub(*lastPurchase) > InactiveAfter
}

// SegmentsFor returns every segment the customer belongs to
func SegmentsFor(stats CustomerStats, createdAt, now time.Time) []CustomerSegment {
	segments := []CustomerSegment{}
	if IsNewCustomer(createdAt, now) {
		segments = append(segments, SegmentNew)
	}
	if IsLoyalCustomer(stats.TotalOrders) {
		segments = append(segments, SegmentLoyal)
	}
	if IsInactiveCustomer(stats.LastPurchase, now) {
		segments = append(segments, SegmentInactive)
	}
	return segments
}
