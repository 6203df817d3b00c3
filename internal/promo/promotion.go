package promo

import (
	"math"
	"strings"
	"time"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Promotion is a restaurant-scoped, reusable discount definition. Codes are
// stored upper-case; NormalizeCode must be applied before lookups.
type Promotion struct {
	ID                   string
	RestaurantID         string
	Code                 string
	DiscountType         DiscountType
	DiscountValue        float64 // percent number, or currency units for fixed
	MinOrderCents        int64
	MaxDiscountCents     *int64 // cap, only meaningful for percentage
	StartDate            time.Time
	EndDate              time.Time
	UsageLimit           *int // nil = unlimited
	UsedCount            int
	IsActive             bool
	ApplicableCategories []string
	ApplicableMenuItems  []string
}

type Reason string

const (
	ReasonInactive          Reason = "inactive"
	ReasonNotYetStarted     Reason = "not-yet-started"
	ReasonExpired           Reason = "expired"
	ReasonUsageLimitReached Reason = "usage-limit-reached"
	ReasonBelowMinimum      Reason = "below-minimum-order-amount"
	ReasonNotApplicable     Reason = "not-applicable-to-items"
)

// InvalidError reports why a promotion cannot be applied.
type InvalidError struct{ Reason Reason }

func (e *InvalidError) Error() string { return "promotion invalid: " + string(e.Reason) }

// ItemRef is the slice of an order line the engine needs for applicability.
type ItemRef struct {
	MenuItemID string
	CategoryID string
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks a promotion against an order amount and its items at an
// explicit instant. Checks run in a fixed order so the reported reason is
// deterministic; the first failure wins.
func Validate(p *Promotion, orderCents int64, items []ItemRef, now time.Time) error {
	if !p.IsActive {
		return &InvalidError{ReasonInactive}
	}
	if now.Before(p.StartDate) {
		return &InvalidError{ReasonNotYetStarted}
	}
	if !now.Before(p.EndDate) {
		return &InvalidError{ReasonExpired}
	}
	if p.UsageLimit != nil && p.UsedCount >= *p.UsageLimit {
		return &InvalidError{ReasonUsageLimitReached}
	}
	if orderCents < p.MinOrderCents {
		return &InvalidError{ReasonBelowMinimum}
	}
	if !appliesTo(p, items) {
		return &InvalidError{ReasonNotApplicable}
	}
	return nil
}

// ComputeDiscount returns the discount in cents for the given order amount.
// Percentage discounts round half-up to the cent and honor the cap; the
// result never exceeds the order amount and is never negative.
func ComputeDiscount(p *Promotion, orderCents int64) int64 {
	var d int64
	switch p.DiscountType {
	case DiscountPercentage:
		d = roundHalfUp(float64(orderCents) * p.DiscountValue / 100)
		if p.MaxDiscountCents != nil && d > *p.MaxDiscountCents {
			d = *p.MaxDiscountCents
		}
	case DiscountFixed:
		d = roundHalfUp(p.DiscountValue * 100)
	}
	if d > orderCents {
		d = orderCents
	}
	if d < 0 {
		d = 0
	}
	return d
}

// RemainingUses reports how many applications are left. The second return is
// false when the promotion is unlimited.
func RemainingUses(p *Promotion) (int, bool) {
	if p.UsageLimit == nil {
		return 0, false
	}
	r := *p.UsageLimit - p.UsedCount
	if r < 0 {
		r = 0
	}
	return r, true
}

// appliesTo is true when the promotion has no item restrictions, or at least
// one order item matches the restriction sets.
func appliesTo(p *Promotion, items []ItemRef) bool {
	if len(p.ApplicableCategories) == 0 && len(p.ApplicableMenuItems) == 0 {
		return true
	}
	for _, it := range items {
		for _, id := range p.ApplicableMenuItems {
			if it.MenuItemID == id {
				return true
			}
		}
		for _, c := range p.ApplicableCategories {
			if it.CategoryID == c {
				return true
			}
		}
	}
	return false
}

func roundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}
