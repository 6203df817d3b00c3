package orders

import (
	"time"

	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/promo"
)

// Modifier is a selected option on a line item (e.g. "extra cheese").
// PriceCents is added to the unit price for each quantity.
type Modifier struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

type LineItem struct {
	MenuItemID     string     `json:"menu_item_id"`
	CategoryID     string     `json:"category_id,omitempty"`
	Name           string     `json:"name"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	Modifiers      []Modifier `json:"modifiers,omitempty"`
}

// TotalCents is quantity times unit price plus selected modifiers.
func (it LineItem) TotalCents() int64 {
	unit := it.UnitPriceCents
	for _, m := range it.Modifiers {
		unit += m.PriceCents
	}
	return int64(it.Quantity) * unit
}

// StatusChange is one audit record per successful transition.
type StatusChange struct {
	Status    Status    `json:"status"`
	Actor     Actor     `json:"actor"`
	ChangedAt time.Time `json:"changed_at"`
}

// Order is the mutable aggregate this core controls. It is never deleted;
// it only reaches a terminal status. Version is the optimistic-concurrency
// counter bumped on every write.
type Order struct {
	ID            string         `json:"id"`
	Number        string         `json:"number"`
	RestaurantID  string         `json:"restaurant_id"`
	TableID       string         `json:"table_id"`
	Items         []LineItem     `json:"items"`
	SubtotalCents int64          `json:"subtotal_cents"`
	DiscountCents int64          `json:"discount_cents"`
	TaxCents      int64          `json:"tax_cents"`
	TipCents      int64          `json:"tip_cents"`
	TotalCents    int64          `json:"total_cents"`
	Status        Status         `json:"status"`
	PromotionID   string         `json:"promotion_id,omitempty"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	StatusLog     []StatusChange `json:"status_log,omitempty"`
}

// Subtotal recomputes the items sum.
func (o *Order) Subtotal() int64 {
	var sum int64
	for _, it := range o.Items {
		sum += it.TotalCents()
	}
	return sum
}

// RecomputeTotal re-derives total from the money terms. Called after every
// mutation of any term so the identity total = subtotal - discount + tax + tip
// holds at all times.
func (o *Order) RecomputeTotal() {
	o.TotalCents = o.SubtotalCents - o.DiscountCents + o.TaxCents + o.TipCents
}

// ItemRefs projects the lines into the view the promotion engine checks
// applicability against.
func (o *Order) ItemRefs() []promo.ItemRef {
	refs := make([]promo.ItemRef, 0, len(o.Items))
	for _, it := range o.Items {
		refs = append(refs, promo.ItemRef{MenuItemID: it.MenuItemID, CategoryID: it.CategoryID})
	}
	return refs
}

// TaxFor computes sales tax on a subtotal at the given basis-point rate,
// rounded half-up to the cent.
func TaxFor(subtotalCents int64, rateBPS int) int64 {
	if rateBPS <= 0 {
		return 0
	}
	// subtotal * bps / 10000, half-up
	return (subtotalCents*int64(rateBPS) + 5000) / 10000
}
