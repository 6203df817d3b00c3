package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/promo"
)

// Money bundles the five money terms written together on every mutation.
type Money struct {
	SubtotalCents int64
	DiscountCents int64
	TaxCents      int64
	TipCents      int64
	TotalCents    int64
}

// Store is the persistence seam of the ledger. Every mutating call is a
// single atomic unit: the conditional writes are keyed on the caller's view
// (prior status or version) and return ErrConcurrentModification when a
// concurrent writer got there first, leaving the record untouched.
type Store interface {
	InsertOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)

	PromotionByID(ctx context.Context, restaurantID, id string) (*promo.Promotion, error)
	PromotionByCode(ctx context.Context, restaurantID, code string) (*promo.Promotion, error)

	// TransitionOrder swaps the status from `from` to `to` and appends a
	// status-log record in the same unit.
	TransitionOrder(ctx context.Context, orderID string, from, to Status, actor Actor, at time.Time) (*Order, error)

	// UpdateItems replaces the line items and money terms, keyed on version.
	UpdateItems(ctx context.Context, orderID string, version int64, items []LineItem, m Money) (*Order, error)

	// ApplyPromotion writes discount/promotion id/money terms and, when
	// consumeUse is set, increments the promotion's used count — both
	// committed together or neither. A used-count guard losing the race
	// fails the whole unit with *promo.InvalidError (usage-limit-reached).
	ApplyPromotion(ctx context.Context, orderID string, version int64, promotionID string, m Money, consumeUse bool) (*Order, error)
}

// Notifier receives completed ledger operations. Implementations must never
// block or fail the operation that triggered them.
type Notifier interface {
	OrderCreated(o *Order)
	OrderStatusChanged(o *Order)
}

// Ledger owns the canonical order record: it validates transitions, keeps
// the money identity intact, and hands every committed change to the
// notifier. Notification strictly follows persistence, never precedes it.
type Ledger struct {
	store      Store
	notifier   Notifier
	taxRateBPS int
	log        *slog.Logger
	now        func() time.Time
}

func NewLedger(store Store, notifier Notifier, taxRateBPS int, log *slog.Logger) *Ledger {
	return &Ledger{
		store:      store,
		notifier:   notifier,
		taxRateBPS: taxRateBPS,
		log:        log,
		now:        time.Now,
	}
}

type PlaceOrderInput struct {
	RestaurantID string
	TableID      string
	Actor        Actor // defaults to customer
	Items        []LineItem
}

func (l *Ledger) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Order, error) {
	if in.RestaurantID == "" || in.TableID == "" {
		return nil, fmt.Errorf("restaurant and table are required")
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}
	actor := in.Actor
	if actor == "" {
		actor = ActorCustomer
	}

	now := l.now().UTC()
	o := &Order{
		ID:           uuid.NewString(),
		Number:       newOrderNumber(),
		RestaurantID: in.RestaurantID,
		TableID:      in.TableID,
		Items:        in.Items,
		Status:       StatusPending,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
		StatusLog:    []StatusChange{{Status: StatusPending, Actor: actor, ChangedAt: now}},
	}
	o.SubtotalCents = o.Subtotal()
	o.TaxCents = TaxFor(o.SubtotalCents, l.taxRateBPS)
	o.RecomputeTotal()

	if err := l.store.InsertOrder(ctx, o); err != nil {
		return nil, err
	}
	l.notifier.OrderCreated(o)
	return o, nil
}

// Transition moves an order to the requested status on behalf of actor. A
// pair not present in the transition table fails with
// *InvalidTransitionError and leaves the order unchanged; losing a race
// against a concurrent writer fails with ErrConcurrentModification.
func (l *Ledger) Transition(ctx context.Context, orderID string, actor Actor, to Status) (*Order, error) {
	o, err := l.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(actor, o.Status, to) {
		return nil, &InvalidTransitionError{From: o.Status, To: to}
	}
	updated, err := l.store.TransitionOrder(ctx, orderID, o.Status, to, actor, l.now().UTC())
	if err != nil {
		return nil, err
	}
	l.notifier.OrderStatusChanged(updated)
	return updated, nil
}

// EditItems replaces the line items of a pending order and recomputes the
// money terms. An applied promotion is re-validated against the new
// subtotal: still valid means the discount is recomputed, invalid means the
// discount is cleared. The promotion's used count is never refunded.
func (l *Ledger) EditItems(ctx context.Context, orderID string, items []LineItem) (*Order, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	o, err := l.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, ErrNotEditable
	}

	var sub int64
	for _, it := range items {
		sub += it.TotalCents()
	}
	m := Money{
		SubtotalCents: sub,
		TaxCents:      TaxFor(sub, l.taxRateBPS),
		TipCents:      o.TipCents,
	}
	if o.PromotionID != "" {
		p, err := l.store.PromotionByID(ctx, o.RestaurantID, o.PromotionID)
		if err != nil {
			return nil, err
		}
		refs := make([]promo.ItemRef, 0, len(items))
		for _, it := range items {
			refs = append(refs, promo.ItemRef{MenuItemID: it.MenuItemID, CategoryID: it.CategoryID})
		}
		if verr := promo.Validate(p, sub, refs, l.now().UTC()); verr == nil {
			m.DiscountCents = promo.ComputeDiscount(p, sub)
		} else {
			l.log.Info("promotion no longer valid after item edit, discount cleared",
				slog.String("order_id", orderID), slog.String("promotion_id", o.PromotionID))
		}
	}
	m.TotalCents = m.SubtotalCents - m.DiscountCents + m.TaxCents + m.TipCents

	return l.store.UpdateItems(ctx, orderID, o.Version, items, m)
}

type ApplyPromotionInput struct {
	OrderID       string
	PromotionID   string
	PromotionCode string
	TipCents      *int64 // the one caller-supplied money field taken as-is
}

// ApplyPromotion validates the promotion against the order and commits the
// discount, promotion id, recomputed total and the promotion's used-count
// increment as one atomic unit. Re-applying the promotion already on the
// order is idempotent: the money terms are recomputed but usage is not
// consumed again. Caller-supplied discount/tax/total are never trusted; the
// ledger re-derives them.
func (l *Ledger) ApplyPromotion(ctx context.Context, in ApplyPromotionInput) (*Order, error) {
	o, err := l.store.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if IsTerminal(o.Status) {
		return nil, ErrOrderClosed
	}

	var p *promo.Promotion
	switch {
	case in.PromotionID != "":
		p, err = l.store.PromotionByID(ctx, o.RestaurantID, in.PromotionID)
	case in.PromotionCode != "":
		p, err = l.store.PromotionByCode(ctx, o.RestaurantID, promo.NormalizeCode(in.PromotionCode))
	default:
		return nil, fmt.Errorf("promotion id or code is required")
	}
	if err != nil {
		return nil, err
	}

	tip := o.TipCents
	if in.TipCents != nil && *in.TipCents >= 0 {
		tip = *in.TipCents
	}

	consume := o.PromotionID != p.ID
	if consume {
		if verr := promo.Validate(p, o.SubtotalCents, o.ItemRefs(), l.now().UTC()); verr != nil {
			return nil, verr
		}
	}

	disc := promo.ComputeDiscount(p, o.SubtotalCents)
	m := Money{
		SubtotalCents: o.SubtotalCents,
		DiscountCents: disc,
		TaxCents:      o.TaxCents,
		TipCents:      tip,
	}
	m.TotalCents = m.SubtotalCents - m.DiscountCents + m.TaxCents + m.TipCents

	return l.store.ApplyPromotion(ctx, o.ID, o.Version, p.ID, m, consume)
}

func (l *Ledger) GetOrder(ctx context.Context, id string) (*Order, error) {
	return l.store.GetOrder(ctx, id)
}

func validateItems(items []LineItem) error {
	if len(items) == 0 {
		return fmt.Errorf("order needs at least one item")
	}
	for _, it := range items {
		if it.MenuItemID == "" {
			return fmt.Errorf("menu item id is required")
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("invalid quantity for menu item %s", it.MenuItemID)
		}
		if it.UnitPriceCents < 0 {
			return fmt.Errorf("invalid price for menu item %s", it.MenuItemID)
		}
	}
	return nil
}

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}
