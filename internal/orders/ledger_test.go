package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/logger"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/promo"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory Store with the same compare-and-swap contract as
// the Postgres one, used to exercise the ledger without a database.
type memStore struct {
	mu     sync.Mutex
	orders map[string]*Order
	promos map[string]*promo.Promotion
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[string]*Order),
		promos: make(map[string]*promo.Promotion),
	}
}

func cloneOrder(o *Order) *Order {
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	c.StatusLog = append([]StatusChange(nil), o.StatusLog...)
	return &c
}

func (s *memStore) InsertOrder(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *memStore) GetOrder(_ context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *memStore) PromotionByID(_ context.Context, restaurantID, id string) (*promo.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.promos[id]
	if !ok || p.RestaurantID != restaurantID {
		return nil, ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *memStore) PromotionByCode(_ context.Context, restaurantID, code string) (*promo.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.promos {
		if p.RestaurantID == restaurantID && p.Code == code {
			c := *p
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) TransitionOrder(_ context.Context, orderID string, from, to Status, actor Actor, at time.Time) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != from {
		return nil, ErrConcurrentModification
	}
	o.Status = to
	o.Version++
	o.UpdatedAt = at
	o.StatusLog = append(o.StatusLog, StatusChange{Status: to, Actor: actor, ChangedAt: at})
	return cloneOrder(o), nil
}

func (s *memStore) UpdateItems(_ context.Context, orderID string, version int64, items []LineItem, m Money) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Version != version {
		return nil, ErrConcurrentModification
	}
	o.Items = append([]LineItem(nil), items...)
	o.SubtotalCents = m.SubtotalCents
	o.DiscountCents = m.DiscountCents
	o.TaxCents = m.TaxCents
	o.TipCents = m.TipCents
	o.TotalCents = m.TotalCents
	o.Version++
	return cloneOrder(o), nil
}

func (s *memStore) ApplyPromotion(_ context.Context, orderID string, version int64, promotionID string, m Money, consumeUse bool) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Version != version {
		return nil, ErrConcurrentModification
	}
	if consumeUse {
		p, ok := s.promos[promotionID]
		if !ok {
			return nil, ErrNotFound
		}
		// guard fails the whole unit, the order stays untouched
		if p.UsageLimit != nil && p.UsedCount >= *p.UsageLimit {
			return nil, &promo.InvalidError{Reason: promo.ReasonUsageLimitReached}
		}
		p.UsedCount++
	}
	o.PromotionID = promotionID
	o.DiscountCents = m.DiscountCents
	o.TipCents = m.TipCents
	o.TotalCents = m.TotalCents
	o.Version++
	return cloneOrder(o), nil
}

// recorder counts notifications without doing anything with them.
type recorder struct {
	mu      sync.Mutex
	created []*Order
	changed []*Order
}

func (r *recorder) OrderCreated(o *Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, o)
}

func (r *recorder) OrderStatusChanged(o *Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, o)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created), len(r.changed)
}

func newTestLedger(taxRateBPS int) (*Ledger, *memStore, *recorder) {
	store := newMemStore()
	rec := &recorder{}
	l := NewLedger(store, rec, taxRateBPS, logger.New("test"))
	l.now = func() time.Time { return testNow }
	return l, store, rec
}

func testItems() []LineItem {
	return []LineItem{
		{MenuItemID: "m1", CategoryID: "mains", Name: "Burger", Quantity: 2, UnitPriceCents: 1200,
			Modifiers: []Modifier{{Name: "extra cheese", PriceCents: 100}}},
		{MenuItemID: "m2", CategoryID: "drinks", Name: "Cola", Quantity: 1, UnitPriceCents: 400},
	}
}

func placeOrder(t *testing.T, l *Ledger) *Order {
	t.Helper()
	o, err := l.PlaceOrder(context.Background(), PlaceOrderInput{
		RestaurantID: "r1",
		TableID:      "t5",
		Items:        testItems(),
	})
	require.NoError(t, err)
	return o
}

func assertMoneyIdentity(t *testing.T, o *Order) {
	t.Helper()
	assert.Equal(t, o.SubtotalCents-o.DiscountCents+o.TaxCents+o.TipCents, o.TotalCents,
		"total must equal subtotal - discount + tax + tip")
	assert.GreaterOrEqual(t, o.DiscountCents, int64(0))
	assert.LessOrEqual(t, o.DiscountCents, o.SubtotalCents)
	assert.GreaterOrEqual(t, o.TotalCents, int64(0))
}

func seedPromo(s *memStore, p *promo.Promotion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promos[p.ID] = p
}

func percentPromo() *promo.Promotion {
	return &promo.Promotion{
		ID:            "p1",
		RestaurantID:  "r1",
		Code:          "SAVE20",
		DiscountType:  promo.DiscountPercentage,
		DiscountValue: 20,
		StartDate:     testNow.Add(-time.Hour),
		EndDate:       testNow.Add(time.Hour),
		IsActive:      true,
	}
}

func TestPlaceOrderComputesMoney(t *testing.T) {
	l, _, rec := newTestLedger(1000) // 10% tax
	o := placeOrder(t, l)

	// 2 x (1200+100) + 400 = 3000
	assert.Equal(t, int64(3000), o.SubtotalCents)
	assert.Equal(t, int64(300), o.TaxCents)
	assert.Equal(t, int64(3300), o.TotalCents)
	assert.Equal(t, StatusPending, o.Status)
	assert.NotEmpty(t, o.Number)
	require.Len(t, o.StatusLog, 1)
	assert.Equal(t, StatusPending, o.StatusLog[0].Status)
	assertMoneyIdentity(t, o)

	created, changed := rec.counts()
	assert.Equal(t, 1, created)
	assert.Equal(t, 0, changed)
}

func TestPlaceOrderValidation(t *testing.T) {
	l, _, _ := newTestLedger(0)
	ctx := context.Background()

	_, err := l.PlaceOrder(ctx, PlaceOrderInput{TableID: "t1", Items: testItems()})
	assert.Error(t, err)

	_, err = l.PlaceOrder(ctx, PlaceOrderInput{RestaurantID: "r1", TableID: "t1"})
	assert.Error(t, err)

	_, err = l.PlaceOrder(ctx, PlaceOrderInput{RestaurantID: "r1", TableID: "t1",
		Items: []LineItem{{MenuItemID: "m1", Quantity: 0, UnitPriceCents: 100}}})
	assert.Error(t, err)
}

func TestTransitionLifecycle(t *testing.T) {
	l, _, rec := newTestLedger(0)
	o := placeOrder(t, l)
	ctx := context.Background()

	steps := []struct {
		actor Actor
		to    Status
	}{
		{ActorWaiter, StatusAccepted},
		{ActorKitchen, StatusPreparing},
		{ActorKitchen, StatusReady},
		{ActorWaiter, StatusCompleted},
	}
	for _, st := range steps {
		got, err := l.Transition(ctx, o.ID, st.actor, st.to)
		require.NoError(t, err)
		assert.Equal(t, st.to, got.Status)
		assertMoneyIdentity(t, got)
	}

	final, err := l.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, final.StatusLog, 5) // pending + 4 transitions
	assert.Equal(t, StatusCompleted, final.StatusLog[4].Status)

	_, changed := rec.counts()
	assert.Equal(t, 4, changed)
}

func TestTransitionInvalidLeavesOrderUnchanged(t *testing.T) {
	l, _, rec := newTestLedger(0)
	o := placeOrder(t, l)
	ctx := context.Background()

	// kitchen cannot accept, and pending cannot become ready
	for _, attempt := range []struct {
		actor Actor
		to    Status
	}{
		{ActorKitchen, StatusAccepted},
		{ActorWaiter, StatusReady},
		{ActorCustomer, StatusCompleted},
	} {
		_, err := l.Transition(ctx, o.ID, attempt.actor, attempt.to)
		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, StatusPending, invalid.From)
		assert.Equal(t, attempt.to, invalid.To)
	}

	cur, err := l.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, cur.Status)
	assert.Len(t, cur.StatusLog, 1)

	_, changed := rec.counts()
	assert.Equal(t, 0, changed, "failed transitions must not notify")
}

func TestTransitionOutOfTerminal(t *testing.T) {
	l, _, _ := newTestLedger(0)
	o := placeOrder(t, l)
	ctx := context.Background()

	_, err := l.Transition(ctx, o.ID, ActorWaiter, StatusRejected)
	require.NoError(t, err)

	_, err = l.Transition(ctx, o.ID, ActorWaiter, StatusAccepted)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusRejected, invalid.From)
}

func TestConcurrentAcceptSingleWinner(t *testing.T) {
	l, _, rec := newTestLedger(0)
	o := placeOrder(t, l)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Transition(ctx, o.ID, ActorWaiter, StatusAccepted)
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		losses++
		var invalid *InvalidTransitionError
		assert.True(t, errors.Is(err, ErrConcurrentModification) || errors.As(err, &invalid),
			"loser must see ConcurrentModification or InvalidTransition, got %v", err)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	cur, err := l.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, cur.Status)
	assert.Len(t, cur.StatusLog, 2, "exactly one transition recorded")

	_, changed := rec.counts()
	assert.Equal(t, 1, changed, "exactly one notification for one acceptance")
}

func TestApplyPromotionComputesAndConsumes(t *testing.T) {
	l, store, _ := newTestLedger(0)
	seedPromo(store, percentPromo())
	o := placeOrder(t, l) // subtotal 3000
	ctx := context.Background()

	got, err := l.ApplyPromotion(ctx, ApplyPromotionInput{OrderID: o.ID, PromotionCode: "save20"})
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PromotionID)
	assert.Equal(t, int64(600), got.DiscountCents)
	assert.Equal(t, int64(2400), got.TotalCents)
	assertMoneyIdentity(t, got)
	assert.Equal(t, 1, store.promos["p1"].UsedCount)
}

func TestApplyPromotionIdempotent(t *testing.T) {
	l, store, _ := newTestLedger(0)
	p := percentPromo()
	limit := 5
	p.UsageLimit = &limit
	seedPromo(store, p)
	o := placeOrder(t, l)
	ctx := context.Background()

	first, err := l.ApplyPromotion(ctx, ApplyPromotionInput{OrderID: o.ID, PromotionID: "p1"})
	require.NoError(t, err)
	second, err := l.ApplyPromotion(ctx, ApplyPromotionInput{OrderID: o.ID, PromotionID: "p1"})
	require.NoError(t, err)

	assert.Equal(t, first.DiscountCents, second.DiscountCents)
	assert.Equal(t, first.TotalCents, second.TotalCents)
	assert.Equal(t, 1, store.promos["p1"].UsedCount, "re-applying must not consume again")
}

func TestApplyPromotionPercentageCap(t *testing.T) {
	l, store, _ := newTestLedger(0)
	p := percentPromo()
	maxDiscount := int64(500)
	p.MaxDiscountCents = &maxDiscount
	seedPromo(store, p)
	o := placeOrder(t, l) // 20% of 3000 = 600, capped at 500
	got, err := l.ApplyPromotion(context.Background(), ApplyPromotionInput{OrderID: o.ID, PromotionID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.DiscountCents)
}

func TestApplyFixedPromotionNeverNegative(t *testing.T) {
	l, store, _ := newTestLedger(0)
	p := percentPromo()
	p.DiscountType = promo.DiscountFixed
	p.DiscountValue = 50 // $50 off a $30 order
	seedPromo(store, p)
	o := placeOrder(t, l)
	got, err := l.ApplyPromotion(context.Background(), ApplyPromotionInput{OrderID: o.ID, PromotionID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, o.SubtotalCents, got.DiscountCents)
	assert.GreaterOrEqual(t, got.TotalCents, int64(0))
	assertMoneyIdentity(t, got)
}

func TestApplyPromotionInvalidReasons(t *testing.T) {
	l, store, _ := newTestLedger(0)

	future := percentPromo()
	future.ID = "pf"
	future.Code = "SOON"
	future.StartDate = testNow.Add(time.Hour)
	seedPromo(store, future)

	exhausted := percentPromo()
	exhausted.ID = "px"
	exhausted.Code = "GONE"
	one := 1
	exhausted.UsageLimit = &one
	exhausted.UsedCount = 1
	seedPromo(store, exhausted)

	o := placeOrder(t, l)
	ctx := context.Background()

	_, err := l.ApplyPromotion(ctx, ApplyPromotionInput{OrderID: o.ID, PromotionID: "pf"})
	var inv *promo.InvalidError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, promo.ReasonNotYetStarted, inv.Reason)

	_, err = l.ApplyPromotion(ctx, ApplyPromotionInput{OrderID: o.ID, PromotionID: "px"})
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, promo.ReasonUsageLimitReached, inv.Reason)

	// nothing was written
	cur, err := l.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, cur.PromotionID)
	assert.Zero(t, cur.DiscountCents)
}

func TestSwapPromotionNeverRefunds(t *testing.T) {
	l, store, _ := newTestLedger(0)
	p1 := percentPromo()
	seedPromo(store, p1)
	p2 := percentPromo()
	p2.ID = "p2"
	p2.Code = "SAVE10"
	p2.DiscountValue = 10
	seedPromo(store, p2)

	o := placeOrder(t, l)
	ctx := context.Background()

	_, err := l.ApplyPromotion(ctx, ApplyPromotionInput{OrderID: o.ID, PromotionID: "p1"})
	require.NoError(t, err)
	got, err := l.ApplyPromotion(ctx, ApplyPromotionInput{OrderID: o.ID, PromotionID: "p2"})
	require.NoError(t, err)

	assert.Equal(t, "p2", got.PromotionID)
	assert.Equal(t, int64(300), got.DiscountCents)
	assert.Equal(t, 1, store.promos["p1"].UsedCount, "usage is consumed, not refunded")
	assert.Equal(t, 1, store.promos["p2"].UsedCount)
}

func TestApplyPromotionTakesTip(t *testing.T) {
	l, store, _ := newTestLedger(0)
	seedPromo(store, percentPromo())
	o := placeOrder(t, l)
	tip := int64(500)

	got, err := l.ApplyPromotion(context.Background(), ApplyPromotionInput{
		OrderID: o.ID, PromotionID: "p1", TipCents: &tip,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.TipCents)
	assert.Equal(t, int64(2900), got.TotalCents) // 3000 - 600 + 0 + 500
	assertMoneyIdentity(t, got)
}

func TestApplyPromotionToClosedOrder(t *testing.T) {
	l, store, _ := newTestLedger(0)
	seedPromo(store, percentPromo())
	o := placeOrder(t, l)
	ctx := context.Background()

	_, err := l.Transition(ctx, o.ID, ActorCustomer, StatusCancelled)
	require.NoError(t, err)

	_, err = l.ApplyPromotion(ctx, ApplyPromotionInput{OrderID: o.ID, PromotionID: "p1"})
	assert.ErrorIs(t, err, ErrOrderClosed)
}

func TestEditItemsRecomputesAndRevalidates(t *testing.T) {
	l, store, _ := newTestLedger(1000)
	p := percentPromo()
	p.MinOrderCents = 2000
	seedPromo(store, p)
	o := placeOrder(t, l) // subtotal 3000
	ctx := context.Background()

	_, err := l.ApplyPromotion(ctx, ApplyPromotionInput{OrderID: o.ID, PromotionID: "p1"})
	require.NoError(t, err)

	// shrink below the minimum: discount cleared, usage stays consumed
	small := []LineItem{{MenuItemID: "m2", CategoryID: "drinks", Name: "Cola", Quantity: 1, UnitPriceCents: 400}}
	got, err := l.EditItems(ctx, o.ID, small)
	require.NoError(t, err)
	assert.Equal(t, int64(400), got.SubtotalCents)
	assert.Zero(t, got.DiscountCents)
	assert.Equal(t, "p1", got.PromotionID)
	assertMoneyIdentity(t, got)
	assert.Equal(t, 1, store.promos["p1"].UsedCount)

	// grow back above the minimum: discount recomputed, still no extra use
	got, err = l.EditItems(ctx, o.ID, testItems())
	require.NoError(t, err)
	assert.Equal(t, int64(3000), got.SubtotalCents)
	assert.Equal(t, int64(600), got.DiscountCents)
	assertMoneyIdentity(t, got)
	assert.Equal(t, 1, store.promos["p1"].UsedCount)
}

func TestEditItemsOnlyWhilePending(t *testing.T) {
	l, _, _ := newTestLedger(0)
	o := placeOrder(t, l)
	ctx := context.Background()

	_, err := l.Transition(ctx, o.ID, ActorWaiter, StatusAccepted)
	require.NoError(t, err)

	_, err = l.EditItems(ctx, o.ID, testItems())
	assert.ErrorIs(t, err, ErrNotEditable)
}
