package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/promo"
)

// PGStore is the Postgres-backed Store. Conditional updates keyed on the
// prior status or version implement the compare-and-swap contract; a losing
// writer sees zero rows affected and gets ErrConcurrentModification.
type PGStore struct{ DB *pgxpool.Pool }

func NewPGStore(db *pgxpool.Pool) *PGStore { return &PGStore{DB: db} }

func (s *PGStore) InsertOrder(ctx context.Context, o *Order) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, number, restaurant_id, table_id,
			subtotal_cents, discount_cents, tax_cents, tip_cents, total_cents,
			status, promotion_id, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''),$12,$13,$14)`,
		o.ID, o.Number, o.RestaurantID, o.TableID,
		o.SubtotalCents, o.DiscountCents, o.TaxCents, o.TipCents, o.TotalCents,
		string(o.Status), o.PromotionID, o.Version, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	if err := insertItems(ctx, tx, o.ID, o.Items); err != nil {
		return err
	}
	for _, sc := range o.StatusLog {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_status_log(order_id, status, actor, changed_at)
			VALUES ($1,$2,$3,$4)`,
			o.ID, string(sc.Status), string(sc.Actor), sc.ChangedAt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PGStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	var o Order
	var promoID *string
	err := s.DB.QueryRow(ctx, `
		SELECT id, number, restaurant_id, table_id,
			subtotal_cents, discount_cents, tax_cents, tip_cents, total_cents,
			status, promotion_id, version, created_at, updated_at
		FROM orders WHERE id=$1`, id).Scan(
		&o.ID, &o.Number, &o.RestaurantID, &o.TableID,
		&o.SubtotalCents, &o.DiscountCents, &o.TaxCents, &o.TipCents, &o.TotalCents,
		&o.Status, &promoID, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if promoID != nil {
		o.PromotionID = *promoID
	}
	if o.Items, err = s.loadItems(ctx, id); err != nil {
		return nil, err
	}
	if o.StatusLog, err = s.loadStatusLog(ctx, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PGStore) loadItems(ctx context.Context, orderID string) ([]LineItem, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT menu_item_id, category_id, name, quantity, unit_price_cents, modifiers
		FROM order_items WHERE order_id=$1 ORDER BY position`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.MenuItemID, &it.CategoryID, &it.Name,
			&it.Quantity, &it.UnitPriceCents, &it.Modifiers); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PGStore) loadStatusLog(ctx context.Context, orderID string) ([]StatusChange, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT status, actor, changed_at FROM order_status_log
		WHERE order_id=$1 ORDER BY changed_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusChange
	for rows.Next() {
		var sc StatusChange
		if err := rows.Scan(&sc.Status, &sc.Actor, &sc.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *PGStore) TransitionOrder(ctx context.Context, orderID string, from, to Status, actor Actor, at time.Time) (*Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status=$3, version=version+1, updated_at=$4
		WHERE id=$1 AND status=$2`,
		orderID, string(from), string(to), at)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		// row gone or status moved under us
		var cur string
		if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&cur); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return nil, ErrConcurrentModification
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log(order_id, status, actor, changed_at)
		VALUES ($1,$2,$3,$4)`, orderID, string(to), string(actor), at); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

func (s *PGStore) UpdateItems(ctx context.Context, orderID string, version int64, items []LineItem, m Money) (*Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET
			subtotal_cents=$3, discount_cents=$4, tax_cents=$5, tip_cents=$6, total_cents=$7,
			version=version+1, updated_at=now()
		WHERE id=$1 AND version=$2`,
		orderID, version, m.SubtotalCents, m.DiscountCents, m.TaxCents, m.TipCents, m.TotalCents)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrConcurrentModification
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, orderID); err != nil {
		return nil, err
	}
	if err := insertItems(ctx, tx, orderID, items); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

func (s *PGStore) ApplyPromotion(ctx context.Context, orderID string, version int64, promotionID string, m Money, consumeUse bool) (*Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET
			discount_cents=$3, tip_cents=$4, total_cents=$5, promotion_id=$6,
			version=version+1, updated_at=now()
		WHERE id=$1 AND version=$2`,
		orderID, version, m.DiscountCents, m.TipCents, m.TotalCents, promotionID)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrConcurrentModification
	}

	if consumeUse {
		// guarded increment: both this and the order update commit, or neither
		ct, err := tx.Exec(ctx, `
			UPDATE promotions SET used_count = used_count + 1
			WHERE id=$1 AND (usage_limit IS NULL OR used_count < usage_limit)`,
			promotionID)
		if err != nil {
			return nil, err
		}
		if ct.RowsAffected() == 0 {
			return nil, &promo.InvalidError{Reason: promo.ReasonUsageLimitReached}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

func (s *PGStore) PromotionByID(ctx context.Context, restaurantID, id string) (*promo.Promotion, error) {
	return s.promotionWhere(ctx, `id=$2`, restaurantID, id)
}

func (s *PGStore) PromotionByCode(ctx context.Context, restaurantID, code string) (*promo.Promotion, error) {
	return s.promotionWhere(ctx, `code=$2`, restaurantID, code)
}

func (s *PGStore) promotionWhere(ctx context.Context, cond, restaurantID string, arg any) (*promo.Promotion, error) {
	var p promo.Promotion
	err := s.DB.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, restaurant_id, code, discount_type, discount_value,
			min_order_cents, max_discount_cents, start_date, end_date,
			usage_limit, used_count, is_active,
			applicable_categories, applicable_menu_items
		FROM promotions WHERE restaurant_id=$1 AND %s`, cond),
		restaurantID, arg).Scan(
		&p.ID, &p.RestaurantID, &p.Code, &p.DiscountType, &p.DiscountValue,
		&p.MinOrderCents, &p.MaxDiscountCents, &p.StartDate, &p.EndDate,
		&p.UsageLimit, &p.UsedCount, &p.IsActive,
		&p.ApplicableCategories, &p.ApplicableMenuItems)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID string, items []LineItem) error {
	for i, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, position, menu_item_id, category_id,
				name, quantity, unit_price_cents, modifiers)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			orderID, i, it.MenuItemID, it.CategoryID,
			it.Name, it.Quantity, it.UnitPriceCents, it.Modifiers); err != nil {
			return err
		}
	}
	return nil
}
