// Package repository persists the order lifecycle core's aggregates
// directly over pgx/v5, one interface plus one Postgres implementation
// per aggregate. Queries are hand-written SQL rather than sqlc output:
// every row maps onto the domain package's plain Go structs.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/freyja/internal/domain"
)

// CartRepository persists carts and their line items.
type CartRepository interface {
	Create(ctx context.Context, c *domain.Cart) error
	Get(ctx context.Context, id string) (*domain.Cart, error)
	GetActiveByUser(ctx context.Context, userID string) (*domain.Cart, error)
	GetActiveBySession(ctx context.Context, sessionID string) (*domain.Cart, error)
	Update(ctx context.Context, c *domain.Cart) error
	ListItems(ctx context.Context, cartID string) ([]domain.CartItem, error)
	UpsertItem(ctx context.Context, item *domain.CartItem) error
	DeleteItem(ctx context.Context, cartID, itemID string) error
	MergeItems(ctx context.Context, upserts []domain.CartItem, guestCartID string) error
	ListActive(ctx context.Context) ([]domain.Cart, error)
	ListExpired(ctx context.Context, olderThan time.Time) ([]domain.Cart, error)
	ListAbandonedCandidates(ctx context.Context, inactiveSince time.Time) ([]domain.Cart, error)
	ListAbandonedOlderThan(ctx context.Context, olderThan time.Time) ([]domain.Cart, error)
	Delete(ctx context.Context, id string) error
}

type PostgresCartRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresCartRepository(pool *pgxpool.Pool) *PostgresCartRepository {
	return &PostgresCartRepository{pool: pool}
}

func (r *PostgresCartRepository) Create(ctx context.Context, c *domain.Cart) error {
	coupons, err := json.Marshal(c.AppliedCoupons)
	if err != nil {
		return fmt.Errorf("repository.Cart.Create: marshal coupons: %w", err)
	}

	const q = `
		INSERT INTO carts (id, owner_type, user_id, session_id, status,
			subtotal_cents, discount_total_cents, shipping_total_cents, tax_total_cents, grand_total_cents,
			item_count, applied_coupons, reminder_sent, reminder_sent_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err = r.pool.Exec(ctx, q, c.ID, c.OwnerType, nullableString(c.UserID), nullableString(c.SessionID), c.Status,
		int64(c.Subtotal), int64(c.DiscountTotal), int64(c.ShippingTotal), int64(c.TaxTotal), int64(c.GrandTotal),
		c.ItemCount, coupons, c.ReminderSent, nullableTime(c.ReminderSentAt), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Cart.Create: %w", err)
	}
	return nil
}

func (r *PostgresCartRepository) scanCart(row pgx.Row) (*domain.Cart, error) {
	var c domain.Cart
	var userID, sessionID *string
	var reminderAt *time.Time
	var coupons []byte

	err := row.Scan(&c.ID, &c.OwnerType, &userID, &sessionID, &c.Status,
		&c.Subtotal, &c.DiscountTotal, &c.ShippingTotal, &c.TaxTotal, &c.GrandTotal,
		&c.ItemCount, &coupons, &c.ReminderSent, &reminderAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.Cart: scan: %w", err)
	}

	if userID != nil {
		c.UserID = *userID
	}
	if sessionID != nil {
		c.SessionID = *sessionID
	}
	if reminderAt != nil {
		c.ReminderSentAt = *reminderAt
	}
	if len(coupons) > 0 {
		if err := json.Unmarshal(coupons, &c.AppliedCoupons); err != nil {
			return nil, fmt.Errorf("repository.Cart: unmarshal coupons: %w", err)
		}
	}
	return &c, nil
}

const selectCartColumns = `id, owner_type, user_id, session_id, status,
	subtotal_cents, discount_total_cents, shipping_total_cents, tax_total_cents, grand_total_cents,
	item_count, applied_coupons, reminder_sent, reminder_sent_at, created_at, updated_at`

func (r *PostgresCartRepository) Get(ctx context.Context, id string) (*domain.Cart, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectCartColumns+` FROM carts WHERE id = $1`, id)
	return r.scanCart(row)
}

func (r *PostgresCartRepository) GetActiveByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectCartColumns+` FROM carts WHERE user_id = $1 AND status = 'active'`, userID)
	return r.scanCart(row)
}

func (r *PostgresCartRepository) GetActiveBySession(ctx context.Context, sessionID string) (*domain.Cart, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectCartColumns+` FROM carts WHERE session_id = $1 AND status = 'active'`, sessionID)
	return r.scanCart(row)
}

func (r *PostgresCartRepository) Update(ctx context.Context, c *domain.Cart) error {
	coupons, err := json.Marshal(c.AppliedCoupons)
	if err != nil {
		return fmt.Errorf("repository.Cart.Update: marshal coupons: %w", err)
	}

	const q = `
		UPDATE carts SET status=$2, subtotal_cents=$3, discount_total_cents=$4, shipping_total_cents=$5,
			tax_total_cents=$6, grand_total_cents=$7, item_count=$8, applied_coupons=$9,
			reminder_sent=$10, reminder_sent_at=$11, updated_at=$12
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, q, c.ID, c.Status, int64(c.Subtotal), int64(c.DiscountTotal),
		int64(c.ShippingTotal), int64(c.TaxTotal), int64(c.GrandTotal), c.ItemCount, coupons,
		c.ReminderSent, nullableTime(c.ReminderSentAt), c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Cart.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

const selectCartItemColumns = `id, cart_id, product_id, variant_id, bundle_id, quantity,
	unit_price_cents, unit_mrp_cents, line_discount_cents, line_total_cents, is_free_gift,
	price_snapshot, product_status, price_change, created_at, updated_at`

func (r *PostgresCartRepository) ListItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectCartItemColumns+` FROM cart_items WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, fmt.Errorf("repository.Cart.ListItems: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func scanCartItem(row pgx.Row) (*domain.CartItem, error) {
	var it domain.CartItem
	var priceSnap, prodStatus, priceChange []byte

	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.VariantID, &it.BundleID, &it.Quantity,
		&it.UnitPrice, &it.UnitMRP, &it.LineDiscount, &it.LineTotal, &it.IsFreeGift,
		&priceSnap, &prodStatus, &priceChange, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository.CartItem: scan: %w", err)
	}
	_ = json.Unmarshal(priceSnap, &it.PriceSnapshot)
	_ = json.Unmarshal(prodStatus, &it.ProductStatus)
	_ = json.Unmarshal(priceChange, &it.PriceChange)
	return &it, nil
}

func (r *PostgresCartRepository) UpsertItem(ctx context.Context, item *domain.CartItem) error {
	priceSnap, _ := json.Marshal(item.PriceSnapshot)
	prodStatus, _ := json.Marshal(item.ProductStatus)
	priceChange, _ := json.Marshal(item.PriceChange)

	const q = `
		INSERT INTO cart_items (id, cart_id, product_id, variant_id, bundle_id, quantity,
			unit_price_cents, unit_mrp_cents, line_discount_cents, line_total_cents, is_free_gift,
			price_snapshot, product_status, price_change, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (cart_id, variant_id, bundle_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			unit_price_cents = EXCLUDED.unit_price_cents,
			unit_mrp_cents = EXCLUDED.unit_mrp_cents,
			line_discount_cents = EXCLUDED.line_discount_cents,
			line_total_cents = EXCLUDED.line_total_cents,
			price_snapshot = EXCLUDED.price_snapshot,
			product_status = EXCLUDED.product_status,
			price_change = EXCLUDED.price_change,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, q, item.ID, item.CartID, item.ProductID, item.VariantID, item.BundleID, item.Quantity,
		int64(item.UnitPrice), int64(item.UnitMRP), int64(item.LineDiscount), int64(item.LineTotal), item.IsFreeGift,
		priceSnap, prodStatus, priceChange, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Cart.UpsertItem: %w", err)
	}
	return nil
}

func (r *PostgresCartRepository) DeleteItem(ctx context.Context, cartID, itemID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	if err != nil {
		return fmt.Errorf("repository.Cart.DeleteItem: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

// MergeItems commits a guest-into-user cart merge atomically: every
// upsert and the guest cart's deletion (which cascades its remaining
// cart_items) land in one transaction, so a crash mid-merge never
// leaves a retry to double-count an already-upserted line (§4.2/§8).
func (r *PostgresCartRepository) MergeItems(ctx context.Context, upserts []domain.CartItem, guestCartID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.Cart.MergeItems: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsertQ = `
		INSERT INTO cart_items (id, cart_id, product_id, variant_id, bundle_id, quantity,
			unit_price_cents, unit_mrp_cents, line_discount_cents, line_total_cents, is_free_gift,
			price_snapshot, product_status, price_change, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (cart_id, variant_id, bundle_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			unit_price_cents = EXCLUDED.unit_price_cents,
			unit_mrp_cents = EXCLUDED.unit_mrp_cents,
			line_discount_cents = EXCLUDED.line_discount_cents,
			line_total_cents = EXCLUDED.line_total_cents,
			price_snapshot = EXCLUDED.price_snapshot,
			product_status = EXCLUDED.product_status,
			price_change = EXCLUDED.price_change,
			updated_at = EXCLUDED.updated_at`

	for _, item := range upserts {
		priceSnap, _ := json.Marshal(item.PriceSnapshot)
		prodStatus, _ := json.Marshal(item.ProductStatus)
		priceChange, _ := json.Marshal(item.PriceChange)
		if _, err := tx.Exec(ctx, upsertQ, item.ID, item.CartID, item.ProductID, item.VariantID, item.BundleID, item.Quantity,
			int64(item.UnitPrice), int64(item.UnitMRP), int64(item.LineDiscount), int64(item.LineTotal), item.IsFreeGift,
			priceSnap, prodStatus, priceChange, item.CreatedAt, item.UpdatedAt); err != nil {
			return fmt.Errorf("repository.Cart.MergeItems: upsert: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, guestCartID); err != nil {
		return fmt.Errorf("repository.Cart.MergeItems: delete guest cart: %w", err)
	}

	return tx.Commit(ctx)
}

// ListActive returns every cart still in the active state, for the
// scheduled cart-item-validation sweep (§4.6).
func (r *PostgresCartRepository) ListActive(ctx context.Context) ([]domain.Cart, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectCartColumns+` FROM carts WHERE status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("repository.Cart.ListActive: %w", err)
	}
	defer rows.Close()
	return scanCarts(rows)
}

func (r *PostgresCartRepository) ListExpired(ctx context.Context, olderThan time.Time) ([]domain.Cart, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectCartColumns+` FROM carts WHERE status = 'active' AND updated_at < $1`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("repository.Cart.ListExpired: %w", err)
	}
	defer rows.Close()
	return scanCarts(rows)
}

func (r *PostgresCartRepository) ListAbandonedCandidates(ctx context.Context, inactiveSince time.Time) ([]domain.Cart, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectCartColumns+` FROM carts
		WHERE status = 'active' AND reminder_sent = false AND item_count > 0 AND updated_at < $1`, inactiveSince)
	if err != nil {
		return nil, fmt.Errorf("repository.Cart.ListAbandonedCandidates: %w", err)
	}
	defer rows.Close()
	return scanCarts(rows)
}

func (r *PostgresCartRepository) ListAbandonedOlderThan(ctx context.Context, olderThan time.Time) ([]domain.Cart, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectCartColumns+` FROM carts WHERE status = 'abandoned' AND updated_at < $1`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("repository.Cart.ListAbandonedOlderThan: %w", err)
	}
	defer rows.Close()
	return scanCarts(rows)
}

// Delete hard-deletes a cart and its items (cart_items cascades on the
// carts foreign key). Used by the cart-cleanup worker, never by request
// handlers — carts are otherwise retired by status transition.
func (r *PostgresCartRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository.Cart.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

func scanCarts(rows pgx.Rows) ([]domain.Cart, error) {
	var carts []domain.Cart
	for rows.Next() {
		var c domain.Cart
		var userID, sessionID *string
		var reminderAt *time.Time
		var coupons []byte
		if err := rows.Scan(&c.ID, &c.OwnerType, &userID, &sessionID, &c.Status,
			&c.Subtotal, &c.DiscountTotal, &c.ShippingTotal, &c.TaxTotal, &c.GrandTotal,
			&c.ItemCount, &coupons, &c.ReminderSent, &reminderAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository.Cart: scan row: %w", err)
		}
		if userID != nil {
			c.UserID = *userID
		}
		if sessionID != nil {
			c.SessionID = *sessionID
		}
		if reminderAt != nil {
			c.ReminderSentAt = *reminderAt
		}
		_ = json.Unmarshal(coupons, &c.AppliedCoupons)
		carts = append(carts, c)
	}
	return carts, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
