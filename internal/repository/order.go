package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/freyja/internal/domain"
)

// OrderRepository persists orders, their line items, and status history.
// Updates to an existing order are version-gated (optimistic concurrency):
// Update fails with domain.ErrConcurrentUpdate if the row's version no
// longer matches what the caller read, and the service layer retries.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order, items []domain.OrderItem) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	ListItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	Update(ctx context.Context, o *domain.Order) error
	UpdateItem(ctx context.Context, item *domain.OrderItem) error
	AppendHistory(ctx context.Context, h *domain.StatusHistory) error
	ListHistory(ctx context.Context, orderID string) ([]domain.StatusHistory, error)
	ListByStatusOlderThan(ctx context.Context, status domain.OrderStatus, cutoffHours int) ([]domain.Order, error)
}

type PostgresOrderRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresOrderRepository(pool *pgxpool.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{pool: pool}
}

func (r *PostgresOrderRepository) Create(ctx context.Context, o *domain.Order, items []domain.OrderItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.Order.Create: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const orderQ = `
		INSERT INTO orders (id, order_number, user_id, customer_name, customer_email, customer_phone,
			shipping_address, billing_address, subtotal_cents, discount_cents, shipping_cents,
			tax_cents, grand_total_cents, payment_method, status, payment_status, fulfillment_status,
			cancel_reason, cancelled_at, cancelled_by, tracking_carrier, tracking_number, tracking_url,
			reservation_token, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)`

	shipAddr := marshalAddress(o.ShippingAddress)
	billAddr := marshalAddress(o.BillingAddress)

	_, err = tx.Exec(ctx, orderQ, o.ID, o.OrderNumber, o.UserID, o.Customer.FullName, o.Customer.Email, o.Customer.Phone,
		shipAddr, billAddr, o.Totals.SubtotalCents, o.Totals.DiscountCents, o.Totals.ShippingCents,
		o.Totals.TaxCents, o.Totals.GrandTotal, o.PaymentMethod, o.Status, o.PaymentStatus, o.FulfillmentStatus,
		string(o.CancelReason), nullableTime(o.CancelledAt), o.CancelledBy,
		o.TrackingCarrier, o.TrackingNumber, o.TrackingURL,
		o.ReservationToken, o.Version, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Order.Create: insert order: %w", err)
	}

	const itemQ = `
		INSERT INTO order_items (id, order_id, product_id, variant_id, bundle_id, sku, name, image_url,
			hsn_code, quantity, quantity_fulfilled, quantity_returned, quantity_refunded,
			unit_price_cents, unit_mrp_cents, line_discount_cents, line_tax_cents, line_total_cents, is_free_gift)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

	for _, it := range items {
		_, err = tx.Exec(ctx, itemQ, it.ID, o.ID, it.ProductID, it.VariantID, it.BundleID, it.SKU, it.Name,
			nullableString(it.ImageURL), it.HSNCode, it.Quantity, it.QuantityFulfilled, it.QuantityReturned,
			it.QuantityRefunded, int64(it.UnitPrice), int64(it.UnitMRP), int64(it.LineDiscount),
			int64(it.LineTax), int64(it.LineTotal), it.IsFreeGift)
		if err != nil {
			return fmt.Errorf("repository.Order.Create: insert item %s: %w", it.ID, err)
		}
	}

	return tx.Commit(ctx)
}

const selectOrderColumns = `id, order_number, user_id, customer_name, customer_email, customer_phone,
	shipping_address, billing_address, subtotal_cents, discount_cents, shipping_cents,
	tax_cents, grand_total_cents, payment_method, status, payment_status, fulfillment_status,
	cancel_reason, cancelled_at, cancelled_by, tracking_carrier, tracking_number, tracking_url,
	reservation_token, version, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var shipAddr, billAddr []byte
	var cancelReason, cancelledBy, trackingCarrier, trackingNumber, trackingURL *string
	var cancelledAt *time.Time

	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Customer.FullName, &o.Customer.Email, &o.Customer.Phone,
		&shipAddr, &billAddr, &o.Totals.SubtotalCents, &o.Totals.DiscountCents, &o.Totals.ShippingCents,
		&o.Totals.TaxCents, &o.Totals.GrandTotal, &o.PaymentMethod, &o.Status, &o.PaymentStatus, &o.FulfillmentStatus,
		&cancelReason, &cancelledAt, &cancelledBy, &trackingCarrier, &trackingNumber, &trackingURL,
		&o.ReservationToken, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.Order: scan: %w", err)
	}

	if cancelReason != nil {
		o.CancelReason = domain.CancelReason(*cancelReason)
	}
	if cancelledAt != nil {
		o.CancelledAt = *cancelledAt
	}
	if cancelledBy != nil {
		o.CancelledBy = *cancelledBy
	}
	if trackingCarrier != nil {
		o.TrackingCarrier = *trackingCarrier
	}
	if trackingNumber != nil {
		o.TrackingNumber = *trackingNumber
	}
	if trackingURL != nil {
		o.TrackingURL = *trackingURL
	}
	if err := unmarshalAddress(shipAddr, &o.ShippingAddress); err != nil {
		return nil, err
	}
	if err := unmarshalAddress(billAddr, &o.BillingAddress); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PostgresOrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectOrderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (r *PostgresOrderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectOrderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
	return scanOrder(row)
}

func (r *PostgresOrderRepository) ListItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	const q = `SELECT id, order_id, product_id, variant_id, bundle_id, sku, name, image_url, hsn_code,
		quantity, quantity_fulfilled, quantity_returned, quantity_refunded,
		unit_price_cents, unit_mrp_cents, line_discount_cents, line_tax_cents, line_total_cents, is_free_gift
		FROM order_items WHERE order_id = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository.Order.ListItems: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		var imageURL *string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.BundleID, &it.SKU, &it.Name,
			&imageURL, &it.HSNCode, &it.Quantity, &it.QuantityFulfilled, &it.QuantityReturned, &it.QuantityRefunded,
			&it.UnitPrice, &it.UnitMRP, &it.LineDiscount, &it.LineTax, &it.LineTotal, &it.IsFreeGift); err != nil {
			return nil, fmt.Errorf("repository.Order.ListItems: scan: %w", err)
		}
		if imageURL != nil {
			it.ImageURL = *imageURL
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Update applies a CAS write gated on o.Version, then increments the
// stored version. Callers must re-read and retry on ErrConcurrentUpdate.
func (r *PostgresOrderRepository) Update(ctx context.Context, o *domain.Order) error {
	const q = `
		UPDATE orders SET status=$3, payment_status=$4, fulfillment_status=$5,
			cancel_reason=$6, cancelled_at=$7, cancelled_by=$8,
			tracking_carrier=$9, tracking_number=$10, tracking_url=$11,
			version = version + 1, updated_at=$12
		WHERE id = $1 AND version = $2`

	tag, err := r.pool.Exec(ctx, q, o.ID, o.Version, o.Status, o.PaymentStatus, o.FulfillmentStatus,
		string(o.CancelReason), nullableTime(o.CancelledAt), o.CancelledBy,
		o.TrackingCarrier, o.TrackingNumber, o.TrackingURL,
		o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Order.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the order doesn't exist, or version no longer matches —
		// distinguish so the caller can decide whether to retry.
		if _, getErr := r.Get(ctx, o.ID); getErr != nil {
			return getErr
		}
		return domain.ErrConcurrentUpdate
	}
	o.Version++
	return nil
}

func (r *PostgresOrderRepository) UpdateItem(ctx context.Context, item *domain.OrderItem) error {
	const q = `
		UPDATE order_items SET quantity_fulfilled=$2, quantity_returned=$3, quantity_refunded=$4
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, q, item.ID, item.QuantityFulfilled, item.QuantityReturned, item.QuantityRefunded)
	if err != nil {
		return fmt.Errorf("repository.Order.UpdateItem: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("repository.Order.UpdateItem", "order item", item.ID)
	}
	return nil
}

func (r *PostgresOrderRepository) AppendHistory(ctx context.Context, h *domain.StatusHistory) error {
	const q = `
		INSERT INTO status_history (id, order_id, type, from_status, to_status, changed_by, actor_id, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err := r.pool.Exec(ctx, q, h.ID, h.OrderID, h.Type, h.FromStatus, h.ToStatus, h.ChangedBy,
		h.ActorID, h.Reason, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository.Order.AppendHistory: %w", err)
	}
	return nil
}

func (r *PostgresOrderRepository) ListHistory(ctx context.Context, orderID string) ([]domain.StatusHistory, error) {
	const q = `SELECT id, order_id, type, from_status, to_status, changed_by, actor_id, reason, created_at
		FROM status_history WHERE order_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository.Order.ListHistory: %w", err)
	}
	defer rows.Close()

	var history []domain.StatusHistory
	for rows.Next() {
		var h domain.StatusHistory
		var actorID, reason *string
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Type, &h.FromStatus, &h.ToStatus, &h.ChangedBy,
			&actorID, &reason, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.Order.ListHistory: scan: %w", err)
		}
		if actorID != nil {
			h.ActorID = *actorID
		}
		if reason != nil {
			h.Reason = *reason
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// ListByStatusOlderThan supports the order-auto-confirm scheduler worker:
// orders still in status that have sat longer than cutoffHours.
func (r *PostgresOrderRepository) ListByStatusOlderThan(ctx context.Context, status domain.OrderStatus, cutoffHours int) ([]domain.Order, error) {
	q := fmt.Sprintf(`SELECT %s FROM orders WHERE status = $1 AND created_at < now() - ($2 || ' hours')::interval`, selectOrderColumns)

	rows, err := r.pool.Query(ctx, q, status, cutoffHours)
	if err != nil {
		return nil, fmt.Errorf("repository.Order.ListByStatusOlderThan: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}
