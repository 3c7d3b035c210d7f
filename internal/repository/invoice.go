package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/freyja/internal/domain"
)

// InvoiceRepository persists the immutable GST invoice document generated
// once an order becomes eligible (§4.6). At most one invoice exists per
// order, enforced by a unique index on order_id.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	Get(ctx context.Context, id string) (*domain.Invoice, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error)
	SetStorageURL(ctx context.Context, id, storageURL string) error
}

type PostgresInvoiceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresInvoiceRepository(pool *pgxpool.Pool) *PostgresInvoiceRepository {
	return &PostgresInvoiceRepository{pool: pool}
}

const selectInvoiceColumns = `id, invoice_number, order_id, user_id, billing_address, items,
	subtotal_cents, discount_cents, shipping_cents, tax_cents, grand_total_cents, storage_url,
	issued_at, created_at, updated_at`

func (r *PostgresInvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	billingAddr := marshalAddress(inv.BillingAddress)
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("repository.Invoice.Create: marshal items: %w", err)
	}

	const q = `
		INSERT INTO invoices (id, invoice_number, order_id, user_id, billing_address, items,
			subtotal_cents, discount_cents, shipping_cents, tax_cents, grand_total_cents, storage_url,
			issued_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

	_, err = r.pool.Exec(ctx, q, inv.ID, inv.InvoiceNumber, inv.OrderID, nullableString(inv.UserID), billingAddr, items,
		inv.Totals.SubtotalCents, inv.Totals.DiscountCents, inv.Totals.ShippingCents, inv.Totals.TaxCents,
		inv.Totals.GrandTotal, inv.StorageURL, inv.IssuedAt, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Invoice.Create: %w", err)
	}
	return nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	var userID *string
	var billingAddr, items []byte

	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.OrderID, &userID, &billingAddr, &items,
		&inv.Totals.SubtotalCents, &inv.Totals.DiscountCents, &inv.Totals.ShippingCents, &inv.Totals.TaxCents,
		&inv.Totals.GrandTotal, &inv.StorageURL, &inv.IssuedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.Invoice: scan: %w", err)
	}

	if userID != nil {
		inv.UserID = *userID
	}
	_ = json.Unmarshal(items, &inv.Items)
	if err := unmarshalAddress(billingAddr, &inv.BillingAddress); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *PostgresInvoiceRepository) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectInvoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

func (r *PostgresInvoiceRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectInvoiceColumns+` FROM invoices WHERE order_id = $1`, orderID)
	return scanInvoice(row)
}

func (r *PostgresInvoiceRepository) SetStorageURL(ctx context.Context, id, storageURL string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET storage_url = $2, updated_at = now() WHERE id = $1`, id, storageURL)
	if err != nil {
		return fmt.Errorf("repository.Invoice.SetStorageURL: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}
