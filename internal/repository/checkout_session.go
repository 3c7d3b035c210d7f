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

// CheckoutSessionRepository persists the time-bounded checkout handle.
type CheckoutSessionRepository interface {
	Create(ctx context.Context, s *domain.CheckoutSession) error
	Get(ctx context.Context, id string) (*domain.CheckoutSession, error)
	Update(ctx context.Context, s *domain.CheckoutSession) error
	ListExpiring(ctx context.Context, status domain.CheckoutStatus) ([]domain.CheckoutSession, error)
}

type PostgresCheckoutSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresCheckoutSessionRepository(pool *pgxpool.Pool) *PostgresCheckoutSessionRepository {
	return &PostgresCheckoutSessionRepository{pool: pool}
}

const selectCheckoutColumns = `id, user_id, cart_id, items, shipping_address, billing_address,
	shipping_method, payment_method, subtotal_cents, discount_cents, shipping_cents,
	tax_cents, grand_total_cents, reservation_token, status, expires_at, order_id,
	created_at, updated_at`

func (r *PostgresCheckoutSessionRepository) Create(ctx context.Context, s *domain.CheckoutSession) error {
	items, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("repository.CheckoutSession.Create: marshal items: %w", err)
	}
	shipAddr, _ := json.Marshal(s.ShippingAddress)
	billAddr, _ := json.Marshal(s.BillingAddress)
	shipMethod, _ := json.Marshal(s.ShippingMethod)

	const q = `
		INSERT INTO checkout_sessions (id, user_id, cart_id, items, shipping_address, billing_address,
			shipping_method, payment_method, subtotal_cents, discount_cents, shipping_cents,
			tax_cents, grand_total_cents, reservation_token, status, expires_at, order_id,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

	_, err = r.pool.Exec(ctx, q, s.ID, nullableString(s.UserID), s.CartID, items, shipAddr, billAddr, shipMethod,
		s.PaymentMethod, s.Totals.SubtotalCents, s.Totals.DiscountCents, s.Totals.ShippingCents,
		s.Totals.TaxCents, s.Totals.GrandTotal, s.ReservationToken, s.Status, s.ExpiresAt,
		nullableString(s.OrderID), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.CheckoutSession.Create: %w", err)
	}
	return nil
}

func scanCheckoutSession(row pgx.Row) (*domain.CheckoutSession, error) {
	var s domain.CheckoutSession
	var items, shipAddr, billAddr, shipMethod []byte
	var userID, orderID *string

	err := row.Scan(&s.ID, &userID, &s.CartID, &items, &shipAddr, &billAddr, &shipMethod,
		&s.PaymentMethod, &s.Totals.SubtotalCents, &s.Totals.DiscountCents, &s.Totals.ShippingCents,
		&s.Totals.TaxCents, &s.Totals.GrandTotal, &s.ReservationToken, &s.Status, &s.ExpiresAt,
		&orderID, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCheckoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.CheckoutSession: scan: %w", err)
	}

	if userID != nil {
		s.UserID = *userID
	}
	if orderID != nil {
		s.OrderID = *orderID
	}
	_ = json.Unmarshal(items, &s.Items)
	_ = json.Unmarshal(shipAddr, &s.ShippingAddress)
	_ = json.Unmarshal(billAddr, &s.BillingAddress)
	_ = json.Unmarshal(shipMethod, &s.ShippingMethod)
	return &s, nil
}

func (r *PostgresCheckoutSessionRepository) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectCheckoutColumns+` FROM checkout_sessions WHERE id = $1`, id)
	return scanCheckoutSession(row)
}

func (r *PostgresCheckoutSessionRepository) Update(ctx context.Context, s *domain.CheckoutSession) error {
	items, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("repository.CheckoutSession.Update: marshal items: %w", err)
	}
	shipAddr, _ := json.Marshal(s.ShippingAddress)
	billAddr, _ := json.Marshal(s.BillingAddress)
	shipMethod, _ := json.Marshal(s.ShippingMethod)

	const q = `
		UPDATE checkout_sessions SET items=$2, shipping_address=$3, billing_address=$4, shipping_method=$5,
			payment_method=$6, subtotal_cents=$7, discount_cents=$8, shipping_cents=$9,
			tax_cents=$10, grand_total_cents=$11, reservation_token=$12, status=$13, expires_at=$14,
			order_id=$15, updated_at=$16
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, q, s.ID, items, shipAddr, billAddr, shipMethod, s.PaymentMethod,
		s.Totals.SubtotalCents, s.Totals.DiscountCents, s.Totals.ShippingCents, s.Totals.TaxCents,
		s.Totals.GrandTotal, s.ReservationToken, s.Status, s.ExpiresAt, nullableString(s.OrderID), s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.CheckoutSession.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCheckoutNotFound
	}
	return nil
}

// ListExpiring returns sessions in the given status whose expires_at has
// passed, for the checkout-expiry scheduler worker.
func (r *PostgresCheckoutSessionRepository) ListExpiring(ctx context.Context, status domain.CheckoutStatus) ([]domain.CheckoutSession, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectCheckoutColumns+` FROM checkout_sessions
		WHERE status = $1 AND expires_at < now()`, status)
	if err != nil {
		return nil, fmt.Errorf("repository.CheckoutSession.ListExpiring: %w", err)
	}
	defer rows.Close()

	var sessions []domain.CheckoutSession
	for rows.Next() {
		s, err := scanCheckoutSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
