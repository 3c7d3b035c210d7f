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

// PaymentRepository persists one row per payment attempt against a
// checkout session, and the order it eventually settles.
type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	Get(ctx context.Context, id string) (*domain.Payment, error)
	GetByGatewayPaymentID(ctx context.Context, gateway, gatewayPaymentID string) (*domain.Payment, error)
	GetByGatewayOrderID(ctx context.Context, gateway, gatewayOrderID string) (*domain.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
	Update(ctx context.Context, p *domain.Payment) error
	ListStale(ctx context.Context, olderThan time.Time) ([]domain.Payment, error)
	Stats(ctx context.Context, since time.Time) ([]PaymentStatusStat, error)
}

// PaymentStatusStat is one row of the admin payment-stats aggregation:
// the count and total amount of payments in a given status since a
// cutoff time.
type PaymentStatusStat struct {
	Status domain.PaymentStatus
	Count  int64
	Total  int64 // paise, sum of amount_cents
}

type PostgresPaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresPaymentRepository(pool *pgxpool.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{pool: pool}
}

const selectPaymentColumns = `id, order_id, checkout_id, gateway, gateway_order_id, gateway_payment_id,
	gateway_signature, method, amount_cents, currency, status, gateway_status, failure_code, failure_reason,
	refunded_amount_cents, authorized_at, captured_at, failed_at, created_at, updated_at`

func (r *PostgresPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	method, err := json.Marshal(p.Method)
	if err != nil {
		return fmt.Errorf("repository.Payment.Create: marshal method: %w", err)
	}

	const q = `
		INSERT INTO payments (id, order_id, checkout_id, gateway, gateway_order_id, gateway_payment_id,
			gateway_signature, method, amount_cents, currency, status, gateway_status, failure_code, failure_reason,
			refunded_amount_cents, authorized_at, captured_at, failed_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`

	_, err = r.pool.Exec(ctx, q, p.ID, nullableString(p.OrderID), nullableString(p.CheckoutID), p.Gateway,
		p.GatewayOrderID, p.GatewayPaymentID, p.GatewaySignature, method, int64(p.Amount), p.Currency,
		p.Status, p.GatewayStatus, p.FailureCode, p.FailureReason, int64(p.RefundedAmount),
		nullableTime(p.AuthorizedAt), nullableTime(p.CapturedAt), nullableTime(p.FailedAt), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Payment.Create: %w", err)
	}
	return nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var orderID, checkoutID *string
	var method []byte
	var authorizedAt, capturedAt, failedAt *time.Time

	err := row.Scan(&p.ID, &orderID, &checkoutID, &p.Gateway, &p.GatewayOrderID, &p.GatewayPaymentID,
		&p.GatewaySignature, &method, &p.Amount, &p.Currency, &p.Status, &p.GatewayStatus,
		&p.FailureCode, &p.FailureReason, &p.RefundedAmount, &authorizedAt, &capturedAt, &failedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.Payment: scan: %w", err)
	}

	if orderID != nil {
		p.OrderID = *orderID
	}
	if checkoutID != nil {
		p.CheckoutID = *checkoutID
	}
	if authorizedAt != nil {
		p.AuthorizedAt = *authorizedAt
	}
	if capturedAt != nil {
		p.CapturedAt = *capturedAt
	}
	if failedAt != nil {
		p.FailedAt = *failedAt
	}
	_ = json.Unmarshal(method, &p.Method)
	return &p, nil
}

func (r *PostgresPaymentRepository) Get(ctx context.Context, id string) (*domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectPaymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

func (r *PostgresPaymentRepository) GetByGatewayPaymentID(ctx context.Context, gateway, gatewayPaymentID string) (*domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectPaymentColumns+` FROM payments WHERE gateway = $1 AND gateway_payment_id = $2`,
		gateway, gatewayPaymentID)
	return scanPayment(row)
}

func (r *PostgresPaymentRepository) GetByGatewayOrderID(ctx context.Context, gateway, gatewayOrderID string) (*domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectPaymentColumns+` FROM payments WHERE gateway = $1 AND gateway_order_id = $2`,
		gateway, gatewayOrderID)
	return scanPayment(row)
}

func (r *PostgresPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectPaymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID)
	return scanPayment(row)
}

func (r *PostgresPaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	method, err := json.Marshal(p.Method)
	if err != nil {
		return fmt.Errorf("repository.Payment.Update: marshal method: %w", err)
	}

	const q = `
		UPDATE payments SET order_id=$2, gateway_order_id=$3, gateway_payment_id=$4, gateway_signature=$5,
			method=$6, status=$7, gateway_status=$8, failure_code=$9, failure_reason=$10,
			refunded_amount_cents=$11, authorized_at=$12, captured_at=$13, failed_at=$14, updated_at=$15
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, q, p.ID, nullableString(p.OrderID), p.GatewayOrderID, p.GatewayPaymentID,
		p.GatewaySignature, method, p.Status, p.GatewayStatus, p.FailureCode, p.FailureReason,
		int64(p.RefundedAmount), nullableTime(p.AuthorizedAt), nullableTime(p.CapturedAt), nullableTime(p.FailedAt), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Payment.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

// ListStale supports the payment-reconciliation scheduler worker: payment
// attempts still pending/initiated past the reconciliation window.
func (r *PostgresPaymentRepository) ListStale(ctx context.Context, olderThan time.Time) ([]domain.Payment, error) {
	const q = `SELECT ` + selectPaymentColumns + ` FROM payments
		WHERE status IN ('pending', 'initiated', 'processing') AND created_at < $1`

	rows, err := r.pool.Query(ctx, q, olderThan)
	if err != nil {
		return nil, fmt.Errorf("repository.Payment.ListStale: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// Stats backs the admin payment-stats dashboard: counts and summed
// amounts grouped by status, for payments created since the cutoff.
func (r *PostgresPaymentRepository) Stats(ctx context.Context, since time.Time) ([]PaymentStatusStat, error) {
	const q = `
		SELECT status, COUNT(*), COALESCE(SUM(amount_cents), 0)
		FROM payments WHERE created_at >= $1
		GROUP BY status ORDER BY status`

	rows, err := r.pool.Query(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("repository.Payment.Stats: %w", err)
	}
	defer rows.Close()

	var stats []PaymentStatusStat
	for rows.Next() {
		var s PaymentStatusStat
		if err := rows.Scan(&s.Status, &s.Count, &s.Total); err != nil {
			return nil, fmt.Errorf("repository.Payment.Stats: scan: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
