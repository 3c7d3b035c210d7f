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

// RefundRepository persists refund attempts against an order's payment.
type RefundRepository interface {
	Create(ctx context.Context, f *domain.Refund) error
	Get(ctx context.Context, id string) (*domain.Refund, error)
	ListByOrderID(ctx context.Context, orderID string) ([]domain.Refund, error)
	Update(ctx context.Context, f *domain.Refund) error
}

type PostgresRefundRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRefundRepository(pool *pgxpool.Pool) *PostgresRefundRepository {
	return &PostgresRefundRepository{pool: pool}
}

const selectRefundColumns = `id, refund_number, order_id, payment_id, lines, amount_cents, reason, method,
	status, gateway_refund_id, failure_reason, initiated_by, actor_id, processed_at, created_at, updated_at`

func (r *PostgresRefundRepository) Create(ctx context.Context, f *domain.Refund) error {
	lines, err := json.Marshal(f.Lines)
	if err != nil {
		return fmt.Errorf("repository.Refund.Create: marshal lines: %w", err)
	}

	const q = `
		INSERT INTO refunds (id, refund_number, order_id, payment_id, lines, amount_cents, reason, method,
			status, gateway_refund_id, failure_reason, initiated_by, actor_id, processed_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err = r.pool.Exec(ctx, q, f.ID, f.RefundNumber, f.OrderID, f.PaymentID, lines, int64(f.Amount), f.Reason,
		f.Method, f.Status, f.GatewayRefundID, f.FailureReason, f.InitiatedBy, f.ActorID,
		nullableTime(f.ProcessedAt), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Refund.Create: %w", err)
	}
	return nil
}

func scanRefund(row pgx.Row) (*domain.Refund, error) {
	var f domain.Refund
	var lines []byte
	var actorID *string
	var processedAt *time.Time

	err := row.Scan(&f.ID, &f.RefundNumber, &f.OrderID, &f.PaymentID, &lines, &f.Amount, &f.Reason, &f.Method,
		&f.Status, &f.GatewayRefundID, &f.FailureReason, &f.InitiatedBy, &actorID, &processedAt,
		&f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRefundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.Refund: scan: %w", err)
	}

	if actorID != nil {
		f.ActorID = *actorID
	}
	if processedAt != nil {
		f.ProcessedAt = *processedAt
	}
	_ = json.Unmarshal(lines, &f.Lines)
	return &f, nil
}

func (r *PostgresRefundRepository) Get(ctx context.Context, id string) (*domain.Refund, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectRefundColumns+` FROM refunds WHERE id = $1`, id)
	return scanRefund(row)
}

func (r *PostgresRefundRepository) ListByOrderID(ctx context.Context, orderID string) ([]domain.Refund, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectRefundColumns+` FROM refunds WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository.Refund.ListByOrderID: %w", err)
	}
	defer rows.Close()

	var refunds []domain.Refund
	for rows.Next() {
		f, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, *f)
	}
	return refunds, rows.Err()
}

func (r *PostgresRefundRepository) Update(ctx context.Context, f *domain.Refund) error {
	const q = `
		UPDATE refunds SET status=$2, gateway_refund_id=$3, failure_reason=$4, processed_at=$5, updated_at=$6
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, q, f.ID, f.Status, f.GatewayRefundID, f.FailureReason, nullableTime(f.ProcessedAt), f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Refund.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRefundNotFound
	}
	return nil
}
