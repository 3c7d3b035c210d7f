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

// ReturnRepository persists customer-initiated return requests.
type ReturnRepository interface {
	Create(ctx context.Context, rt *domain.Return) error
	Get(ctx context.Context, id string) (*domain.Return, error)
	ListByOrderID(ctx context.Context, orderID string) ([]domain.Return, error)
	Update(ctx context.Context, rt *domain.Return) error
}

type PostgresReturnRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresReturnRepository(pool *pgxpool.Pool) *PostgresReturnRepository {
	return &PostgresReturnRepository{pool: pool}
}

const selectReturnColumns = `id, return_number, order_id, user_id, lines, reason, status, pickup_address,
	pickup_scheduled_for, carrier_awb, inspection_verdict, inspection_notes, inspected_at, refund_id,
	created_at, updated_at`

func (r *PostgresReturnRepository) Create(ctx context.Context, rt *domain.Return) error {
	lines, err := json.Marshal(rt.Lines)
	if err != nil {
		return fmt.Errorf("repository.Return.Create: marshal lines: %w", err)
	}
	pickupAddr := marshalAddress(rt.PickupAddress)

	const q = `
		INSERT INTO returns (id, return_number, order_id, user_id, lines, reason, status, pickup_address,
			pickup_scheduled_for, carrier_awb, inspection_verdict, inspection_notes, inspected_at, refund_id,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err = r.pool.Exec(ctx, q, rt.ID, rt.ReturnNumber, rt.OrderID, nullableString(rt.UserID), lines, rt.Reason,
		rt.Status, pickupAddr, nullableTime(rt.PickupScheduledFor), rt.CarrierAWB, string(rt.InspectionVerdict),
		rt.InspectionNotes, nullableTime(rt.InspectedAt), nullableString(rt.RefundID), rt.CreatedAt, rt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Return.Create: %w", err)
	}
	return nil
}

func scanReturn(row pgx.Row) (*domain.Return, error) {
	var rt domain.Return
	var userID *string
	var lines, pickupAddr []byte
	var pickupScheduledFor, inspectedAt *time.Time
	var inspectionVerdict string
	var refundID *string

	err := row.Scan(&rt.ID, &rt.ReturnNumber, &rt.OrderID, &userID, &lines, &rt.Reason, &rt.Status, &pickupAddr,
		&pickupScheduledFor, &rt.CarrierAWB, &inspectionVerdict, &rt.InspectionNotes, &inspectedAt, &refundID,
		&rt.CreatedAt, &rt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrReturnNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.Return: scan: %w", err)
	}

	if userID != nil {
		rt.UserID = *userID
	}
	if pickupScheduledFor != nil {
		rt.PickupScheduledFor = *pickupScheduledFor
	}
	if inspectedAt != nil {
		rt.InspectedAt = *inspectedAt
	}
	if refundID != nil {
		rt.RefundID = *refundID
	}
	rt.InspectionVerdict = domain.InspectionVerdict(inspectionVerdict)
	_ = json.Unmarshal(lines, &rt.Lines)
	if err := unmarshalAddress(pickupAddr, &rt.PickupAddress); err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *PostgresReturnRepository) Get(ctx context.Context, id string) (*domain.Return, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectReturnColumns+` FROM returns WHERE id = $1`, id)
	return scanReturn(row)
}

func (r *PostgresReturnRepository) ListByOrderID(ctx context.Context, orderID string) ([]domain.Return, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectReturnColumns+` FROM returns WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository.Return.ListByOrderID: %w", err)
	}
	defer rows.Close()

	var returns []domain.Return
	for rows.Next() {
		rt, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		returns = append(returns, *rt)
	}
	return returns, rows.Err()
}

func (r *PostgresReturnRepository) Update(ctx context.Context, rt *domain.Return) error {
	const q = `
		UPDATE returns SET status=$2, pickup_scheduled_for=$3, carrier_awb=$4, inspection_verdict=$5,
			inspection_notes=$6, inspected_at=$7, refund_id=$8, updated_at=$9
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, q, rt.ID, rt.Status, nullableTime(rt.PickupScheduledFor), rt.CarrierAWB,
		string(rt.InspectionVerdict), rt.InspectionNotes, nullableTime(rt.InspectedAt), nullableString(rt.RefundID), rt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Return.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReturnNotFound
	}
	return nil
}
