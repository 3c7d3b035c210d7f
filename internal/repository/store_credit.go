package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/money"
)

// StoreCreditRepository persists the append-only ledger backing a
// customer's store-credit balance.
type StoreCreditRepository interface {
	Create(ctx context.Context, e *domain.StoreCreditEntry) error
	BalanceForUser(ctx context.Context, userID string) (money.Amount, error)
	ListByUser(ctx context.Context, userID string) ([]domain.StoreCreditEntry, error)
}

type PostgresStoreCreditRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresStoreCreditRepository(pool *pgxpool.Pool) *PostgresStoreCreditRepository {
	return &PostgresStoreCreditRepository{pool: pool}
}

func (r *PostgresStoreCreditRepository) Create(ctx context.Context, e *domain.StoreCreditEntry) error {
	const q = `
		INSERT INTO store_credit_entries (id, user_id, refund_id, amount_cents, reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := r.pool.Exec(ctx, q, e.ID, e.UserID, e.RefundID, int64(e.Amount), e.Reason, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.StoreCredit.Create: %w", err)
	}
	return nil
}

func (r *PostgresStoreCreditRepository) BalanceForUser(ctx context.Context, userID string) (money.Amount, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM store_credit_entries WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("repository.StoreCredit.BalanceForUser: %w", err)
	}
	return money.Amount(total), nil
}

func (r *PostgresStoreCreditRepository) ListByUser(ctx context.Context, userID string) ([]domain.StoreCreditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, refund_id, amount_cents, reason, created_at, updated_at
		FROM store_credit_entries WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository.StoreCredit.ListByUser: %w", err)
	}
	defer rows.Close()

	var entries []domain.StoreCreditEntry
	for rows.Next() {
		var e domain.StoreCreditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.RefundID, &e.Amount, &e.Reason, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository.StoreCredit.ListByUser: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
