// Package sequence generates durable, monotonically increasing numbers
// used to format human-readable identifiers (ORD-2026-000042 and
// friends). Unlike an in-process counter, which resets on restart and
// collides across replicas, every value is minted by a single
// round-trip to Postgres.
package sequence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Generator mints the next value in a named, per-year sequence.
type Generator struct {
	pool *pgxpool.Pool
}

func NewGenerator(pool *pgxpool.Pool) *Generator {
	return &Generator{pool: pool}
}

// Next returns the next value for (name, year), starting at 1. It uses
// an upsert with RETURNING so concurrent callers never observe the
// same value twice, regardless of how many replicas are running.
func (g *Generator) Next(ctx context.Context, name string, year int) (int64, error) {
	const q = `
		INSERT INTO order_sequences (name, year, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (name, year)
		DO UPDATE SET value = order_sequences.value + 1
		RETURNING value`

	var value int64
	if err := g.pool.QueryRow(ctx, q, name, year).Scan(&value); err != nil {
		return 0, fmt.Errorf("sequence.Next(%s,%d): %w", name, year, err)
	}
	return value, nil
}
