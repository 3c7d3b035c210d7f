package domain

import "github.com/dukerupert/freyja/internal/money"

// StoreCreditEntry is one ledger line crediting (or, for a future
// redemption feature, debiting) a customer's store-credit balance.
// A refund settled as store_credit writes exactly one entry; the
// balance is the running sum of all of a user's entries.
type StoreCreditEntry struct {
	ID       string
	UserID   string
	RefundID string
	Amount   money.Amount // positive for a credit
	Reason   string

	Timestamps
}
