package domain

import (
	"fmt"
	"time"

	"github.com/dukerupert/freyja/internal/money"
)

// Refund-related domain errors.
var (
	ErrRefundNotFound        = &Error{Code: ENOTFOUND, Message: "refund not found"}
	ErrRefundExceedsBalance  = &Error{Code: EINVALID, Message: "refund amount exceeds the payment's refundable balance"}
	ErrRefundInvalidState    = &Error{Code: ECONFLICT, Message: "refund is not in a state that allows this action"}
	ErrRefundLineQtyExceeded = &Error{Code: EINVALID, Message: "refund quantity exceeds the order line's remaining refundable quantity"}
	ErrRefundApprovedExceeds = &Error{Code: EINVALID, Message: "approved amount exceeds the requested refund amount"}
)

// RefundMethod names how the money is returned to the customer.
type RefundMethod string

const (
	RefundToSource     RefundMethod = "original_payment_method"
	RefundStoreCredit  RefundMethod = "store_credit"
	RefundBankTransfer RefundMethod = "bank_transfer"
)

// RefundStatus is the refund lifecycle state (§4.5).
type RefundStatus string

const (
	RefundRequested  RefundStatus = "requested"
	RefundApproved   RefundStatus = "approved"
	RefundProcessing RefundStatus = "processing"
	RefundCompleted  RefundStatus = "completed"
	RefundFailed     RefundStatus = "failed"
	RefundRejected   RefundStatus = "rejected"
	RefundCancelled  RefundStatus = "cancelled"
)

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundRequested:  {RefundApproved, RefundRejected, RefundCancelled},
	RefundApproved:   {RefundProcessing, RefundRejected, RefundCancelled},
	RefundProcessing: {RefundCompleted, RefundFailed},
	RefundFailed:     {RefundProcessing}, // retry
}

// CanTransitionRefund reports whether from -> to is a legal refund edge.
func CanTransitionRefund(from, to RefundStatus) bool {
	for _, next := range refundTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RefundLineItem is the portion of an order line being refunded.
type RefundLineItem struct {
	OrderItemID string
	Quantity    int
	Amount      money.Amount
}

// Refund is one refund attempt against an order's payment (§3/§4.5).
// Partial refunds are modeled by multiple Refund rows per order.
type Refund struct {
	ID           string
	RefundNumber string // REF-YYYY-NNNNNN
	OrderID      string
	PaymentID    string

	Lines  []RefundLineItem
	Amount money.Amount
	Reason string
	Method RefundMethod

	// ApprovedAmount is filled by Approve, capped at <= Amount. It may
	// be less than Amount when the approver grants a partial refund of
	// what was requested.
	ApprovedAmount money.Amount

	Status RefundStatus

	GatewayRefundID string
	FailureReason   string

	InitiatedBy ChangedByActor
	ActorID     string

	ProcessedAt time.Time

	Timestamps
}

// FormatRefundNumber renders a human-readable identifier such as
// REF-2026-000042 from a yearly sequence value.
func FormatRefundNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}
