package domain

import (
	"time"

	"github.com/dukerupert/freyja/internal/money"
)

// Checkout-related domain errors.
var (
	ErrCheckoutNotFound   = &Error{Code: ENOTFOUND, Message: "checkout session not found"}
	ErrCheckoutExpired    = &Error{Code: ECONFLICT, Message: "checkout session has expired"}
	ErrCheckoutInvalidState = &Error{Code: ECONFLICT, Message: "checkout session is not in a state that allows this action"}
	ErrCartInvalid        = &Error{Code: EINVALID, Message: "cart contains unavailable items"}
	ErrStockUnavailable   = &Error{Code: ECONFLICT, Message: "insufficient stock to reserve one or more items"}
	ErrTotalsDrifted      = &Error{Code: ECONFLICT, Message: "cart totals drifted beyond tolerance since checkout began"}
)

// CheckoutStatus is the checkout session lifecycle state (§4.3).
type CheckoutStatus string

const (
	CheckoutInitiated      CheckoutStatus = "initiated"
	CheckoutAddressEntered CheckoutStatus = "address_entered"
	CheckoutPaymentPending CheckoutStatus = "payment_pending"
	CheckoutCompleted      CheckoutStatus = "completed"
	CheckoutFailed         CheckoutStatus = "failed"
	CheckoutExpired        CheckoutStatus = "expired"
)

// IsTerminal reports whether the status is immutable.
func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutCompleted || s == CheckoutFailed || s == CheckoutExpired
}

// CheckoutDefaultTTL is the session lifetime absent config override.
const CheckoutDefaultTTL = 30 * time.Minute

// CheckoutItemSnapshot freezes one cart line's pricing at session entry.
type CheckoutItemSnapshot struct {
	ProductID    string
	VariantID    string
	BundleID     string
	Quantity     int
	UnitPrice    money.Amount
	UnitMRP      money.Amount
	LineDiscount money.Amount
	LineTotal    money.Amount
	IsFreeGift   bool
}

// CheckoutSession is the time-bounded handle that freezes a cart snapshot
// during payment (§4.3).
type CheckoutSession struct {
	ID     string
	UserID string
	CartID string

	Items []CheckoutItemSnapshot

	ShippingAddress Address
	BillingAddress  Address
	ShippingMethod  ShippingMethodSnapshot
	PaymentMethod   string // tag, e.g. "upi", "card"

	Totals TotalsSnapshot

	ReservationToken string

	Status    CheckoutStatus
	ExpiresAt time.Time

	OrderID string // set once completed

	Timestamps
}

// ReservationTTL is the inventory-reservation hold duration (§4.3 step 4).
const ReservationTTL = 30 * time.Minute
