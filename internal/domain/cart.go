package domain

import (
	"time"

	"github.com/dukerupert/freyja/internal/money"
)

// Cart-related domain errors.
var (
	ErrCartNotFound         = &Error{Code: ENOTFOUND, Message: "cart not found"}
	ErrCartItemNotFound     = &Error{Code: ENOTFOUND, Message: "cart item not found"}
	ErrInvalidQuantity      = &Error{Code: EINVALID, Message: "quantity must be at least 1"}
	ErrLineQuantityCap      = &Error{Code: EINVALID, Message: "quantity exceeds the per-line maximum"}
	ErrCartItemCapReached   = &Error{Code: EINVALID, Message: "cart already holds the maximum number of items"}
	ErrCouponAlreadyApplied = &Error{Code: ECONFLICT, Message: "coupon already applied to this cart"}
	ErrCouponInvalid        = &Error{Code: EINVALID, Message: "coupon code is not valid for this cart"}
	ErrCartNotActive        = &Error{Code: ECONFLICT, Message: "cart is not active"}
)

// CartOwnerType distinguishes a registered user's cart from a guest
// session's cart. Exactly one of Cart.UserID / Cart.SessionID is set,
// matching which owner type is recorded here.
type CartOwnerType string

const (
	OwnerRegistered CartOwnerType = "registered"
	OwnerGuest      CartOwnerType = "guest"
)

// CartStatus is the cart lifecycle state.
type CartStatus string

const (
	CartActive    CartStatus = "active"
	CartAbandoned CartStatus = "abandoned"
	CartConverted CartStatus = "converted"
)

// MaxCartItems is the global cap on total quantity across all lines in a
// cart (§4.2).
const MaxCartItems = 50

// MaxLineQuantity bounds a single line's quantity so one SKU can't
// consume the whole cap by itself.
const MaxLineQuantity = 20

// Cart is the mutable pre-purchase basket bound to exactly one owner.
type Cart struct {
	ID        string
	OwnerType CartOwnerType
	UserID    string // set iff OwnerType == OwnerRegistered
	SessionID string // set iff OwnerType == OwnerGuest
	Status    CartStatus

	Subtotal      money.Amount
	DiscountTotal money.Amount
	ShippingTotal money.Amount
	TaxTotal      money.Amount
	GrandTotal    money.Amount
	ItemCount     int

	AppliedCoupons []AppliedCoupon

	ReminderSent   bool
	ReminderSentAt time.Time

	Timestamps
}

// AppliedCoupon is a cached view of a coupon applied to a cart.
// DiscountAmount is trusted as supplied: cart mutations re-sum it, and
// service.CheckoutService.InitiateCheckout sums it unchanged into the
// checkout totals. It is not re-derived or re-validated against any
// coupon engine at checkout entry.
type AppliedCoupon struct {
	Code           string
	CouponID       string
	DiscountAmount money.Amount
	Type           string // "percentage", "flat", "free_shipping"
}

// PriceSnapshot is the pricing-service view of a line captured at the
// moment it was last priced.
type PriceSnapshot struct {
	UnitPrice       money.Amount
	UnitMRP         money.Amount
	CapturedAt      time.Time
	DiscountPercent float64
}

// ProductStatusSnapshot is the catalog-service view of whether a line's
// product/variant still exists and is purchasable.
type ProductStatusSnapshot struct {
	ProductExists bool
	VariantExists bool
	LastCheckedAt time.Time
}

// PriceChange records the most recent drift the revalidator detected for
// a line, for display to the customer.
type PriceChange struct {
	Changed   bool
	OldPrice  money.Amount
	NewPrice  money.Amount
	ChangedAt time.Time
}

// CartItem is one line of a cart. Uniqueness is on
// (CartID, VariantID, BundleID); a repeated add coalesces into quantity.
type CartItem struct {
	ID        string
	CartID    string
	ProductID string
	VariantID string
	BundleID  string // empty when not a bundle line

	Quantity int

	UnitPrice    money.Amount
	UnitMRP      money.Amount
	LineDiscount money.Amount
	LineTotal    money.Amount // quantity*unitPrice - lineDiscount, clamped at 0

	IsFreeGift bool

	PriceSnapshot PriceSnapshot
	ProductStatus ProductStatusSnapshot
	PriceChange   PriceChange

	Timestamps
}

// Key returns the uniqueness key used for coalescing and merge matching:
// (variantId, bundleId).
func (i CartItem) Key() string {
	return i.VariantID + "|" + i.BundleID
}

// RecomputeLineTotal derives LineTotal from Quantity/UnitPrice/LineDiscount,
// clamped to be non-negative per the invariant in spec §3.
func (i *CartItem) RecomputeLineTotal() {
	raw := i.UnitPrice.Mul(i.Quantity).Sub(i.LineDiscount)
	i.LineTotal = raw.NonNegative()
}
