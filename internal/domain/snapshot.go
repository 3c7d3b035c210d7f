package domain

import (
	"strings"
	"time"
)

// Address is an immutable point-in-time copy of a shipping or billing
// address. Once embedded in a CheckoutSession or Order it never changes,
// even if the customer later edits their saved address book entry
// upstream — that's an external-service concern, out of scope here.
type Address struct {
	FullName string
	Phone    string
	Line1    string
	Line2    string
	Landmark string
	City     string
	State    string
	Pincode  string
	Country  string
}

// ShippingMethodSnapshot freezes the carrier/rate chosen at checkout time.
type ShippingMethodSnapshot struct {
	MethodCode  string
	MethodName  string
	RateCents   int64 // minor units, kept as int64 to match provider.Rate
	EstDaysMin  int
	EstDaysMax  int
}

// PaymentMethodSnapshot is the safe, non-sensitive view of how the
// customer paid. Raw card numbers are never persisted; see MaskUPI.
type PaymentMethodSnapshot struct {
	Tag            string // e.g. "upi", "card", "netbanking"
	MaskedUPI      string
	CardLast4      string
	CardNetwork    string
	BankName       string
}

// MaskUPI applies the masking rule from spec §6: keep the first 2 and
// last 1 character of the local part, domain preserved.
func MaskUPI(vpa string) string {
	at := strings.IndexByte(vpa, '@')
	if at < 0 {
		return vpa
	}
	local, domain := vpa[:at], vpa[at:]
	if len(local) <= 3 {
		return local + domain
	}
	masked := local[:2] + strings.Repeat("*", len(local)-3) + local[len(local)-1:]
	return masked + domain
}

// TotalsSnapshot is the frozen breakdown of what an order or checkout
// session is charging, in minor units.
type TotalsSnapshot struct {
	SubtotalCents int64
	DiscountCents int64
	ShippingCents int64
	TaxCents      int64
	GrandTotal    int64
}

// Timestamps is embedded by every persisted entity.
type Timestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}
