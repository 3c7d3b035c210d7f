package domain

import (
	"fmt"
	"time"

	"github.com/dukerupert/freyja/internal/money"
)

// Invoice-related domain errors.
var (
	ErrInvoiceNotFound         = &Error{Code: ENOTFOUND, Message: "invoice not found"}
	ErrInvoiceAlreadyGenerated = &Error{Code: ECONFLICT, Message: "invoice already generated for this order"}
	ErrInvoiceNotEligible      = &Error{Code: EINVALID, Message: "order is not yet eligible for invoicing"}
)

// InvoiceTaxLine is one GST-style tax component captured at invoice
// generation time, grouped by rate.
type InvoiceTaxLine struct {
	Label     string // e.g. "CGST", "SGST", "IGST"
	RatePct   float64
	TaxAmount money.Amount
}

// InvoiceLineItem mirrors an OrderItem's billing-relevant fields, frozen
// at invoice generation time so later order edits never retroactively
// change a document already issued to the customer.
type InvoiceLineItem struct {
	SKU          string
	Name         string
	HSNCode      string
	Quantity     int
	UnitPrice    money.Amount
	LineDiscount money.Amount
	TaxLines     []InvoiceTaxLine
	LineTotal    money.Amount
}

// Invoice is the immutable billing document generated once an order is
// delivered (or per the configured trigger), per §4.6/§5.
type Invoice struct {
	ID            string
	InvoiceNumber string // INV-YYYY-NNNNNN
	OrderID       string
	UserID        string

	BillingAddress Address
	Items          []InvoiceLineItem
	Totals         TotalsSnapshot

	// StorageURL points at the rendered PDF in object storage, populated
	// asynchronously after the row is created.
	StorageURL string

	IssuedAt time.Time

	Timestamps
}

// FormatInvoiceNumber renders a human-readable identifier such as
// INV-2026-000042 from a yearly sequence value.
func FormatInvoiceNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}
