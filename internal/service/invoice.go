package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/events"
	"github.com/dukerupert/freyja/internal/money"
	"github.com/dukerupert/freyja/internal/repository"
	"github.com/dukerupert/freyja/internal/sequence"
	"github.com/dukerupert/freyja/internal/tax"
)

// Renderer turns an assembled Invoice into a stored document and returns
// where it landed. The actual PDF layout is out of scope here; production
// wires this to whatever template/object-storage service the deployment
// uses.
type Renderer interface {
	Render(ctx context.Context, inv *domain.Invoice) (storageURL string, err error)
}

// InvoiceService assembles the immutable GST billing document from an
// order's frozen line items once it becomes eligible (§4.6).
type InvoiceService struct {
	invoices repository.InvoiceRepository
	orders   *OrderService
	taxCalc  tax.Calculator
	render   Renderer
	seq      *sequence.Generator

	events events.Publisher
	log    zerolog.Logger

	InvoiceNumberPrefix string
	SellerGSTState      string
}

func NewInvoiceService(invoices repository.InvoiceRepository, orders *OrderService, taxCalc tax.Calculator, render Renderer, seq *sequence.Generator, pub events.Publisher, log zerolog.Logger) *InvoiceService {
	return &InvoiceService{
		invoices: invoices, orders: orders, taxCalc: taxCalc, render: render, seq: seq,
		events: pub, log: log.With().Str("component", "invoice_service").Logger(),
		InvoiceNumberPrefix: "INV",
	}
}

func (s *InvoiceService) publish(ctx context.Context, e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("event_type", e.Type).Msg("failed to publish invoice event")
	}
}

// Generate assembles and persists the invoice for a delivered order. It is
// idempotent: calling it again for an order that already has one returns
// the existing document unchanged, which is how an invoice's number stays
// stable across any later re-issue request — there is at most one
// invoice per order (enforced by a unique index), so "regenerating" never
// mints a second number.
func (s *InvoiceService) Generate(ctx context.Context, orderID string) (*domain.Invoice, error) {
	if existing, err := s.invoices.GetByOrderID(ctx, orderID); err == nil {
		return existing, nil
	} else if domain.ErrorCode(err) != domain.ENOTFOUND {
		return nil, err
	}

	order, err := s.orders.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderDelivered && order.Status != domain.OrderReturned && order.Status != domain.OrderRefunded {
		return nil, domain.ErrInvoiceNotEligible
	}

	items, err := s.orders.orders.ListItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	lineItems := make([]domain.InvoiceLineItem, len(items))
	var totalTax money.Amount
	for i, it := range items {
		result, err := s.taxCalc.CalculateTax(ctx, tax.TaxParams{
			Seller:          tax.SellerParams{State: s.SellerGSTState},
			ShippingAddress: tax.Address{Line1: order.ShippingAddress.Line1, Line2: order.ShippingAddress.Line2, City: order.ShippingAddress.City, State: order.ShippingAddress.State, Pincode: order.ShippingAddress.Pincode, Country: order.ShippingAddress.Country},
			LineItems: []tax.LineItem{{
				ProductID: it.ProductID, HSNCode: it.HSNCode, Quantity: int32(it.Quantity),
				TotalCents: int64(it.LineTotal), TaxRatePct: standardGSTRatePct,
			}},
		})
		if err != nil {
			return nil, fmt.Errorf("invoice.Generate: tax line %s: %w", it.ID, err)
		}

		taxLines := make([]domain.InvoiceTaxLine, len(result.Breakdown))
		for j, b := range result.Breakdown {
			taxLines[j] = domain.InvoiceTaxLine{Label: b.Label, RatePct: b.Rate, TaxAmount: money.Amount(b.AmountCents)}
		}
		lineTax := money.Amount(result.TotalTaxCents)
		totalTax += lineTax

		lineItems[i] = domain.InvoiceLineItem{
			SKU: it.SKU, Name: it.Name, HSNCode: it.HSNCode, Quantity: it.Quantity,
			UnitPrice: it.UnitPrice, LineDiscount: it.LineDiscount, TaxLines: taxLines,
			LineTotal: it.LineTotal + lineTax,
		}
	}

	now := time.Now()
	seq, err := s.seq.Next(ctx, "invoice", now.Year())
	if err != nil {
		return nil, fmt.Errorf("invoice.Generate: mint invoice number: %w", err)
	}

	inv := &domain.Invoice{
		ID: domain.NewID(), InvoiceNumber: domain.FormatInvoiceNumber(s.InvoiceNumberPrefix, now.Year(), seq),
		OrderID: orderID, UserID: order.UserID, BillingAddress: order.BillingAddress, Items: lineItems,
		Totals: domain.TotalsSnapshot{
			SubtotalCents: order.Totals.SubtotalCents, DiscountCents: order.Totals.DiscountCents,
			ShippingCents: order.Totals.ShippingCents, TaxCents: int64(totalTax),
			GrandTotal: order.Totals.SubtotalCents - order.Totals.DiscountCents + order.Totals.ShippingCents + int64(totalTax),
		},
		IssuedAt:   now,
		Timestamps: domain.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("invoice.Generate: %w", err)
	}

	if s.render != nil {
		if storageURL, err := s.render.Render(ctx, inv); err != nil {
			s.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("failed to render invoice document")
		} else if err := s.invoices.SetStorageURL(ctx, inv.ID, storageURL); err != nil {
			s.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("failed to record invoice storage URL")
		} else {
			inv.StorageURL = storageURL
		}
	}

	s.publish(ctx, events.NewInvoiceEvent(events.EventInvoiceGenerated, inv.ID, map[string]any{"orderId": orderID, "invoiceNumber": inv.InvoiceNumber}))
	return inv, nil
}

// standardGSTRatePct is the fallback slab used absent a product-catalog
// HSN-to-rate lookup in this core.
const standardGSTRatePct = 18
