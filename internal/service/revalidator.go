// Package service implements the order lifecycle core's business logic:
// cart mutation and merge, checkout orchestration, the order state
// machine, and the payment/refund/return/invoice workflows. Each type
// here depends only on repository interfaces, provider interfaces, and
// the events publisher — never on a concrete transport.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dukerupert/freyja/internal/breaker"
	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/money"
	"github.com/dukerupert/freyja/internal/provider"
)

// Severity grades a revalidation warning for client display.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Warning is one aggregated revalidation finding.
type Warning struct {
	Code     string
	Severity Severity
	Message  string
}

// PriceChangeResult is one line's detected price drift.
type PriceChangeResult struct {
	CartItemID string
	OldPrice   money.Amount
	NewPrice   money.Amount
}

// UnavailableItem is one line the catalog no longer considers purchasable.
type UnavailableItem struct {
	CartItemID string
	Reason     string
}

// RevalidationResult is the outcome of running the revalidator over a set
// of lines (§4.1).
type RevalidationResult struct {
	PriceChanges []PriceChangeResult
	Unavailable  []UnavailableItem
	Warnings     []Warning
}

// Revalidator re-prices lines and flags unavailable items against the
// pricing and catalog collaborators. It never mutates on a collaborator
// failure: the caller gets back the original items plus an error, never a
// half-applied pass.
type Revalidator struct {
	pricing  provider.Pricing
	catalog  provider.Catalog
	breakers *breaker.Manager
	log      zerolog.Logger
}

func NewRevalidator(pricing provider.Pricing, catalog provider.Catalog, breakers *breaker.Manager, log zerolog.Logger) *Revalidator {
	return &Revalidator{
		pricing:  pricing,
		catalog:  catalog,
		breakers: breakers,
		log:      log.With().Str("component", "revalidator").Logger(),
	}
}

// Revalidate re-prices and checks availability for every item, returning
// the mutated slice alongside the aggregated findings. Idempotent: running
// it twice on already-refreshed data produces an empty change set.
func (r *Revalidator) Revalidate(ctx context.Context, items []domain.CartItem) (*RevalidationResult, []domain.CartItem, error) {
	if len(items) == 0 {
		return &RevalidationResult{}, items, nil
	}

	lookups := make([]provider.PriceLookup, len(items))
	variantIDs := make([]string, len(items))
	for i, it := range items {
		lookups[i] = provider.PriceLookup{ProductID: it.ProductID, VariantID: it.VariantID}
		variantIDs[i] = it.VariantID
	}

	var quotes map[string]provider.PriceQuote
	if err := r.breakers.Do(breaker.Pricing, func() error {
		var doErr error
		quotes, doErr = r.pricing.GetPrices(ctx, lookups)
		return doErr
	}); err != nil {
		r.log.Warn().Err(err).Msg("pricing collaborator unavailable")
		return nil, items, domain.Unavailable("revalidator.Revalidate", "pricing service unavailable", err)
	}

	var statuses map[string]provider.ProductStatus
	if err := r.breakers.Do(breaker.Catalog, func() error {
		var doErr error
		statuses, doErr = r.catalog.GetStatus(ctx, variantIDs)
		return doErr
	}); err != nil {
		r.log.Warn().Err(err).Msg("catalog collaborator unavailable")
		return nil, items, domain.Unavailable("revalidator.Revalidate", "catalog service unavailable", err)
	}

	result := &RevalidationResult{}
	out := make([]domain.CartItem, len(items))
	var priceUp, priceDown money.Amount

	for i, it := range items {
		status, hasStatus := statuses[it.VariantID]

		switch {
		case !hasStatus || !status.ProductExists:
			result.Unavailable = append(result.Unavailable, UnavailableItem{CartItemID: it.ID, Reason: "product no longer exists"})
			it.ProductStatus = domain.ProductStatusSnapshot{LastCheckedAt: time.Now()}
			out[i] = it
			continue
		case !status.VariantExists || !status.Active:
			result.Unavailable = append(result.Unavailable, UnavailableItem{CartItemID: it.ID, Reason: "variant is no longer active"})
			it.ProductStatus = domain.ProductStatusSnapshot{ProductExists: true, LastCheckedAt: time.Now()}
			out[i] = it
			continue
		}
		it.ProductStatus = domain.ProductStatusSnapshot{ProductExists: true, VariantExists: true, LastCheckedAt: time.Now()}

		if quote, ok := quotes[it.VariantID]; ok && it.UnitPrice.Exceeds(quote.UnitPrice, money.Tolerance) {
			old := it.UnitPrice
			it.UnitPrice = quote.UnitPrice
			it.UnitMRP = quote.UnitMRP
			it.RecomputeLineTotal()
			it.PriceChange = domain.PriceChange{Changed: true, OldPrice: old, NewPrice: quote.UnitPrice, ChangedAt: time.Now()}
			it.PriceSnapshot = domain.PriceSnapshot{UnitPrice: quote.UnitPrice, UnitMRP: quote.UnitMRP, CapturedAt: time.Now(), DiscountPercent: quote.DiscountPercent}
			result.PriceChanges = append(result.PriceChanges, PriceChangeResult{CartItemID: it.ID, OldPrice: old, NewPrice: quote.UnitPrice})
			if quote.UnitPrice > old {
				priceUp += (quote.UnitPrice - old).Mul(it.Quantity)
			} else {
				priceDown += (old - quote.UnitPrice).Mul(it.Quantity)
			}
		}
		out[i] = it
	}

	if priceUp > 0 {
		result.Warnings = append(result.Warnings, Warning{Code: "PRICE_INCREASE", Severity: SeverityMedium, Message: fmt.Sprintf("total price increase of %s across affected lines", priceUp)})
	}
	if priceDown > 0 {
		result.Warnings = append(result.Warnings, Warning{Code: "PRICE_DECREASE", Severity: SeverityLow, Message: fmt.Sprintf("total price decrease of %s across affected lines", priceDown)})
	}
	if len(result.Unavailable) > 0 {
		result.Warnings = append(result.Warnings, Warning{Code: "ITEMS_UNAVAILABLE", Severity: SeverityHigh, Message: fmt.Sprintf("%d item(s) no longer available", len(result.Unavailable))})
	}

	return result, out, nil
}
