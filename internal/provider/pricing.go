package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dukerupert/freyja/internal/money"
)

// Pricing is the boundary to the pricing service that owns current
// unit prices, MRPs, and discount percentages (§4.1 revalidation).
type Pricing interface {
	GetPrices(ctx context.Context, lines []PriceLookup) (map[string]PriceQuote, error)
}

// PriceLookup identifies one cart/checkout line to reprice.
type PriceLookup struct {
	ProductID string
	VariantID string
}

// PriceQuote is the pricing service's current view of a line, keyed by
// VariantID in the returned map.
type PriceQuote struct {
	UnitPrice       money.Amount
	UnitMRP         money.Amount
	DiscountPercent float64
	Available       bool
}

// HTTPPricing calls a pricing microservice over JSON/HTTP.
type HTTPPricing struct {
	baseURL string
	client  *http.Client
}

func NewHTTPPricing(baseURL string, timeout time.Duration) *HTTPPricing {
	return &HTTPPricing{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (p *HTTPPricing) GetPrices(ctx context.Context, lines []PriceLookup) (map[string]PriceQuote, error) {
	body, err := json.Marshal(struct {
		Lines []PriceLookup `json:"lines"`
	}{Lines: lines})
	if err != nil {
		return nil, fmt.Errorf("pricing: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/prices:batchGet", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("pricing: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pricing: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Quotes map[string]PriceQuote `json:"quotes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("pricing: decode response: %w", err)
	}
	return out.Quotes, nil
}
