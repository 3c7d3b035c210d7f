package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Inventory is the boundary to the stock/reservation service. Checkout
// reserves stock for ReservationTTL; the reservation is released on
// expiry or committed when the order is created (§4.3).
type Inventory interface {
	CheckAvailability(ctx context.Context, lines []StockLookup) (map[string]bool, error)
	Reserve(ctx context.Context, reservationToken string, lines []StockLookup, ttl time.Duration) error
	Release(ctx context.Context, reservationToken string) error
	Commit(ctx context.Context, reservationToken string) error
}

// StockLookup identifies one variant/quantity pair to check or reserve.
type StockLookup struct {
	VariantID string
	Quantity  int
}

// HTTPInventory calls an inventory microservice over JSON/HTTP.
type HTTPInventory struct {
	baseURL string
	client  *http.Client
}

func NewHTTPInventory(baseURL string, timeout time.Duration) *HTTPInventory {
	return &HTTPInventory{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (i *HTTPInventory) post(ctx context.Context, path string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("inventory: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("inventory: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("inventory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("inventory: insufficient stock")
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("inventory: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (i *HTTPInventory) CheckAvailability(ctx context.Context, lines []StockLookup) (map[string]bool, error) {
	buf, err := json.Marshal(struct {
		Lines []StockLookup `json:"lines"`
	}{Lines: lines})
	if err != nil {
		return nil, fmt.Errorf("inventory: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/v1/stock:check", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("inventory: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Available map[string]bool `json:"available"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("inventory: decode response: %w", err)
	}
	return out.Available, nil
}

func (i *HTTPInventory) Reserve(ctx context.Context, reservationToken string, lines []StockLookup, ttl time.Duration) error {
	return i.post(ctx, "/v1/reservations", struct {
		Token    string        `json:"token"`
		Lines    []StockLookup `json:"lines"`
		TTLMilis int64         `json:"ttlMillis"`
	}{Token: reservationToken, Lines: lines, TTLMilis: ttl.Milliseconds()})
}

func (i *HTTPInventory) Release(ctx context.Context, reservationToken string) error {
	return i.post(ctx, "/v1/reservations:release", struct {
		Token string `json:"token"`
	}{Token: reservationToken})
}

func (i *HTTPInventory) Commit(ctx context.Context, reservationToken string) error {
	return i.post(ctx, "/v1/reservations:commit", struct {
		Token string `json:"token"`
	}{Token: reservationToken})
}
