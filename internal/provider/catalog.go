package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Catalog is the boundary to the product catalog service, which owns
// whether a product or variant still exists and can be sold (§4.1).
type Catalog interface {
	GetStatus(ctx context.Context, variantIDs []string) (map[string]ProductStatus, error)
}

// ProductStatus is the catalog's current view of one variant.
type ProductStatus struct {
	ProductExists bool `json:"productExists"`
	VariantExists bool `json:"variantExists"`
	Active        bool `json:"active"`
}

// HTTPCatalog calls a catalog microservice over JSON/HTTP.
type HTTPCatalog struct {
	baseURL string
	client  *http.Client
}

func NewHTTPCatalog(baseURL string, timeout time.Duration) *HTTPCatalog {
	return &HTTPCatalog{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (c *HTTPCatalog) GetStatus(ctx context.Context, variantIDs []string) (map[string]ProductStatus, error) {
	q := url.Values{"variantId": variantIDs}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/variants/status?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Statuses map[string]ProductStatus `json:"statuses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("catalog: decode response: %w", err)
	}
	return out.Statuses, nil
}

// variantIDsKey joins ids for logging without leaking the whole slice
// into a log attribute.
func variantIDsKey(ids []string) string {
	if len(ids) <= 3 {
		return strings.Join(ids, ",")
	}
	return strings.Join(ids[:3], ",") + fmt.Sprintf(",+%d more", len(ids)-3)
}
