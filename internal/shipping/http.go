package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPProvider calls a carrier-aggregation microservice over JSON/HTTP.
// Used when SHIPPING_BYPASS_MODE is off and a real rate/label/tracking
// service is reachable.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, in, out any) error {
	var body bytes.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("shipping: encode request: %w", err)
		}
		body = *bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("shipping: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("shipping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("shipping: unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("shipping: decode response: %w", err)
	}
	return nil
}

func (p *HTTPProvider) GetRates(ctx context.Context, params RateParams) ([]Rate, error) {
	var out struct {
		Rates []Rate `json:"rates"`
	}
	if err := p.do(ctx, http.MethodPost, "/v1/rates:get", params, &out); err != nil {
		return nil, err
	}
	return out.Rates, nil
}

func (p *HTTPProvider) CreateLabel(ctx context.Context, params LabelParams) (*Label, error) {
	var out Label
	if err := p.do(ctx, http.MethodPost, "/v1/labels", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *HTTPProvider) VoidLabel(ctx context.Context, params VoidLabelParams) error {
	return p.do(ctx, http.MethodPost, "/v1/labels:void", params, nil)
}

func (p *HTTPProvider) TrackShipment(ctx context.Context, trackingNumber string) (*TrackingInfo, error) {
	var out TrackingInfo
	if err := p.do(ctx, http.MethodGet, "/v1/tracking/"+trackingNumber, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *HTTPProvider) ValidateAddress(ctx context.Context, params ValidateAddressParams) (*AddressValidation, error) {
	var out AddressValidation
	if err := p.do(ctx, http.MethodPost, "/v1/addresses:validate", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
