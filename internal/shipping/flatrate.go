package shipping

import (
	"context"
	"regexp"
	"time"
)

// pincodeRe matches the 6-digit Indian PIN code format; flat-rate mode
// still validates it since no carrier is reachable to do so.
var pincodeRe = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// FlatRateProvider returns a fixed set of shipping options, used when
// SHIPPING_BYPASS_MODE skips the carrier-aggregation microservice
// (§6). It still enforces the Indian PIN code format on the
// destination address, since that's the one piece of carrier
// serviceability a flat rate can't skip.
type FlatRateProvider struct {
	rates []FlatRate
}

// FlatRate defines a single flat-rate shipping option.
type FlatRate struct {
	ServiceName string
	ServiceCode string
	CostCents   int32
	DaysMin     int
	DaysMax     int
}

// NewFlatRateProvider creates a new flat-rate shipping provider.
func NewFlatRateProvider(rates []FlatRate) Provider {
	return &FlatRateProvider{rates: rates}
}

// GetRates converts flat rates to Rate objects, rejecting destinations
// with a malformed PIN code.
func (p *FlatRateProvider) GetRates(ctx context.Context, params RateParams) ([]Rate, error) {
	if !pincodeRe.MatchString(params.DestinationAddress.Pincode) {
		return nil, ErrAddressInvalid
	}
	result := make([]Rate, len(p.rates))
	for i, fr := range p.rates {
		result[i] = Rate{
			RateID:                fr.ServiceCode,
			Carrier:               "Flat Rate",
			ServiceName:           fr.ServiceName,
			ServiceCode:           fr.ServiceCode,
			CostCents:             int64(fr.CostCents),
			EstimatedDaysMin:      fr.DaysMin,
			EstimatedDaysMax:      fr.DaysMax,
			EstimatedDeliveryDate: time.Now().AddDate(0, 0, fr.DaysMax),
		}
	}
	return result, nil
}

// CreateLabel is not supported for the flat-rate provider: bypass mode
// has no carrier to purchase a real label from.
func (p *FlatRateProvider) CreateLabel(ctx context.Context, params LabelParams) (*Label, error) {
	return nil, ErrNotImplemented
}

// VoidLabel is not supported for the flat-rate provider.
func (p *FlatRateProvider) VoidLabel(ctx context.Context, params VoidLabelParams) error {
	return ErrNotImplemented
}

// TrackShipment is not supported for the flat-rate provider.
func (p *FlatRateProvider) TrackShipment(ctx context.Context, trackingNumber string) (*TrackingInfo, error) {
	return nil, ErrNotImplemented
}

// ValidateAddress checks the PIN code format only; there's no carrier
// to cross-reference the rest of the address against.
func (p *FlatRateProvider) ValidateAddress(ctx context.Context, params ValidateAddressParams) (*AddressValidation, error) {
	if !pincodeRe.MatchString(params.Address.Pincode) {
		return &AddressValidation{
			Status:          AddressInvalid,
			OriginalAddress: params.Address,
			Messages:        []string{"pincode must be a 6-digit Indian PIN code"},
		}, nil
	}
	return &AddressValidation{Status: AddressValid, OriginalAddress: params.Address}, nil
}
