package shipping

import (
	"context"
	"time"
)

// Provider defines the interface for shipping rate/label operations
// used by checkout and fulfillment.
type Provider interface {
	// GetRates returns available shipping options for a shipment.
	GetRates(ctx context.Context, params RateParams) ([]Rate, error)

	// CreateLabel generates a shipping label.
	CreateLabel(ctx context.Context, params LabelParams) (*Label, error)

	// VoidLabel cancels a shipping label.
	VoidLabel(ctx context.Context, params VoidLabelParams) error

	// TrackShipment gets tracking information.
	TrackShipment(ctx context.Context, trackingNumber string) (*TrackingInfo, error)

	// ValidateAddress validates and optionally corrects a shipping address.
	ValidateAddress(ctx context.Context, params ValidateAddressParams) (*AddressValidation, error)
}

// RateParams contains parameters for calculating shipping rates.
type RateParams struct {
	OriginAddress      ShippingAddress
	DestinationAddress ShippingAddress
	Packages           []Package
	ServiceTypes       []string
}

// ShippingAddress represents a complete shipping address for carrier
// calls. Country defaults to "IN"; State/Pincode follow Indian postal
// conventions.
type ShippingAddress struct {
	Name    string
	Line1   string
	Line2   string
	City    string
	State   string
	Pincode string
	Country string
	Phone   string
}

// Package represents a physical package to be shipped, in metric units.
type Package struct {
	WeightGrams int32
	LengthCm    int32
	WidthCm     int32
	HeightCm    int32
}

// Rate represents a shipping rate option.
type Rate struct {
	RateID                string
	Carrier               string
	ServiceName           string
	ServiceCode           string
	CostCents             int64
	EstimatedDaysMin      int
	EstimatedDaysMax      int
	EstimatedDeliveryDate time.Time
	ExpiresAt             *time.Time
}

// Label represents a purchased shipping label.
type Label struct {
	LabelID        string
	TrackingNumber string
	LabelURL       string
	CreatedAt      time.Time
}

// LabelParams contains parameters for creating a shipping label.
type LabelParams struct {
	RateID             string
	OriginAddress      ShippingAddress
	DestinationAddress ShippingAddress
	Package            Package
	IdempotencyKey     string
}

// VoidLabelParams contains parameters for voiding a shipping label.
type VoidLabelParams struct {
	LabelID string
}

// ValidateAddressParams contains parameters for address validation.
type ValidateAddressParams struct {
	Address ShippingAddress
}

// TrackingInfo contains shipment tracking information.
type TrackingInfo struct {
	TrackingNumber        string
	Status                string
	Events                []TrackingEvent
	EstimatedDeliveryDate time.Time
}

// TrackingEvent represents a single tracking event.
type TrackingEvent struct {
	Timestamp   time.Time
	Status      string
	Location    string
	Description string
}

// AddressValidationStatus represents the outcome of address validation.
type AddressValidationStatus string

const (
	AddressValid            AddressValidationStatus = "valid"
	AddressValidWithChanges AddressValidationStatus = "valid_with_changes"
	AddressInvalid          AddressValidationStatus = "invalid"
)

// AddressValidation contains the result of address validation.
type AddressValidation struct {
	Status           AddressValidationStatus
	OriginalAddress  ShippingAddress
	SuggestedAddress *ShippingAddress
	Messages         []string
}
