package shipping_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/freyja/internal/shipping"
	"github.com/stretchr/testify/assert"
)

func destAddr(city, state string) shipping.ShippingAddress {
	return shipping.ShippingAddress{City: city, State: state, Country: "IN", Pincode: "560001"}
}

func TestFlatRateProvider_GetRates_SingleRate(t *testing.T) {
	rates := []shipping.FlatRate{
		{ServiceName: "Standard Shipping", ServiceCode: "STD", CostCents: 5000, DaysMin: 3, DaysMax: 5},
	}

	provider := shipping.NewFlatRateProvider(rates)

	params := shipping.RateParams{
		DestinationAddress: destAddr("Bengaluru", "KA"),
		Packages: []shipping.Package{
			{WeightGrams: 500, LengthCm: 20, WidthCm: 15, HeightCm: 10},
		},
	}

	result, err := provider.GetRates(context.Background(), params)

	assert.NoError(t, err)
	assert.Len(t, result, 1)

	rate := result[0]
	assert.Equal(t, "STD", rate.RateID)
	assert.Equal(t, "Flat Rate", rate.Carrier)
	assert.Equal(t, int64(5000), rate.CostCents)
	assert.Equal(t, 3, rate.EstimatedDaysMin)
	assert.Equal(t, 5, rate.EstimatedDaysMax)
	assert.Nil(t, rate.ExpiresAt, "flat rates should not expire")
	assert.True(t, rate.EstimatedDeliveryDate.After(time.Now()))
}

func TestFlatRateProvider_GetRates_MultipleRates(t *testing.T) {
	rates := []shipping.FlatRate{
		{ServiceName: "Standard Shipping", ServiceCode: "STD", CostCents: 5000, DaysMin: 3, DaysMax: 5},
		{ServiceName: "Express Shipping", ServiceCode: "EXP", CostCents: 15000, DaysMin: 1, DaysMax: 2},
	}

	provider := shipping.NewFlatRateProvider(rates)

	params := shipping.RateParams{
		DestinationAddress: destAddr("Pune", "MH"),
		Packages:           []shipping.Package{{WeightGrams: 340}},
	}

	result, err := provider.GetRates(context.Background(), params)

	assert.NoError(t, err)
	assert.Len(t, result, 2)
	for i, rate := range result {
		assert.Equal(t, rates[i].ServiceCode, rate.RateID)
		assert.Equal(t, int64(rates[i].CostCents), rate.CostCents)
	}
}

func TestFlatRateProvider_GetRates_EmptyConfiguration(t *testing.T) {
	provider := shipping.NewFlatRateProvider([]shipping.FlatRate{})

	result, err := provider.GetRates(context.Background(), shipping.RateParams{
		DestinationAddress: destAddr("Chennai", "TN"),
		Packages:           []shipping.Package{{WeightGrams: 340}},
	})

	assert.NoError(t, err)
	assert.Empty(t, result)
}

func TestFlatRateProvider_GetRates_IgnoresPackageDetails(t *testing.T) {
	rates := []shipping.FlatRate{
		{ServiceName: "Flat Rate", ServiceCode: "FLAT", CostCents: 10000, DaysMin: 2, DaysMax: 4},
	}
	provider := shipping.NewFlatRateProvider(rates)

	for _, pkgs := range [][]shipping.Package{
		{{WeightGrams: 100}},
		{{WeightGrams: 5000, LengthCm: 50, WidthCm: 50, HeightCm: 50}},
	} {
		result, err := provider.GetRates(context.Background(), shipping.RateParams{
			DestinationAddress: destAddr("Mumbai", "MH"),
			Packages:           pkgs,
		})
		assert.NoError(t, err)
		assert.Len(t, result, 1)
		assert.Equal(t, int64(10000), result[0].CostCents)
	}
}

func TestFlatRateProvider_GetRates_EstimatedDeliveryOrdering(t *testing.T) {
	rates := []shipping.FlatRate{
		{ServiceName: "Standard", ServiceCode: "STD", CostCents: 5000, DaysMin: 3, DaysMax: 5},
		{ServiceName: "Express", ServiceCode: "EXP", CostCents: 15000, DaysMin: 1, DaysMax: 2},
	}
	provider := shipping.NewFlatRateProvider(rates)

	result, err := provider.GetRates(context.Background(), shipping.RateParams{
		DestinationAddress: destAddr("Delhi", "DL"),
		Packages:           []shipping.Package{{WeightGrams: 340}},
	})

	assert.NoError(t, err)
	assert.Len(t, result, 2)
	assert.True(t, result[1].EstimatedDeliveryDate.Before(result[0].EstimatedDeliveryDate),
		"express delivery should be sooner than standard")
}

func TestFlatRateProvider_CreateLabel_ReturnsNotImplemented(t *testing.T) {
	provider := shipping.NewFlatRateProvider(nil)

	label, err := provider.CreateLabel(context.Background(), shipping.LabelParams{
		RateID:             "STD",
		DestinationAddress: destAddr("Hyderabad", "TG"),
	})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, shipping.ErrNotImplemented))
	assert.Nil(t, label)
}

func TestFlatRateProvider_VoidLabel_ReturnsNotImplemented(t *testing.T) {
	provider := shipping.NewFlatRateProvider(nil)

	err := provider.VoidLabel(context.Background(), shipping.VoidLabelParams{LabelID: "label-123"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, shipping.ErrNotImplemented))
}

func TestFlatRateProvider_TrackShipment_ReturnsNotImplemented(t *testing.T) {
	provider := shipping.NewFlatRateProvider(nil)

	tracking, err := provider.TrackShipment(context.Background(), "TRACK-123456")

	assert.Error(t, err)
	assert.True(t, errors.Is(err, shipping.ErrNotImplemented))
	assert.Nil(t, tracking)
}

func TestFlatRateProvider_ValidateAddress_AcceptsValidPincode(t *testing.T) {
	provider := shipping.NewFlatRateProvider(nil)

	result, err := provider.ValidateAddress(context.Background(), shipping.ValidateAddressParams{
		Address: destAddr("Kolkata", "WB"),
	})

	assert.NoError(t, err)
	assert.Equal(t, shipping.AddressValid, result.Status)
}

func TestFlatRateProvider_ValidateAddress_RejectsMalformedPincode(t *testing.T) {
	provider := shipping.NewFlatRateProvider(nil)

	result, err := provider.ValidateAddress(context.Background(), shipping.ValidateAddressParams{
		Address: shipping.ShippingAddress{City: "Kolkata", State: "WB", Country: "IN", Pincode: "12"},
	})

	assert.NoError(t, err)
	assert.Equal(t, shipping.AddressInvalid, result.Status)
}

func TestFlatRateProvider_GetRates_RejectsMalformedPincode(t *testing.T) {
	provider := shipping.NewFlatRateProvider([]shipping.FlatRate{
		{ServiceName: "Standard", ServiceCode: "STD", CostCents: 5000, DaysMin: 3, DaysMax: 5},
	})

	result, err := provider.GetRates(context.Background(), shipping.RateParams{
		DestinationAddress: shipping.ShippingAddress{City: "Kolkata", State: "WB", Country: "IN", Pincode: "0000"},
	})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, shipping.ErrAddressInvalid))
	assert.Nil(t, result)
}

func TestFlatRateProvider_ImplementsProvider(t *testing.T) {
	provider := shipping.NewFlatRateProvider([]shipping.FlatRate{
		{ServiceName: "Test", ServiceCode: "TEST", CostCents: 100, DaysMin: 1, DaysMax: 3},
	})

	var _ shipping.Provider = provider
	assert.NotNil(t, provider)
}
