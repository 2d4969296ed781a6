package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/lesson_booking/internal/pricing"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testConfig() pricing.Config {
	return pricing.Config{
		CommissionTiers: []pricing.Tier{
			{MinLessons: 0, MaxLessons: 49, Rate: dec("0.25")},
			{MinLessons: 50, MaxLessons: 199, Rate: dec("0.20")},
			{MinLessons: 200, Rate: dec("0.15")},
		},
		StopajRate:        dec("0.20"),
		VATRate:           dec("0.20"),
		RoundingIncrement: dec("50"),
	}
}

func newTestModel(t *testing.T) *pricing.Model {
	m, err := pricing.NewModel(testConfig())
	require.NoError(t, err)
	return m
}

func TestComputeDisplayPrice_ReferenceScenario(t *testing.T) {
	m := newTestModel(t)

	b := m.ComputeDisplayPrice(dec("1000"), 10)

	assert.True(t, b.Stopaj.Equal(dec("200")), "stopaj: %s", b.Stopaj)
	assert.True(t, b.Commission.Equal(dec("250")), "commission: %s", b.Commission)
	assert.True(t, b.Subtotal.Equal(dec("1450")), "subtotal: %s", b.Subtotal)
	assert.True(t, b.VAT.Equal(dec("290")), "vat: %s", b.VAT)
	assert.True(t, b.RawTotal.Equal(dec("1740")), "raw total: %s", b.RawTotal)
	assert.True(t, b.DisplayPrice.Equal(dec("1750")), "display: %s", b.DisplayPrice)
}

func TestComputeDisplayPrice_TierSelection(t *testing.T) {
	m := newTestModel(t)

	cases := []struct {
		completed int
		rate      string
	}{
		{0, "0.25"},
		{49, "0.25"},
		{50, "0.20"},
		{199, "0.20"},
		{200, "0.15"},
		{100000, "0.15"},
		{-3, "0.25"},
	}

	for _, tc := range cases {
		got := m.ComputeDisplayPrice(dec("1000"), tc.completed).CommissionRate
		assert.True(t, got.Equal(dec(tc.rate)), "completed=%d: got %s", tc.completed, got)
	}
}

func TestComputeDisplayPrice_NonPositiveNetIsZeroed(t *testing.T) {
	m := newTestModel(t)

	for _, net := range []string{"0", "-10"} {
		b := m.ComputeDisplayPrice(dec(net), 0)
		assert.True(t, b.IsZero())
		assert.True(t, b.NetPrice.IsZero())
		assert.True(t, b.Commission.IsZero())
	}
}

func TestComputeDisplayPrice_ExactMultipleIsNotRoundedUp(t *testing.T) {
	cfg := testConfig()
	cfg.StopajRate = decimal.Zero
	cfg.VATRate = decimal.Zero
	cfg.CommissionTiers = []pricing.Tier{{MinLessons: 0, Rate: decimal.Zero}}
	m, err := pricing.NewModel(cfg)
	require.NoError(t, err)

	assert.True(t, m.ComputeDisplayPrice(dec("500"), 0).DisplayPrice.Equal(dec("500")))
	assert.True(t, m.ComputeDisplayPrice(dec("500.01"), 0).DisplayPrice.Equal(dec("550")))
}

func TestComputeDisplayPrice_MonotonicAndRounded(t *testing.T) {
	m := newTestModel(t)
	increment := dec("50")

	for _, completed := range []int{0, 75, 500} {
		prev := decimal.Zero
		for net := int64(1); net <= 5000; net += 7 {
			b := m.ComputeDisplayPrice(decimal.NewFromInt(net), completed)

			assert.True(t, b.DisplayPrice.GreaterThanOrEqual(prev),
				"net=%d completed=%d: %s < %s", net, completed, b.DisplayPrice, prev)
			assert.True(t, b.DisplayPrice.Mod(increment).IsZero(),
				"net=%d: %s not a multiple of %s", net, b.DisplayPrice, increment)
			assert.True(t, b.DisplayPrice.GreaterThanOrEqual(b.RawTotal))

			prev = b.DisplayPrice
		}
	}
}

func TestBreakdownAt_MatchesComputeDisplayPrice(t *testing.T) {
	m := newTestModel(t)

	quoted := m.ComputeDisplayPrice(dec("840"), 120)
	reported := m.BreakdownAt(dec("840"), quoted.CommissionRate)

	assert.Equal(t, quoted.DisplayPrice.String(), reported.DisplayPrice.String())
	assert.Equal(t, quoted.Commission.String(), reported.Commission.String())
}

func TestConfigValidate(t *testing.T) {
	valid := testConfig()
	require.NoError(t, valid.Validate())

	gap := testConfig()
	gap.CommissionTiers[1].MinLessons = 60
	assert.Error(t, gap.Validate())

	notFromZero := testConfig()
	notFromZero.CommissionTiers[0].MinLessons = 1
	assert.Error(t, notFromZero.Validate())

	negative := testConfig()
	negative.VATRate = dec("-0.1")
	assert.Error(t, negative.Validate())

	noIncrement := testConfig()
	noIncrement.RoundingIncrement = decimal.Zero
	assert.Error(t, noIncrement.Validate())

	empty := testConfig()
	empty.CommissionTiers = nil
	_, err := pricing.NewModel(empty)
	assert.Error(t, err)
}
