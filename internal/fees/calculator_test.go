package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalculator() *Calculator {
	return NewCalculator(NewSchedule(DefaultScheduleConfig()))
}

func feeOf(fs []Fee, ft FeeType) (Fee, bool) {
	for _, f := range fs {
		if f.Type == ft {
			return f, true
		}
	}
	return Fee{}, false
}

func TestStampTaxOnlyOnSellTaker(t *testing.T) {
	c := newTestCalculator()

	sellSide := c.FillFees("taker", "maker", true, 100, 10, 1)
	_, ok := feeOf(sellSide, FeeStampTax)
	assert.True(t, ok)

	buySide := c.FillFees("taker", "maker", false, 100, 10, 2)
	_, ok = feeOf(buySide, FeeStampTax)
	assert.False(t, ok)
}

func TestFillFeesAreDeterministic(t *testing.T) {
	a := newTestCalculator()
	b := newTestCalculator()

	fa := a.FillFees("t", "m", true, 500, 20, 42)
	fb := b.FillFees("t", "m", true, 500, 20, 42)
	require.Equal(t, len(fa), len(fb))
	for i := range fa {
		assert.Equal(t, fa[i].Type, fb[i].Type)
		assert.True(t, fa[i].Amount.Equal(fb[i].Amount),
			"%s: %s vs %s", fa[i].Type, fa[i].Amount, fb[i].Amount)
	}
}

func TestStampAndClearingAmounts(t *testing.T) {
	c := newTestCalculator()

	// notional 100 * 10 = 1000: stamp 0.1%, clearing 0.002%
	fs := c.FillFees("t", "m", true, 100, 10, 1)
	stamp, _ := feeOf(fs, FeeStampTax)
	assert.True(t, stamp.Amount.Equal(decimal.NewFromInt(1)), "stamp %s", stamp.Amount)
	clearing, _ := feeOf(fs, FeeClearing)
	assert.True(t, clearing.Amount.Equal(decimal.NewFromFloat(0.02)), "clearing %s", clearing.Amount)
}

func TestTierRateDropsWithVolume(t *testing.T) {
	s := NewSchedule(DefaultScheduleConfig())

	// below 1M daily volume the maker pays 1bp
	low := s.Amount(FeeExchangeMaker, 1_000_000, true, 0)
	assert.True(t, low.Equal(decimal.NewFromInt(100)), "low %s", low)

	// past 1M the rate steps down to 0.8bp
	mid := s.Amount(FeeExchangeMaker, 1_000_000, true, 2_000_000)
	assert.True(t, mid.Equal(decimal.NewFromInt(80)), "mid %s", mid)

	// past 10M it steps to 0.5bp
	high := s.Amount(FeeExchangeMaker, 1_000_000, true, 20_000_000)
	assert.True(t, high.Equal(decimal.NewFromInt(50)), "high %s", high)
}

func TestMinFeeClamp(t *testing.T) {
	s := NewSchedule(DefaultScheduleConfig())
	// 1bp of 10 is far below the 0.01 floor
	fee := s.Amount(FeeExchangeMaker, 10, true, 0)
	assert.True(t, fee.Equal(decimal.NewFromFloat(0.01)), "fee %s", fee)
}

func TestMaxFeeClamp(t *testing.T) {
	s := NewSchedule(ScheduleConfig{
		Tiers: map[FeeType][]Tier{
			FeeExchangeTaker: {{
				MinVolume: 0,
				TakerRate: decimal.NewFromFloat(0.001),
				MinFee:    decimal.NewFromFloat(0.01),
				MaxFee:    decimal.NewFromInt(5),
			}},
		},
	})
	fee := s.Amount(FeeExchangeTaker, 100_000, false, 0)
	assert.True(t, fee.Equal(decimal.NewFromInt(5)), "fee %s", fee)
}

func TestDailyVolumeAccumulates(t *testing.T) {
	c := newTestCalculator()
	c.FillFees("t", "m", false, 100, 10, 1)
	assert.Equal(t, int64(1_000), c.DailyVolume("t"))
	assert.Equal(t, int64(1_000), c.DailyVolume("m"))

	c.ResetDailyVolume()
	assert.Zero(t, c.DailyVolume("t"))
}

func TestMarginFeesProratedByDays(t *testing.T) {
	c := newTestCalculator()

	fs := c.MarginFees("a", 365_000, 10, 1)
	require.Len(t, fs, 2)

	interest, _ := feeOf(fs, FeeMarginInterest)
	// 8% * 365000 * 10/365 = 800
	assert.InDelta(t, 800.0, interest.Amount.InexactFloat64(), 1e-9)

	borrow, _ := feeOf(fs, FeeBorrowing)
	// 10% * 365000 * 10/365 = 1000
	assert.InDelta(t, 1000.0, borrow.Amount.InexactFloat64(), 1e-9)
}

func TestSumAddsAllFees(t *testing.T) {
	fs := []Fee{
		{Amount: decimal.NewFromInt(1)},
		{Amount: decimal.NewFromFloat(0.5)},
	}
	assert.True(t, Sum(fs).Equal(decimal.NewFromFloat(1.5)))
}
