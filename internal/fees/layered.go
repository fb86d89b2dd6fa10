package fees

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Market codes used by the layered cost model.
const (
	MarketCN = "A_STOCK"
	MarketHK = "HK_STOCK"
	MarketUS = "US_STOCK"
)

// MarketForInstrument infers the market from an instrument suffix:
// .SH/.SZ list on the mainland exchanges, .HK on Hong Kong, anything
// else is treated as a US listing.
func MarketForInstrument(instrument string) string {
	switch {
	case strings.HasSuffix(instrument, ".SH") || strings.HasSuffix(instrument, ".SZ"):
		return MarketCN
	case strings.HasSuffix(instrument, ".HK"):
		return MarketHK
	default:
		return MarketUS
	}
}

// LayeredCosts holds market-specific schedules for each cost layer:
// exchange fee, broker fee, stamp duty (sell side only, zero for US
// equities), clearing fee and margin lending rates.
type LayeredCosts struct {
	exchange map[string]*Schedule
	broker   map[string]*Schedule
	stamp    map[string]decimal.Decimal
	clearing map[string]decimal.Decimal
	margin   map[string]decimal.Decimal
}

// NewLayeredCosts builds the default per-market rate stack.
func NewLayeredCosts() *LayeredCosts {
	rate := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	tiered := func(tiers ...Tier) *Schedule {
		return NewSchedule(ScheduleConfig{Tiers: map[FeeType][]Tier{FeeExchangeMaker: tiers}})
	}
	flat := func(r string) *Schedule {
		return tiered(Tier{MinVolume: 0, MakerRate: rate(r), TakerRate: rate(r)})
	}
	return &LayeredCosts{
		exchange: map[string]*Schedule{
			MarketCN: tiered(
				Tier{MinVolume: 0, MaxVolume: 1_000_000, MakerRate: rate("0.0003"), TakerRate: rate("0.0003")},
				Tier{MinVolume: 1_000_000, MaxVolume: 5_000_000, MakerRate: rate("0.0002"), TakerRate: rate("0.0002")},
				Tier{MinVolume: 5_000_000, MakerRate: rate("0.0001"), TakerRate: rate("0.0001")},
			),
			MarketHK: flat("0.0005"),
			MarketUS: flat("0.0001"),
		},
		broker: map[string]*Schedule{
			MarketCN: flat("0.0003"),
			MarketHK: flat("0.0008"),
			MarketUS: flat("0.0005"),
		},
		stamp: map[string]decimal.Decimal{
			MarketCN: rate("0.001"),
			MarketHK: rate("0.001"),
			MarketUS: decimal.Zero,
		},
		clearing: map[string]decimal.Decimal{
			MarketCN: rate("0.00002"),
			MarketHK: rate("0.00005"),
			MarketUS: rate("0.00001"),
		},
		margin: map[string]decimal.Decimal{
			MarketCN: rate("0.08"),
			MarketHK: rate("0.06"),
			MarketUS: rate("0.04"),
		},
	}
}

// FillFees computes the layered cost list for one fill in the given
// market using the account's trailing daily volume for tier selection.
func (lc *LayeredCosts) FillFees(market string, takerIsSell bool, price, quantity, dailyVolume, nowMs int64) []Fee {
	notional := price * quantity
	out := make([]Fee, 0, 4)

	if sched, ok := lc.exchange[market]; ok {
		out = append(out, Fee{
			Type:      FeeExchangeMaker,
			Amount:    sched.Amount(FeeExchangeMaker, notional, true, dailyVolume),
			Notional:  notional,
			Maker:     true,
			Timestamp: nowMs,
		})
	}
	if sched, ok := lc.broker[market]; ok {
		out = append(out, Fee{
			Type:      FeeBrokerMaker,
			Amount:    sched.Amount(FeeExchangeMaker, notional, true, dailyVolume),
			Notional:  notional,
			Maker:     true,
			Timestamp: nowMs,
		})
	}
	if takerIsSell {
		if r, ok := lc.stamp[market]; ok && r.IsPositive() {
			out = append(out, Fee{
				Type:      FeeStampTax,
				Amount:    decimal.NewFromInt(notional).Mul(r),
				Notional:  notional,
				Timestamp: nowMs,
			})
		}
	}
	if r, ok := lc.clearing[market]; ok && r.IsPositive() {
		out = append(out, Fee{
			Type:      FeeClearing,
			Amount:    decimal.NewFromInt(notional).Mul(r),
			Notional:  notional,
			Timestamp: nowMs,
		})
	}
	return out
}

// MarginInterest prices borrowed cash at the market's annualized rate.
func (lc *LayeredCosts) MarginInterest(market string, borrowed decimal.Decimal, days int) decimal.Decimal {
	r, ok := lc.margin[market]
	if !ok {
		return decimal.Zero
	}
	return borrowed.Mul(r).Mul(decimal.NewFromInt(int64(days))).Div(decimal.NewFromInt(365))
}

// BorrowFee prices borrowed shares; the borrow rate is half the
// market's margin rate.
func (lc *LayeredCosts) BorrowFee(market string, borrowedShares decimal.Decimal, days int) decimal.Decimal {
	r, ok := lc.margin[market]
	if !ok {
		return decimal.Zero
	}
	half := r.Div(decimal.NewFromInt(2))
	return borrowedShares.Mul(half).Mul(decimal.NewFromInt(int64(days))).Div(decimal.NewFromInt(365))
}

// SetExchangeSchedule overrides the exchange schedule for a market.
func (lc *LayeredCosts) SetExchangeSchedule(market string, s *Schedule) { lc.exchange[market] = s }

// SetBrokerSchedule overrides the broker schedule for a market.
func (lc *LayeredCosts) SetBrokerSchedule(market string, s *Schedule) { lc.broker[market] = s }

// SetStampRate overrides the stamp duty rate for a market.
func (lc *LayeredCosts) SetStampRate(market string, r decimal.Decimal) { lc.stamp[market] = r }

// SetClearingRate overrides the clearing rate for a market.
func (lc *LayeredCosts) SetClearingRate(market string, r decimal.Decimal) { lc.clearing[market] = r }

// SetMarginRate overrides the annualized margin rate for a market.
func (lc *LayeredCosts) SetMarginRate(market string, r decimal.Decimal) { lc.margin[market] = r }
