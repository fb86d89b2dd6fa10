package fees

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Calculator computes the full fee list for a fill and tracks each
// account's trailing daily volume for tier selection. One instance is
// owned per matching engine; methods are safe for the occasional
// cross-goroutine margin-fee query.
type Calculator struct {
	mu          sync.Mutex
	schedule    *Schedule
	dailyVolume map[string]int64 // accountID -> traded notional today
}

func NewCalculator(schedule *Schedule) *Calculator {
	return &Calculator{
		schedule:    schedule,
		dailyVolume: make(map[string]int64),
	}
}

// FillFees computes the additive fee list for one matched slice.
// Exchange and broker fees are produced for both maker and taker;
// stamp tax applies only when the taker side is a sell; the clearing
// fee is flat. Daily volumes are bumped before tier selection so a
// large fill immediately moves the account up the table.
func (c *Calculator) FillFees(takerAccount, makerAccount string, takerIsSell bool, price, quantity, nowMs int64) []Fee {
	c.mu.Lock()
	defer c.mu.Unlock()

	notional := price * quantity
	c.bumpVolume(takerAccount, notional)
	c.bumpVolume(makerAccount, notional)

	out := make([]Fee, 0, 6)
	if takerIsSell {
		out = append(out, Fee{
			Type:      FeeStampTax,
			Amount:    c.schedule.Amount(FeeStampTax, notional, false, 0),
			Notional:  notional,
			Timestamp: nowMs,
		})
	}
	out = append(out,
		Fee{Type: FeeClearing, Amount: c.schedule.Amount(FeeClearing, notional, false, 0), Notional: notional, Timestamp: nowMs},
		Fee{Type: FeeExchangeMaker, Amount: c.schedule.Amount(FeeExchangeMaker, notional, true, c.volume(makerAccount)), Notional: notional, Maker: true, Timestamp: nowMs},
		Fee{Type: FeeExchangeTaker, Amount: c.schedule.Amount(FeeExchangeTaker, notional, false, c.volume(takerAccount)), Notional: notional, Timestamp: nowMs},
		Fee{Type: FeeBrokerMaker, Amount: c.schedule.Amount(FeeBrokerMaker, notional, true, c.volume(makerAccount)), Notional: notional, Maker: true, Timestamp: nowMs},
		Fee{Type: FeeBrokerTaker, Amount: c.schedule.Amount(FeeBrokerTaker, notional, false, c.volume(takerAccount)), Notional: notional, Timestamp: nowMs},
	)
	return out
}

// MarginFees prices a financing position: annualized margin interest
// and borrow fee prorated by days/365.
func (c *Calculator) MarginFees(accountID string, notional int64, days int, nowMs int64) []Fee {
	c.mu.Lock()
	defer c.mu.Unlock()

	proration := decimal.NewFromInt(int64(days)).Div(decimal.NewFromInt(365))
	interest := c.schedule.Amount(FeeMarginInterest, notional, false, 0).Mul(proration)
	borrow := c.schedule.Amount(FeeBorrowing, notional, false, 0).Mul(proration)
	return []Fee{
		{Type: FeeMarginInterest, Amount: interest, Notional: notional, Timestamp: nowMs},
		{Type: FeeBorrowing, Amount: borrow, Notional: notional, Timestamp: nowMs},
	}
}

// DailyVolume reports an account's trailing traded notional.
func (c *Calculator) DailyVolume(accountID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume(accountID)
}

// ResetDailyVolume clears the trailing volume table at day rollover.
func (c *Calculator) ResetDailyVolume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dailyVolume = make(map[string]int64)
}

func (c *Calculator) bumpVolume(accountID string, notional int64) {
	if accountID != "" {
		c.dailyVolume[accountID] += notional
	}
}

func (c *Calculator) volume(accountID string) int64 {
	if accountID == "" {
		return 0
	}
	return c.dailyVolume[accountID]
}
