package risk

import "github.com/shopspring/decimal"

// Position is the signed holding of one account in one instrument.
// It is updated exclusively by Manager.ApplyFill.
type Position struct {
	AccountID     string          `json:"account_id"`
	Instrument    string          `json:"instrument"`
	Quantity      int64           `json:"quantity"` // positive long, negative short
	AvgPrice      decimal.Decimal `json:"avg_price"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	LastUpdateMs  int64           `json:"last_update_ms"`
}

// MarketValue marks the position at the given price.
func (p Position) MarketValue(price int64) decimal.Decimal {
	return decimal.NewFromInt(p.Quantity).Mul(decimal.NewFromInt(price))
}

// TotalPnL is realized plus the mark-to-market gain over average cost.
func (p Position) TotalPnL(price int64) decimal.Decimal {
	mark := decimal.NewFromInt(price).Sub(p.AvgPrice).Mul(decimal.NewFromInt(p.Quantity))
	return p.RealizedPnL.Add(mark)
}

// blendAvgPrice recomputes the notional-weighted average entry price
// after a fill of qty at price.
func blendAvgPrice(p Position, price, qty int64) decimal.Decimal {
	if p.Quantity == 0 {
		return decimal.NewFromInt(price)
	}
	held := p.Quantity
	if held < 0 {
		held = -held
	}
	total := decimal.NewFromInt(held).Mul(p.AvgPrice).
		Add(decimal.NewFromInt(qty).Mul(decimal.NewFromInt(price)))
	return total.Div(decimal.NewFromInt(held + qty))
}

// realizedOnFill returns the PnL recognized when a fill reduces or
// reverses an existing position: the closed quantity times the price
// delta from average cost, signed by the direction of the position.
func realizedOnFill(p Position, isBuy bool, price, qty int64) decimal.Decimal {
	if p.Quantity == 0 {
		return decimal.Zero
	}
	closingLong := p.Quantity > 0 && !isBuy
	closingShort := p.Quantity < 0 && isBuy
	if !closingLong && !closingShort {
		return decimal.Zero
	}
	delta := decimal.NewFromInt(price).Sub(p.AvgPrice)
	pnl := decimal.NewFromInt(qty).Mul(delta)
	if closingShort {
		pnl = pnl.Neg()
	}
	return pnl
}
