package fees

import (
	"github.com/shopspring/decimal"
)

// FeeType identifies one layer of the trading-cost stack.
type FeeType int

const (
	FeeExchangeMaker FeeType = iota
	FeeExchangeTaker
	FeeBrokerMaker
	FeeBrokerTaker
	FeeMarginInterest
	FeeBorrowing
	FeeStampTax
	FeeClearing
)

func (t FeeType) String() string {
	switch t {
	case FeeExchangeMaker:
		return "EXCHANGE_MAKER"
	case FeeExchangeTaker:
		return "EXCHANGE_TAKER"
	case FeeBrokerMaker:
		return "BROKER_MAKER"
	case FeeBrokerTaker:
		return "BROKER_TAKER"
	case FeeMarginInterest:
		return "MARGIN_INTEREST"
	case FeeBorrowing:
		return "BORROWING_FEE"
	case FeeStampTax:
		return "STAMP_TAX"
	case FeeClearing:
		return "CLEARING_FEE"
	}
	return "UNKNOWN"
}

// Fee is a single computed cost component. Fees are append-only: once
// attached to a fill they are never mutated.
type Fee struct {
	Type      FeeType         `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Notional  int64           `json:"notional"`
	Maker     bool            `json:"maker"`
	Timestamp int64           `json:"timestamp"`
}

// Sum adds up the amounts of a fee list.
func Sum(fs []Fee) decimal.Decimal {
	total := decimal.Zero
	for _, f := range fs {
		total = total.Add(f.Amount)
	}
	return total
}
