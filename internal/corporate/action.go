// Package corporate models corporate actions and their effect on
// historical price series: split/dividend/rights adjustment factors, a
// trading calendar with suspensions, and a running adjusted-price
// processor.
package corporate

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ActionType enumerates the corporate action kinds. Only splits,
// dividends, and rights issues carry price adjustments; the rest are
// recorded but leave prices untouched.
type ActionType int

const (
	ActionStockSplit ActionType = iota
	ActionCashDividend
	ActionStockDividend
	ActionRightsIssue
	ActionBonusIssue
	ActionReverseSplit
	ActionSpinOff
	ActionMerger
	ActionAcquisition
)

func (t ActionType) String() string {
	switch t {
	case ActionStockSplit:
		return "STOCK_SPLIT"
	case ActionCashDividend:
		return "CASH_DIVIDEND"
	case ActionStockDividend:
		return "STOCK_DIVIDEND"
	case ActionRightsIssue:
		return "RIGHTS_ISSUE"
	case ActionBonusIssue:
		return "BONUS_ISSUE"
	case ActionReverseSplit:
		return "REVERSE_SPLIT"
	case ActionSpinOff:
		return "SPIN_OFF"
	case ActionMerger:
		return "MERGER"
	case ActionAcquisition:
		return "ACQUISITION"
	}
	return "UNKNOWN"
}

// Action is one corporate action. Dates are epoch milliseconds; Ratio
// is the split or rights ratio, DividendAmount the per-share payout,
// SubscriptionPrice the rights subscription price.
type Action struct {
	ID          string          `json:"id"`
	Instrument  string          `json:"instrument"`
	Type        ActionType      `json:"type"`
	ExDate      int64           `json:"ex_date"`
	RecordDate  int64           `json:"record_date"`
	PaymentDate int64           `json:"payment_date"`
	Ratio       decimal.Decimal `json:"ratio"`
	Dividend    decimal.Decimal `json:"dividend"`
	SubPrice    decimal.Decimal `json:"sub_price"`
	Description string          `json:"description,omitempty"`
}

// NewStockSplit builds a split action; ratio 2 halves forward-adjusted
// prices.
func NewStockSplit(id, instrument string, exDate int64, ratio decimal.Decimal) Action {
	return Action{
		ID: id, Instrument: instrument, Type: ActionStockSplit,
		ExDate: exDate, RecordDate: exDate, PaymentDate: exDate,
		Ratio:       ratio,
		Description: fmt.Sprintf("stock split %s", ratio),
	}
}

// NewCashDividend builds a cash dividend action.
func NewCashDividend(id, instrument string, exDate, recordDate, paymentDate int64, amount decimal.Decimal) Action {
	return Action{
		ID: id, Instrument: instrument, Type: ActionCashDividend,
		ExDate: exDate, RecordDate: recordDate, PaymentDate: paymentDate,
		Ratio: decimal.New(1, 0), Dividend: amount,
		Description: fmt.Sprintf("cash dividend %s", amount),
	}
}

// NewRightsIssue builds a rights issue action; ratio 0.1 means one new
// share per ten held at subPrice.
func NewRightsIssue(id, instrument string, exDate, recordDate int64, ratio, subPrice decimal.Decimal) Action {
	return Action{
		ID: id, Instrument: instrument, Type: ActionRightsIssue,
		ExDate: exDate, RecordDate: recordDate, PaymentDate: exDate,
		Ratio: ratio, SubPrice: subPrice,
		Description: fmt.Sprintf("rights issue %s at %s", ratio, subPrice),
	}
}

// Candle is one OHLCV bar with a millisecond timestamp. Adjustments
// touch prices only, never volume.
type Candle struct {
	Timestamp int64           `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
}
