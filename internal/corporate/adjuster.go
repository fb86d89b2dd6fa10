package corporate

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// AdjustType selects the price adjustment direction.
type AdjustType int

const (
	AdjustNone AdjustType = iota
	AdjustForward
	AdjustBack
)

func (t AdjustType) String() string {
	switch t {
	case AdjustForward:
		return "FORWARD"
	case AdjustBack:
		return "BACK"
	}
	return "NONE"
}

const factorScale = 10

var (
	one     = decimal.New(1, 0)
	hundred = decimal.New(100, 0)
)

// Adjuster rewrites candle series for splits, cash dividends, and
// rights issues. A cumulative multiplicative factor is carried forward
// chronologically and applied to OHLC only; volume is never touched.
// Dividend and rights adjustments assume the base-100 price scale of
// the fee-free reference series.
type Adjuster struct {
	mu       sync.RWMutex
	calendar *Calendar
	actions  map[string][]Action
}

func NewAdjuster(calendar *Calendar) *Adjuster {
	return &Adjuster{
		calendar: calendar,
		actions:  make(map[string][]Action),
	}
}

// AddAction registers an action for adjustment and ex-date lookups.
func (a *Adjuster) AddAction(action Action) {
	a.mu.Lock()
	a.actions[action.Instrument] = append(a.actions[action.Instrument], action)
	a.mu.Unlock()
	if a.calendar != nil {
		a.calendar.AddExDividendDate(action)
	}
}

// Adjust returns a copy of raw with the cumulative factor applied to
// every candle dated on or after each action's ex-date. Candles must be
// in chronological order. AdjustNone returns raw unchanged.
func (a *Adjuster) Adjust(instrument string, raw []Candle, typ AdjustType) []Candle {
	if typ == AdjustNone || len(raw) == 0 {
		return raw
	}

	a.mu.RLock()
	actions := make([]Action, len(a.actions[instrument]))
	copy(actions, a.actions[instrument])
	a.mu.RUnlock()
	sort.Slice(actions, func(i, j int) bool { return actions[i].ExDate < actions[j].ExDate })

	adjusted := make([]Candle, 0, len(raw))
	factor := one
	next := 0
	for _, candle := range raw {
		for next < len(actions) && actions[next].ExDate <= candle.Timestamp {
			factor = applyFactor(factor, actions[next], typ)
			next++
		}
		out := candle
		out.Open = candle.Open.Mul(factor)
		out.High = candle.High.Mul(factor)
		out.Low = candle.Low.Mul(factor)
		out.Close = candle.Close.Mul(factor)
		adjusted = append(adjusted, out)
	}
	return adjusted
}

// applyFactor folds one action into the running factor.
//
// Split ratio r: forward divides by r, back multiplies by r.
// Cash dividend d on the base-100 scale: forward multiplies by
// (1 + d/100), back by (1 - d/100).
// Rights issue ratio r at price p: (1 + r*p/100) and (1 + r) composed
// in opposite orders per direction.
// Remaining action types do not adjust prices.
func applyFactor(factor decimal.Decimal, action Action, typ AdjustType) decimal.Decimal {
	switch action.Type {
	case ActionStockSplit:
		if typ == AdjustForward {
			return factor.DivRound(action.Ratio, factorScale)
		}
		return factor.Mul(action.Ratio)

	case ActionCashDividend:
		adj := action.Dividend.DivRound(hundred, factorScale)
		if typ == AdjustForward {
			return factor.Mul(one.Add(adj))
		}
		return factor.Mul(one.Sub(adj))

	case ActionRightsIssue:
		adj := action.Ratio.Mul(action.SubPrice).DivRound(hundred, factorScale)
		if typ == AdjustForward {
			return factor.Mul(one.Add(adj)).DivRound(one.Add(action.Ratio), factorScale)
		}
		return factor.Mul(one.Add(action.Ratio)).DivRound(one.Add(adj), factorScale)
	}
	return factor
}
