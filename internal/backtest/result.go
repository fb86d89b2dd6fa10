package backtest

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/stocksanalyses/exchange-core/internal/fees"
	"github.com/stocksanalyses/exchange-core/internal/matching"
)

// Result aggregates one replay. PnL treats buys as cash out and sells
// as cash in over fill notionals. Sharpe is the unannualized mean over
// stddev of consecutive fill-price returns; Sortino is kept at zero as
// a documented approximation of the same simplified return series.
type Result struct {
	Instrument  string          `json:"instrument"`
	StartTime   int64           `json:"start_time"`
	EndTime     int64           `json:"end_time"`
	TotalTrades int64           `json:"total_trades"`
	TotalPnL    decimal.Decimal `json:"total_pnl"`
	TotalFees   decimal.Decimal `json:"total_fees"`
	MaxDrawdown float64         `json:"max_drawdown"`
	Sharpe      float64         `json:"sharpe"`
	Sortino     float64         `json:"sortino"`
	WinRate     float64         `json:"win_rate"`

	// Enhanced replays also report the realized simulation averages.
	AvgLatencyMs float64 `json:"avg_latency_ms,omitempty"`
	AvgSlippage  float64 `json:"avg_slippage,omitempty"`

	Fills  []matching.Fill  `json:"fills"`
	Orders []matching.Order `json:"orders"`
}

func buildResult(cfg Config, allFills []matching.Fill, allOrders []matching.Order, lastPrice decimal.Decimal) Result {
	return Result{
		Instrument:  cfg.Instrument,
		StartTime:   cfg.StartTime,
		EndTime:     cfg.EndTime,
		TotalTrades: int64(len(allFills)),
		TotalPnL:    totalPnL(allFills),
		TotalFees:   totalFees(allFills),
		MaxDrawdown: maxDrawdown(allFills, lastPrice),
		Sharpe:      sharpe(allFills),
		Sortino:     0,
		WinRate:     winRate(allFills),
		Fills:       allFills,
		Orders:      allOrders,
	}
}

// totalPnL nets fill notionals: taker buys spend, taker sells receive.
func totalPnL(fills []matching.Fill) decimal.Decimal {
	pnl := decimal.Zero
	for _, f := range fills {
		notional := decimal.NewFromInt(f.Price).Mul(decimal.NewFromInt(f.Quantity))
		if f.TakerSide == matching.SideBuy {
			pnl = pnl.Sub(notional)
		} else {
			pnl = pnl.Add(notional)
		}
	}
	return pnl
}

func totalFees(fills []matching.Fill) decimal.Decimal {
	total := decimal.Zero
	for _, f := range fills {
		total = total.Add(fees.Sum(f.Fees))
	}
	return total
}

// maxDrawdown is the largest peak-to-trough decline of the fill-price
// path, seeded with the reference price.
func maxDrawdown(fills []matching.Fill, lastPrice decimal.Decimal) float64 {
	peak := lastPrice.InexactFloat64()
	var worst float64
	for _, f := range fills {
		price := float64(f.Price)
		if price > peak {
			peak = price
		} else if peak > 0 {
			if dd := (peak - price) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpe is mean/stddev of consecutive fill-price returns with a zero
// risk-free rate, deliberately unannualized.
func sharpe(fills []matching.Fill) float64 {
	returns := priceReturns(fills)
	if len(returns) == 0 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std
}

// winRate is the share of fills priced above their predecessor.
func winRate(fills []matching.Fill) float64 {
	if len(fills) < 2 {
		return 0
	}
	wins := 0
	for i := 1; i < len(fills); i++ {
		if fills[i].Price > fills[i-1].Price {
			wins++
		}
	}
	return float64(wins) / float64(len(fills)-1)
}

func priceReturns(fills []matching.Fill) []float64 {
	if len(fills) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(fills)-1)
	for i := 1; i < len(fills); i++ {
		prev := float64(fills[i-1].Price)
		if prev == 0 {
			continue
		}
		returns = append(returns, (float64(fills[i].Price)-prev)/prev)
	}
	return returns
}
