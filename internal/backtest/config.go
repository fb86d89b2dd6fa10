package backtest

import "time"

// Config is the explicit replay configuration. Every field is set by
// the caller; DefaultConfig gives the conventional starting point.
type Config struct {
	Instrument     string  `json:"instrument" yaml:"instrument"`
	StartTime      int64   `json:"start_time" yaml:"start_time"`
	EndTime        int64   `json:"end_time" yaml:"end_time"`
	LatencyMs      int64   `json:"latency_ms" yaml:"latency_ms"`
	SlippageRate   float64 `json:"slippage_rate" yaml:"slippage_rate"`
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
	InitialCapital int64   `json:"initial_capital" yaml:"initial_capital"`
}

// DefaultConfig covers the trailing day with 50ms latency, 0.1%
// slippage, 0.03% commission, and one million of starting capital.
func DefaultConfig(instrument string) Config {
	now := time.Now().UnixMilli()
	return Config{
		Instrument:     instrument,
		StartTime:      now - 24*time.Hour.Milliseconds(),
		EndTime:        now,
		LatencyMs:      50,
		SlippageRate:   0.001,
		CommissionRate: 0.0003,
		InitialCapital: 1_000_000,
	}
}
