package risk

import "github.com/shopspring/decimal"

// LimitType identifies one pre-trade risk control.
type LimitType int

const (
	LimitMaxDrawdown LimitType = iota
	LimitSingleLoss
	LimitExposure
	LimitDailyLoss
	LimitPosition
	LimitVolume
)

func (t LimitType) String() string {
	switch t {
	case LimitMaxDrawdown:
		return "MAX_DRAWDOWN"
	case LimitSingleLoss:
		return "SINGLE_LOSS"
	case LimitExposure:
		return "EXPOSURE_LIMIT"
	case LimitDailyLoss:
		return "DAILY_LOSS_LIMIT"
	case LimitPosition:
		return "POSITION_LIMIT"
	case LimitVolume:
		return "VOLUME_LIMIT"
	}
	return "UNKNOWN"
}

// Limit is a per-account control. Instrument is empty for a global
// limit that applies to every instrument the account trades.
type Limit struct {
	AccountID  string          `json:"account_id"`
	Instrument string          `json:"instrument"`
	Type       LimitType       `json:"type"`
	Value      decimal.Decimal `json:"value"`
	WindowMs   int64           `json:"window_ms"`
	Enabled    bool            `json:"enabled"`
}
