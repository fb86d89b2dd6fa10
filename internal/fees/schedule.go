package fees

import (
	"github.com/shopspring/decimal"
)

// Tier is one volume band of a tiered rate table. MaxVolume <= 0 means
// the band is unbounded above; MaxFee of zero means no cap.
type Tier struct {
	MinVolume int64           `yaml:"min_volume" json:"min_volume"`
	MaxVolume int64           `yaml:"max_volume" json:"max_volume"`
	MakerRate decimal.Decimal `yaml:"maker_rate" json:"maker_rate"`
	TakerRate decimal.Decimal `yaml:"taker_rate" json:"taker_rate"`
	MinFee    decimal.Decimal `yaml:"min_fee" json:"min_fee"`
	MaxFee    decimal.Decimal `yaml:"max_fee" json:"max_fee"`
}

func (t Tier) contains(dailyVolume int64) bool {
	if dailyVolume < t.MinVolume {
		return false
	}
	return t.MaxVolume <= 0 || dailyVolume < t.MaxVolume
}

// ScheduleConfig is the explicit rate table a Schedule is built from.
// Defaults are provided by DefaultScheduleConfig; nothing is hardwired
// into the constructor so tests can run with deterministic rates.
type ScheduleConfig struct {
	Tiers      map[FeeType][]Tier          `yaml:"tiers" json:"tiers"`
	FixedRates map[FeeType]decimal.Decimal `yaml:"fixed_rates" json:"fixed_rates"`
}

// DefaultScheduleConfig returns the stock rate table: tiered exchange
// and broker fees keyed by trailing daily volume, fixed rates for
// stamp tax, clearing and margin lending.
func DefaultScheduleConfig() ScheduleConfig {
	rate := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	minFee := rate("0.01")
	return ScheduleConfig{
		Tiers: map[FeeType][]Tier{
			FeeExchangeMaker: {
				{MinVolume: 0, MaxVolume: 1_000_000, MakerRate: rate("0.0001"), TakerRate: rate("0.0001"), MinFee: minFee},
				{MinVolume: 1_000_000, MaxVolume: 10_000_000, MakerRate: rate("0.00008"), TakerRate: rate("0.00008"), MinFee: minFee},
				{MinVolume: 10_000_000, MakerRate: rate("0.00005"), TakerRate: rate("0.00005"), MinFee: minFee},
			},
			FeeExchangeTaker: {
				{MinVolume: 0, MakerRate: rate("0.0002"), TakerRate: rate("0.0002"), MinFee: minFee},
			},
			FeeBrokerMaker: {
				{MinVolume: 0, MaxVolume: 5_000_000, MakerRate: rate("0.0001"), TakerRate: rate("0.0001"), MinFee: minFee},
				{MinVolume: 5_000_000, MakerRate: rate("0.00005"), TakerRate: rate("0.00005"), MinFee: minFee},
			},
			FeeBrokerTaker: {
				{MinVolume: 0, MakerRate: rate("0.0003"), TakerRate: rate("0.0003"), MinFee: minFee},
			},
		},
		FixedRates: map[FeeType]decimal.Decimal{
			FeeMarginInterest: rate("0.08"),
			FeeBorrowing:      rate("0.10"),
			FeeStampTax:       rate("0.001"),
			FeeClearing:       rate("0.00002"),
		},
	}
}

// Schedule resolves a fee amount from a rate table. Fixed-rate fee
// types bypass tier selection entirely.
type Schedule struct {
	tiers      map[FeeType][]Tier
	fixedRates map[FeeType]decimal.Decimal
}

func NewSchedule(cfg ScheduleConfig) *Schedule {
	s := &Schedule{
		tiers:      make(map[FeeType][]Tier, len(cfg.Tiers)),
		fixedRates: make(map[FeeType]decimal.Decimal, len(cfg.FixedRates)),
	}
	for ft, tiers := range cfg.Tiers {
		s.tiers[ft] = append([]Tier(nil), tiers...)
	}
	for ft, r := range cfg.FixedRates {
		s.fixedRates[ft] = r
	}
	return s
}

// AddTier appends a volume band for the given fee type.
func (s *Schedule) AddTier(ft FeeType, tier Tier) {
	s.tiers[ft] = append(s.tiers[ft], tier)
}

// SetFixedRate installs a flat rate for the given fee type.
func (s *Schedule) SetFixedRate(ft FeeType, rate decimal.Decimal) {
	s.fixedRates[ft] = rate
}

// FixedRate returns the flat rate for a fee type, zero when unset.
func (s *Schedule) FixedRate(ft FeeType) decimal.Decimal {
	return s.fixedRates[ft]
}

// Amount computes the fee for a notional. Tier selection picks the
// lowest band whose [MinVolume, MaxVolume) interval contains the
// account's trailing daily volume; the result is clamped to the band's
// [MinFee, MaxFee].
func (s *Schedule) Amount(ft FeeType, notional int64, isMaker bool, dailyVolume int64) decimal.Decimal {
	n := decimal.NewFromInt(notional)
	if rate, ok := s.fixedRates[ft]; ok {
		return n.Mul(rate)
	}
	for _, tier := range s.tiers[ft] {
		if !tier.contains(dailyVolume) {
			continue
		}
		rate := tier.TakerRate
		if isMaker {
			rate = tier.MakerRate
		}
		fee := n.Mul(rate)
		if fee.LessThan(tier.MinFee) {
			fee = tier.MinFee
		}
		if tier.MaxFee.IsPositive() && fee.GreaterThan(tier.MaxFee) {
			fee = tier.MaxFee
		}
		return fee
	}
	return decimal.Zero
}
