package backtest

import "math"

// SlippageModel selects how execution slippage scales with order size,
// market volume, and waiting time.
type SlippageModel int

const (
	SlippageLinear SlippageModel = iota
	SlippageSquareRoot
	SlippageConstant
	SlippageVolumeWeighted
	SlippageTimeDecay
)

func (m SlippageModel) String() string {
	switch m {
	case SlippageSquareRoot:
		return "SQUARE_ROOT"
	case SlippageConstant:
		return "CONSTANT"
	case SlippageVolumeWeighted:
		return "VOLUME_WEIGHTED"
	case SlippageTimeDecay:
		return "TIME_DECAY"
	}
	return "LINEAR"
}

// SlippageCalculator produces a per-order slippage rate, always capped
// at maxRate.
type SlippageCalculator struct {
	model    SlippageModel
	baseRate float64
	maxRate  float64
}

func NewSlippageCalculator(model SlippageModel, baseRate, maxRate float64) *SlippageCalculator {
	return &SlippageCalculator{model: model, baseRate: baseRate, maxRate: maxRate}
}

// Rate computes the slippage fraction for an order of quantity lots,
// given the session's traded volume and the order's waiting time.
func (c *SlippageCalculator) Rate(quantity, totalVolume, elapsedMs int64) float64 {
	var slippage float64
	switch c.model {
	case SlippageLinear:
		// base rate per thousand lots
		slippage = c.baseRate * float64(quantity) / 1000.0

	case SlippageSquareRoot:
		slippage = c.baseRate * math.Sqrt(float64(quantity)/1000.0)

	case SlippageConstant:
		slippage = c.baseRate

	case SlippageVolumeWeighted:
		if totalVolume > 0 {
			slippage = c.baseRate * math.Sqrt(float64(quantity)/float64(totalVolume))
		} else {
			slippage = c.baseRate
		}

	case SlippageTimeDecay:
		// ramps to double the base rate over one minute
		timeFactor := math.Min(1.0, float64(elapsedMs)/60000.0)
		slippage = c.baseRate * (1 + timeFactor)
	}
	return math.Min(slippage, c.maxRate)
}
