package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinearSlippageScalesWithQuantity(t *testing.T) {
	c := NewSlippageCalculator(SlippageLinear, 0.001, 1)
	assert.InDelta(t, 0.001, c.Rate(1000, 0, 0), 1e-12)
	assert.InDelta(t, 0.002, c.Rate(2000, 0, 0), 1e-12)
}

func TestSquareRootSlippage(t *testing.T) {
	c := NewSlippageCalculator(SlippageSquareRoot, 0.001, 1)
	assert.InDelta(t, 0.001, c.Rate(1000, 0, 0), 1e-12)
	assert.InDelta(t, 0.002, c.Rate(4000, 0, 0), 1e-12)
}

func TestConstantSlippageIgnoresInputs(t *testing.T) {
	c := NewSlippageCalculator(SlippageConstant, 0.0005, 1)
	assert.InDelta(t, 0.0005, c.Rate(1, 0, 0), 1e-12)
	assert.InDelta(t, 0.0005, c.Rate(1_000_000, 99, 99999), 1e-12)
}

func TestVolumeWeightedSlippage(t *testing.T) {
	c := NewSlippageCalculator(SlippageVolumeWeighted, 0.001, 1)
	// sqrt(quantity/volume) scaling
	assert.InDelta(t, 0.001, c.Rate(100, 100, 0), 1e-12)
	assert.InDelta(t, 0.0005, c.Rate(100, 400, 0), 1e-12)
	// zero volume falls back to the base rate
	assert.InDelta(t, 0.001, c.Rate(100, 0, 0), 1e-12)
}

func TestTimeDecaySlippageRampsToDouble(t *testing.T) {
	c := NewSlippageCalculator(SlippageTimeDecay, 0.001, 1)
	assert.InDelta(t, 0.001, c.Rate(1, 0, 0), 1e-12)
	assert.InDelta(t, 0.0015, c.Rate(1, 0, 30_000), 1e-12)
	assert.InDelta(t, 0.002, c.Rate(1, 0, 60_000), 1e-12)
	// capped at double once a full minute has elapsed
	assert.InDelta(t, 0.002, c.Rate(1, 0, 180_000), 1e-12)
}

func TestSlippageCappedAtMaxRate(t *testing.T) {
	c := NewSlippageCalculator(SlippageLinear, 0.001, 0.01)
	assert.InDelta(t, 0.01, c.Rate(1_000_000, 0, 0), 1e-12)
}
