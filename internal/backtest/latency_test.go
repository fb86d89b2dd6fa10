package backtest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedLatencyReturnsBase(t *testing.T) {
	s := NewLatencySimulator(LatencyFixed, 50, 0, rand.New(rand.NewSource(1)))
	for i := 0; i < 10; i++ {
		assert.Equal(t, int64(50), s.Sample())
	}
}

func TestNormalLatencyWithoutJitterIsBase(t *testing.T) {
	s := NewLatencySimulator(LatencyNormal, 50, 0, rand.New(rand.NewSource(1)))
	assert.Equal(t, int64(50), s.Sample())
}

func TestLatencyNeverNegative(t *testing.T) {
	models := []LatencyModel{
		LatencyFixed, LatencyNormal, LatencyExponential,
		LatencyBurst, LatencyNetworkDependent,
	}
	for _, m := range models {
		s := NewLatencySimulator(m, 10, 50, rand.New(rand.NewSource(7)))
		for i := 0; i < 1000; i++ {
			assert.GreaterOrEqual(t, s.Sample(), int64(0), "model %s", m)
		}
	}
}

func TestSeededLatencyIsDeterministic(t *testing.T) {
	a := NewLatencySimulator(LatencyBurst, 20, 5, rand.New(rand.NewSource(42)))
	b := NewLatencySimulator(LatencyBurst, 20, 5, rand.New(rand.NewSource(42)))
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Sample(), b.Sample())
	}
}

func TestExponentialLatencyMeanNearBase(t *testing.T) {
	s := NewLatencySimulator(LatencyExponential, 100, 0, rand.New(rand.NewSource(3)))
	var sum int64
	const n = 20_000
	for i := 0; i < n; i++ {
		sum += s.Sample()
	}
	mean := float64(sum) / n
	assert.InDelta(t, 100, mean, 10)
}
