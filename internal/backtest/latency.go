// Package backtest replays historical orders through a matching engine
// with simulated latency, slippage, trading calendars, and layered
// costs, producing aggregate performance metrics.
package backtest

import (
	"math"
	"math/rand"
	"time"
)

// LatencyModel selects the submission delay distribution.
type LatencyModel int

const (
	LatencyFixed LatencyModel = iota
	LatencyNormal
	LatencyExponential
	LatencyBurst
	LatencyNetworkDependent
)

func (m LatencyModel) String() string {
	switch m {
	case LatencyNormal:
		return "NORMAL"
	case LatencyExponential:
		return "EXPONENTIAL"
	case LatencyBurst:
		return "BURST"
	case LatencyNetworkDependent:
		return "NETWORK_DEPENDENT"
	}
	return "FIXED"
}

// LatencySimulator draws per-order submission delays. The generator is
// injectable so replays can be made deterministic.
type LatencySimulator struct {
	model  LatencyModel
	baseMs float64
	jitter float64
	rng    *rand.Rand
}

func NewLatencySimulator(model LatencyModel, baseMs, jitterMs float64, rng *rand.Rand) *LatencySimulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &LatencySimulator{model: model, baseMs: baseMs, jitter: jitterMs, rng: rng}
}

// Sample returns one delay in milliseconds, never negative.
func (s *LatencySimulator) Sample() int64 {
	latency := s.baseMs
	switch s.model {
	case LatencyFixed:
		latency = s.baseMs

	case LatencyNormal:
		latency = s.baseMs + s.rng.NormFloat64()*s.jitter

	case LatencyExponential:
		latency = -math.Log(1-s.rng.Float64()) * s.baseMs

	case LatencyBurst:
		// 10% of samples land in a 5x burst tail.
		if s.rng.Float64() < 0.1 {
			latency = s.baseMs*5 + s.rng.NormFloat64()*s.jitter*2
		} else {
			latency = s.baseMs + s.rng.NormFloat64()*s.jitter
		}

	case LatencyNetworkDependent:
		load := s.rng.Float64()
		switch {
		case load > 0.8:
			latency = s.baseMs*3 + s.rng.NormFloat64()*s.jitter*2
		case load > 0.6:
			latency = s.baseMs*1.5 + s.rng.NormFloat64()*s.jitter
		default:
			latency = s.baseMs + s.rng.NormFloat64()*s.jitter*0.5
		}
	}
	if latency < 0 {
		return 0
	}
	return int64(latency)
}
