package corporate

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// priceFloor is the minimum adjusted price; adjustments clamp here
// instead of going non-positive.
var priceFloor = decimal.NewFromFloat(0.01)

// defaultBasePrice seeds the walk when no base price was set.
var defaultBasePrice = decimal.New(100, 0)

// Processor maintains a running adjusted reference price per
// instrument, consuming actions as their ex-dates pass. It is the event
// driven counterpart of Adjuster's batch series rewrite.
type Processor struct {
	mu      sync.Mutex
	pending map[string][]Action
	prices  map[string]decimal.Decimal
	logger  *zap.Logger
}

func NewProcessor(logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		pending: make(map[string][]Action),
		prices:  make(map[string]decimal.Decimal),
		logger:  logger,
	}
}

// AddAction queues an action until its ex-date passes.
func (p *Processor) AddAction(action Action) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[action.Instrument] = append(p.pending[action.Instrument], action)
}

// SetBasePrice seeds the adjusted price walk of an instrument.
func (p *Processor) SetBasePrice(instrument string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[instrument] = price
}

// AdjustedPrice returns the current walked price.
func (p *Processor) AdjustedPrice(instrument string) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLocked(instrument)
}

func (p *Processor) currentLocked(instrument string) decimal.Decimal {
	if price, ok := p.prices[instrument]; ok {
		return price
	}
	return defaultBasePrice
}

// Process applies every pending action of the instrument whose ex-date
// is at or before now, in ex-date order, and returns how many applied.
func (p *Processor) Process(instrument string, now int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	queue := p.pending[instrument]
	if len(queue) == 0 {
		return 0
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].ExDate < queue[j].ExDate })

	applied := 0
	remaining := queue[:0]
	for _, action := range queue {
		if action.ExDate > now {
			remaining = append(remaining, action)
			continue
		}
		p.applyLocked(action)
		applied++
	}
	p.pending[instrument] = remaining
	return applied
}

func (p *Processor) applyLocked(action Action) {
	next := WalkPrice(p.currentLocked(action.Instrument), action)
	p.prices[action.Instrument] = next
	p.logger.Debug("corporate action applied",
		zap.String("instrument", action.Instrument),
		zap.String("type", action.Type.String()),
		zap.String("adjusted_price", next.String()))
}

// WalkPrice advances a running reference price over one action, clamped
// at the price floor. Action types without a price effect return the
// input unchanged.
func WalkPrice(price decimal.Decimal, action Action) decimal.Decimal {
	var next decimal.Decimal
	switch action.Type {
	case ActionStockSplit:
		next = price.DivRound(action.Ratio, factorScale)
	case ActionCashDividend, ActionStockDividend:
		next = price.Sub(action.Dividend)
	case ActionRightsIssue:
		next = price.Add(action.Ratio.Mul(action.SubPrice)).
			DivRound(one.Add(action.Ratio), factorScale)
	default:
		return price
	}
	if next.LessThan(priceFloor) {
		next = priceFloor
	}
	return next
}
