package backtest

import (
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stocksanalyses/exchange-core/internal/corporate"
	"github.com/stocksanalyses/exchange-core/internal/fees"
	"github.com/stocksanalyses/exchange-core/internal/matching"
)

// EnhancedEngine layers calendar gating, stochastic latency, size-aware
// slippage, and per-market tiered trading costs on top of the basic
// replay. Orders landing outside a session are deferred to the next
// market open; non-trading and suspension days are skipped entirely.
type EnhancedEngine struct {
	cfg      Config
	engine   *matching.Engine
	calendar *corporate.Calendar
	adjuster *corporate.Adjuster
	slippage *SlippageCalculator
	latency  *LatencySimulator
	costs    *fees.LayeredCosts
	logger   *zap.Logger

	dailyVolumes map[string]int64
	currentPrice decimal.Decimal

	latencySum  float64
	slippageSum float64
	samples     int64
}

// NewEnhancedEngine builds a replay with square-root slippage
// (base 0.1%, cap 1%) and normally distributed latency around the
// configured base. Pass rng for a deterministic replay.
func NewEnhancedEngine(cfg Config, rng *rand.Rand, logger *zap.Logger) *EnhancedEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	calendar := corporate.NewCalendar()
	return &EnhancedEngine{
		cfg:          cfg,
		engine:       matching.NewEngine(cfg.Instrument, nil, nil, logger),
		calendar:     calendar,
		adjuster:     corporate.NewAdjuster(calendar),
		slippage:     NewSlippageCalculator(SlippageSquareRoot, 0.001, 0.01),
		latency:      NewLatencySimulator(LatencyNormal, float64(cfg.LatencyMs), float64(cfg.LatencyMs)*0.2, rng),
		costs:        fees.NewLayeredCosts(),
		logger:       logger,
		dailyVolumes: make(map[string]int64),
		currentPrice: decimal.New(100, 0),
	}
}

// Adjuster exposes the calendar-backed adjuster so callers can rewrite
// candle series with the same action set the replay used.
func (e *EnhancedEngine) Adjuster() *corporate.Adjuster { return e.adjuster }

// Calendar exposes the replay's trading calendar for suspension setup.
func (e *EnhancedEngine) Calendar() *corporate.Calendar { return e.calendar }

// SetBasePrice seeds the reference price.
func (e *EnhancedEngine) SetBasePrice(price decimal.Decimal) {
	e.currentPrice = price
}

// Run replays orders with full simulation. Layered per-market fees are
// appended to each fill and accumulate the market's trailing volume.
func (e *EnhancedEngine) Run(orders []matching.Order, actions []corporate.Action) Result {
	for _, a := range actions {
		e.adjuster.AddAction(a)
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreateTs < orders[j].CreateTs })

	market := fees.MarketForInstrument(e.cfg.Instrument)
	var allFills []matching.Fill
	var allOrders []matching.Order

	for _, order := range orders {
		now := order.CreateTs

		if !e.calendar.IsTradingDay(now) || e.calendar.IsSuspended(e.cfg.Instrument, now) {
			continue
		}
		if !e.calendar.IsMarketOpen(now) {
			now = e.calendar.NextMarketOpen(now)
		}

		for _, a := range e.calendar.ExDividendActions(e.cfg.Instrument, now) {
			e.currentPrice = corporate.WalkPrice(e.currentPrice, a)
		}

		lat := e.latency.Sample()
		e.latencySum += float64(lat)
		delayed := now + lat

		adjusted := e.applySlippage(order, now, market)

		fills, err := e.engine.OnNewOrder(&adjusted, delayed)
		if err != nil && matching.IsRejection(err) {
			e.logger.Debug("replayed order rejected",
				zap.String("order_id", adjusted.ID), zap.Error(err))
		}

		for i := range fills {
			vol := e.dailyVolumes[market]
			layered := e.costs.FillFees(market, fills[i].TakerSide == matching.SideSell,
				fills[i].Price, fills[i].Quantity, vol, delayed)
			fills[i].Fees = append(fills[i].Fees, layered...)
			e.dailyVolumes[market] = vol + fills[i].Quantity
		}

		allFills = append(allFills, fills...)
		allOrders = append(allOrders, adjusted)
		e.samples++
	}

	result := buildResult(e.cfg, allFills, allOrders, e.currentPrice)
	if e.samples > 0 {
		result.AvgLatencyMs = e.latencySum / float64(e.samples)
		result.AvgSlippage = e.slippageSum / float64(e.samples)
	}
	return result
}

func (e *EnhancedEngine) applySlippage(order matching.Order, now int64, market string) matching.Order {
	if order.HasPrice || order.Type != matching.TypeMarket {
		return order
	}
	rate := e.slippage.Rate(order.Quantity, e.dailyVolumes[market], now-order.CreateTs)
	e.slippageSum += rate

	slip := e.currentPrice.Mul(decimal.NewFromFloat(rate))
	price := e.currentPrice.Add(slip)
	if order.Side == matching.SideSell {
		price = e.currentPrice.Sub(slip)
	}
	order.Type = matching.TypeLimit
	order.Price = price.IntPart()
	order.HasPrice = true
	return order
}
