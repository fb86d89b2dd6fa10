package backtest

import (
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stocksanalyses/exchange-core/internal/corporate"
	"github.com/stocksanalyses/exchange-core/internal/matching"
)

// Engine replays a time-sorted order stream through a dedicated
// matching engine with fixed latency and constant-rate slippage.
// Corporate actions feed a running adjusted reference price that market
// orders are priced against.
type Engine struct {
	cfg       Config
	engine    *matching.Engine
	processor *corporate.Processor
	logger    *zap.Logger

	currentPrice decimal.Decimal
}

func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:          cfg,
		engine:       matching.NewEngine(cfg.Instrument, nil, nil, logger),
		processor:    corporate.NewProcessor(logger),
		logger:       logger,
		currentPrice: decimal.New(100, 0),
	}
}

// SetBasePrice seeds the reference price both engines walk from.
func (e *Engine) SetBasePrice(price decimal.Decimal) {
	e.processor.SetBasePrice(e.cfg.Instrument, price)
	e.currentPrice = price
}

// Run replays orders in creation-time order. Each order is submitted at
// its creation time plus the configured latency; market orders convert
// to limits at the slippage-adjusted reference price. Rejections are
// recorded on the order and do not stop the replay.
func (e *Engine) Run(orders []matching.Order, actions []corporate.Action) Result {
	for _, a := range actions {
		e.processor.AddAction(a)
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreateTs < orders[j].CreateTs })

	var allFills []matching.Fill
	allOrders := make([]matching.Order, 0, len(orders))

	for _, order := range orders {
		now := order.CreateTs

		if e.processor.Process(e.cfg.Instrument, now) > 0 {
			e.currentPrice = e.processor.AdjustedPrice(e.cfg.Instrument)
		}

		delayed := now + e.cfg.LatencyMs
		adjusted := e.applySlippage(order)

		fills, err := e.engine.OnNewOrder(&adjusted, delayed)
		if err != nil && matching.IsRejection(err) {
			e.logger.Debug("replayed order rejected",
				zap.String("order_id", adjusted.ID), zap.Error(err))
		}
		allFills = append(allFills, fills...)
		allOrders = append(allOrders, adjusted)
	}

	return buildResult(e.cfg, allFills, allOrders, e.currentPrice)
}

// applySlippage converts a market order to a limit at the reference
// price shifted against the taker by the configured rate.
func (e *Engine) applySlippage(order matching.Order) matching.Order {
	if order.HasPrice || order.Type != matching.TypeMarket {
		return order
	}
	slip := e.currentPrice.Mul(decimal.NewFromFloat(e.cfg.SlippageRate))
	price := e.currentPrice.Add(slip)
	if order.Side == matching.SideSell {
		price = e.currentPrice.Sub(slip)
	}
	order.Type = matching.TypeLimit
	order.Price = price.IntPart()
	order.HasPrice = true
	return order
}
