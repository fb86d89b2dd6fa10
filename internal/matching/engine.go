package matching

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/stocksanalyses/exchange-core/internal/risk"
)

// Rejection sentinels. These are expected outcomes of a well-formed
// submission; callers distinguish them from programmer errors with
// IsRejection.
var (
	ErrSelfTrade  = errors.New("matching: self-trade prevented")
	ErrUnfillable = errors.New("matching: fill-or-kill order cannot be fully filled")

	ErrOrderNotFound = errors.New("matching: order not found")
)

// IsRejection reports whether err is a business rejection rather than a
// usage error.
func IsRejection(err error) bool {
	return errors.Is(err, ErrSelfTrade) ||
		errors.Is(err, ErrUnfillable) ||
		errors.Is(err, risk.ErrCircuitOpen) ||
		errors.Is(err, risk.ErrPriceLimit) ||
		errors.Is(err, risk.ErrLimitBreached)
}

// Engine runs the full submission pipeline for one instrument:
// risk pre-check, self-trade prevention, trigger parking, fill-or-kill
// depth check, matching, then time-in-force handling of the remainder.
// It is not safe for concurrent use; the owning actor serializes calls.
type Engine struct {
	instrument string
	logger     *zap.Logger

	arena    *Arena
	book     *OrderBook
	triggers *triggerPool

	// invisible holds same-bar-hidden orders until their bar opens.
	invisible []OrderRef

	risk    *risk.Manager
	feeCalc FeeComputer

	lastPrice int64
	hasLast   bool
}

// NewEngine wires an engine for one instrument. riskMgr and feeCalc may
// be nil, disabling risk checks and fee attribution respectively.
func NewEngine(instrument string, riskMgr *risk.Manager, feeCalc FeeComputer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	arena := NewArena()
	return &Engine{
		instrument: instrument,
		logger:     logger.With(zap.String("instrument", instrument)),
		arena:      arena,
		book:       NewOrderBook(instrument, arena, feeCalc),
		triggers:   newTriggerPool(),
		risk:       riskMgr,
		feeCalc:    feeCalc,
	}
}

// Instrument returns the instrument this engine matches.
func (e *Engine) Instrument() string { return e.instrument }

// LastPrice returns the most recent trade or tick price.
func (e *Engine) LastPrice() (int64, bool) { return e.lastPrice, e.hasLast }

// OnNewOrder submits an order. The passed order is updated with the
// final state of the submission; fills are returned in execution order.
// A rejection error leaves the order in StateRejected.
func (e *Engine) OnNewOrder(o *Order, now int64) ([]Fill, error) {
	if o.Instrument != e.instrument {
		return nil, fmt.Errorf("matching: order %s is for %s, engine matches %s", o.ID, o.Instrument, e.instrument)
	}
	if o.Quantity <= 0 {
		return nil, fmt.Errorf("matching: order %s has non-positive quantity %d", o.ID, o.Quantity)
	}
	if o.Type == TypeIceberg && o.DisplayQty <= 0 {
		return nil, fmt.Errorf("matching: iceberg order %s has non-positive display quantity %d", o.ID, o.DisplayQty)
	}
	if _, dup := e.arena.Lookup(o.ID); dup {
		return nil, fmt.Errorf("matching: order %s already live", o.ID)
	}

	ref := e.arena.Alloc(*o)

	// Same-bar-hidden orders skip the pipeline entirely until their bar
	// opens; risk is evaluated at injection time.
	if o.Visibility == HiddenSameBar {
		e.invisible = append(e.invisible, ref)
		live := e.arena.Get(ref)
		live.UpdateTs = now
		*o = *live
		e.logger.Debug("order parked until bar open",
			zap.String("order_id", o.ID), zap.Int64("valid_from_bar", o.ValidFromBar))
		return nil, nil
	}

	fills, err := e.process(ref, now)
	live := e.arena.Get(ref)
	*o = *live
	if live.State.Terminal() {
		e.arena.Release(ref)
	}
	return fills, err
}

// process runs the pipeline on an already-allocated order. It is shared
// by fresh submissions, trigger activations, and bar-open injections.
func (e *Engine) process(ref OrderRef, now int64) ([]Fill, error) {
	o := e.arena.Get(ref)

	if e.risk != nil {
		intent := risk.OrderIntent{
			AccountID:  o.AccountID,
			Instrument: o.Instrument,
			IsBuy:      o.Side == SideBuy,
			IsMarket:   !o.HasPrice,
			HasPrice:   o.HasPrice,
			Price:      o.Price,
			Quantity:   o.Quantity,
		}
		if err := e.risk.CheckOrder(intent, e.lastPrice, now); err != nil {
			e.reject(o, now, err)
			return nil, err
		}
	}

	if e.selfTradeBlocked(o) {
		e.reject(o, now, ErrSelfTrade)
		return nil, ErrSelfTrade
	}

	if o.Type == TypeStop || o.Type == TypeTakeProfit {
		e.triggers.add(ref, o.Side, o.StopPrice)
		o.UpdateTs = now
		e.logger.Debug("order parked in trigger pool",
			zap.String("order_id", o.ID), zap.Int64("stop_price", o.StopPrice))
		return nil, nil
	}

	if o.TIF == TifFOK && !e.book.CanFullyFill(o, e.lastPrice) {
		e.reject(o, now, ErrUnfillable)
		return nil, ErrUnfillable
	}

	var fills []Fill
	if o.HasPrice {
		fills = e.book.MatchLimitCrossing(o, now)
	} else {
		fills = e.book.MatchMarket(o, now)
	}
	e.applyFills(fills, now)

	e.finalize(ref, now)
	return fills, nil
}

// finalize applies the time-in-force policy to the remainder. Market
// orders never rest regardless of policy.
func (e *Engine) finalize(ref OrderRef, now int64) {
	o := e.arena.Get(ref)
	switch {
	case o.Remaining == 0:
		o.State = StateFilled
	case o.TIF == TifFOK:
		// an unfilled fill-or-kill remainder is a rejection, never a cancel
		o.State = StateRejected
	case o.TIF == TifIOC || !o.HasPrice:
		o.State = StateCancelled
	default:
		if o.Remaining < o.Quantity {
			e.book.EnqueuePassive(ref, now)
			o.State = StatePartiallyFilled
			o.UpdateTs = now
			return
		}
		e.book.EnqueuePassive(ref, now)
	}
	o.UpdateTs = now
}

func (e *Engine) reject(o *Order, now int64, err error) {
	o.State = StateRejected
	o.UpdateTs = now
	e.logger.Debug("order rejected",
		zap.String("order_id", o.ID), zap.Error(err))
}

// selfTradeBlocked reports whether the order would cross a best opposing
// level held entirely by its own account.
func (e *Engine) selfTradeBlocked(o *Order) bool {
	if o.AccountID == "" {
		return false
	}
	lvl, ok := e.book.bestLevel(o.Side.Opposite())
	if !ok || len(lvl.queue) == 0 {
		return false
	}
	if o.HasPrice && !crosses(o.Side, o.Price, lvl.price) {
		return false
	}
	for _, ref := range lvl.queue {
		if e.arena.Get(ref).AccountID != o.AccountID {
			return false
		}
	}
	return true
}

// applyFills updates positions for both sides of each fill and advances
// the last trade price.
func (e *Engine) applyFills(fills []Fill, now int64) {
	for _, f := range fills {
		if e.risk != nil {
			e.risk.ApplyFill(f.TakerAccountID, e.instrument, f.TakerSide == SideBuy, f.Price, f.Quantity, now)
			e.risk.ApplyFill(f.MakerAccountID, e.instrument, f.TakerSide == SideSell, f.Price, f.Quantity, now)
		}
		e.lastPrice = f.Price
		e.hasLast = true
	}
}

// OnPriceTick records a new reference price and activates every stop
// whose condition it satisfies. Activated orders convert to market when
// no price was attached, limit otherwise, and re-enter the pipeline.
// Fills from activations can trigger further stops in the same call.
func (e *Engine) OnPriceTick(price, now int64) []Fill {
	e.lastPrice = price
	e.hasLast = true

	var fills []Fill
	for {
		refs := e.triggers.activated(e.lastPrice)
		if len(refs) == 0 {
			return fills
		}
		for _, ref := range refs {
			o := e.arena.Get(ref)
			o.State = StateTriggered
			if o.HasPrice {
				o.Type = TypeLimit
			} else {
				o.Type = TypeMarket
			}
			e.logger.Debug("stop order activated",
				zap.String("order_id", o.ID), zap.Int64("last_price", e.lastPrice))

			fs, err := e.process(ref, now)
			fills = append(fills, fs...)
			if err != nil || e.arena.Get(ref).State.Terminal() {
				e.arena.Release(ref)
			}
		}
	}
}

// OnBarOpen injects parked same-bar-hidden orders whose validity window
// has opened. Orders whose window already closed expire.
func (e *Engine) OnBarOpen(barID, now int64) []Fill {
	var fills []Fill
	kept := e.invisible[:0]
	for _, ref := range e.invisible {
		o := e.arena.Get(ref)
		switch {
		case o.ValidToBar > 0 && barID > o.ValidToBar:
			o.State = StateExpired
			o.UpdateTs = now
			e.arena.Release(ref)
		case o.ValidFromBar == 0 || barID >= o.ValidFromBar:
			fs, err := e.process(ref, now)
			fills = append(fills, fs...)
			if err != nil || e.arena.Get(ref).State.Terminal() {
				e.arena.Release(ref)
			}
		default:
			kept = append(kept, ref)
		}
	}
	e.invisible = kept
	return fills
}

// Cancel removes a live order from wherever it rests and returns its
// final snapshot.
func (e *Engine) Cancel(id string, now int64) (Order, error) {
	ref, ok := e.arena.Lookup(id)
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	o := e.arena.Get(ref)
	removed := e.book.Remove(ref) || e.triggers.remove(ref) || e.removeInvisible(ref)
	if !removed {
		return Order{}, fmt.Errorf("matching: order %s is live but not resting: %w", id, ErrOrderNotFound)
	}
	o.State = StateCancelled
	o.UpdateTs = now
	out := *o
	e.arena.Release(ref)
	return out, nil
}

func (e *Engine) removeInvisible(ref OrderRef) bool {
	for i, r := range e.invisible {
		if r == ref {
			e.invisible = append(e.invisible[:i], e.invisible[i+1:]...)
			return true
		}
	}
	return false
}

// OrderStatus returns a copy of a live (resting or parked) order.
func (e *Engine) OrderStatus(id string) (Order, bool) {
	ref, ok := e.arena.Lookup(id)
	if !ok {
		return Order{}, false
	}
	return *e.arena.Get(ref), true
}

// Snapshot returns the top depth levels per side.
func (e *Engine) Snapshot(depth int, now int64) BookSnapshot {
	return e.book.Snapshot(depth, now)
}

// PendingTriggers is the number of parked stop orders.
func (e *Engine) PendingTriggers() int { return e.triggers.size() }
