package matching

import (
	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"github.com/stocksanalyses/exchange-core/internal/fees"
)

// FeeComputer prices the fee set for one fill. The matching path never
// inspects fee amounts; they ride on the Fill for downstream consumers.
type FeeComputer interface {
	FillFees(takerAccount, makerAccount string, takerIsSell bool, price, quantity, nowMs int64) []fees.Fee
}

// priceLevel is a FIFO queue of resting orders at one price.
type priceLevel struct {
	price int64
	queue []OrderRef
}

func (l *priceLevel) remove(ref OrderRef) bool {
	for i, r := range l.queue {
		if r == ref {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return true
		}
	}
	return false
}

// visibleQty sums the exposed quantity at the level, counting only the
// display slice of iceberg orders.
func (l *priceLevel) visibleQty(arena *Arena) int64 {
	var total int64
	for _, ref := range l.queue {
		total += arena.Get(ref).available()
	}
	return total
}

// OrderBook holds the resting limit orders of one instrument in two
// price-keyed maps with FIFO queues per price. Matching always consumes
// the best opposing price first, then queue position within the level.
type OrderBook struct {
	instrument string
	arena      *Arena
	bids       *btree.Map[int64, *priceLevel]
	asks       *btree.Map[int64, *priceLevel]
	feeCalc    FeeComputer
}

func NewOrderBook(instrument string, arena *Arena, feeCalc FeeComputer) *OrderBook {
	return &OrderBook{
		instrument: instrument,
		arena:      arena,
		bids:       new(btree.Map[int64, *priceLevel]),
		asks:       new(btree.Map[int64, *priceLevel]),
		feeCalc:    feeCalc,
	}
}

func (b *OrderBook) sideMap(s Side) *btree.Map[int64, *priceLevel] {
	if s == SideBuy {
		return b.bids
	}
	return b.asks
}

// bestLevel returns the most aggressive level on the given book side:
// highest bid, lowest ask.
func (b *OrderBook) bestLevel(s Side) (*priceLevel, bool) {
	if s == SideBuy {
		_, lvl, ok := b.bids.Max()
		return lvl, ok
	}
	_, lvl, ok := b.asks.Min()
	return lvl, ok
}

// BestBid returns the highest resting bid price.
func (b *OrderBook) BestBid() (int64, bool) {
	p, _, ok := b.bids.Max()
	return p, ok
}

// BestAsk returns the lowest resting ask price.
func (b *OrderBook) BestAsk() (int64, bool) {
	p, _, ok := b.asks.Min()
	return p, ok
}

// EnqueuePassive rests a priced order at the back of its price level.
func (b *OrderBook) EnqueuePassive(ref OrderRef, now int64) {
	o := b.arena.Get(ref)
	m := b.sideMap(o.Side)
	lvl, ok := m.Get(o.Price)
	if !ok {
		lvl = &priceLevel{price: o.Price}
		m.Set(o.Price, lvl)
	}
	lvl.queue = append(lvl.queue, ref)
	if o.Type == TypeIceberg {
		o.VisibleRemaining = min64(o.DisplayQty, o.Remaining)
	}
	o.State = StateActive
	o.UpdateTs = now
}

// crosses reports whether a taker limit price reaches a book price.
func crosses(takerSide Side, limit, bookPrice int64) bool {
	if takerSide == SideBuy {
		return limit >= bookPrice
	}
	return limit <= bookPrice
}

// MatchMarket walks the opposing book until the taker is filled or the
// book is empty. Fills execute at the resting price.
func (b *OrderBook) MatchMarket(taker *Order, now int64) []Fill {
	return b.match(taker, now, false, 0)
}

// MatchLimitCrossing fills the taker against every opposing level its
// limit price crosses. The remainder is left on the taker for the
// caller's time-in-force handling.
func (b *OrderBook) MatchLimitCrossing(taker *Order, now int64) []Fill {
	return b.match(taker, now, true, taker.Price)
}

func (b *OrderBook) match(taker *Order, now int64, limited bool, limit int64) []Fill {
	var fills []Fill
	refilled := make(map[OrderRef]struct{})
	opp := taker.Side.Opposite()
	for taker.Remaining > 0 {
		lvl, ok := b.bestLevel(opp)
		if !ok {
			break
		}
		if limited && !crosses(taker.Side, limit, lvl.price) {
			break
		}
		fills = b.fillLevel(taker, lvl, now, fills, refilled)
		if len(lvl.queue) == 0 {
			b.sideMap(opp).Delete(lvl.price)
		}
	}

	// The display slice replenishes once the aggressive order is done,
	// so a taker that outsizes the slice also reaches the reserve.
	for ref := range refilled {
		maker := b.arena.Get(ref)
		if maker.Type == TypeIceberg && maker.Remaining > 0 {
			maker.VisibleRemaining = min64(maker.DisplayQty, maker.Remaining)
		}
	}
	return fills
}

// fillLevel consumes the FIFO queue of one level. An iceberg maker whose
// visible slice is exhausted refills from its reserve and re-enters at
// the back of the level, behind any same-price arrivals.
func (b *OrderBook) fillLevel(taker *Order, lvl *priceLevel, now int64, fills []Fill, refilled map[OrderRef]struct{}) []Fill {
	for taker.Remaining > 0 && len(lvl.queue) > 0 {
		ref := lvl.queue[0]
		maker := b.arena.Get(ref)

		avail := maker.available()
		if avail <= 0 {
			lvl.queue = lvl.queue[1:]
			if maker.Remaining > 0 && maker.Type == TypeIceberg {
				b.refill(maker, now)
				if maker.available() > 0 {
					refilled[ref] = struct{}{}
					lvl.queue = append(lvl.queue, ref)
					continue
				}
			}
			// a maker that exposes nothing even after a refill can never
			// trade; drop it rather than cycle it through the queue
			b.arena.Release(ref)
			delete(refilled, ref)
			continue
		}

		qty := min64(taker.Remaining, avail)
		fills = append(fills, b.makeFill(taker, maker, lvl.price, qty, now))

		taker.Remaining -= qty
		maker.Remaining -= qty
		if maker.Type == TypeIceberg {
			maker.VisibleRemaining -= qty
		}
		maker.UpdateTs = now

		switch {
		case maker.Remaining == 0:
			maker.State = StateFilled
			lvl.queue = lvl.queue[1:]
			b.arena.Release(ref)
			delete(refilled, ref)
		case maker.Type == TypeIceberg && maker.VisibleRemaining == 0:
			b.refill(maker, now)
			refilled[ref] = struct{}{}
			lvl.queue = append(lvl.queue[1:], ref)
		default:
			maker.State = StatePartiallyFilled
		}
	}
	return fills
}

// refill exposes the next display slice. Priority at the level is
// forfeited by the caller.
func (b *OrderBook) refill(maker *Order, now int64) {
	maker.VisibleRemaining = min64(maker.DisplayQty, maker.Remaining)
	maker.State = StatePartiallyFilled
	maker.UpdateTs = now
}

func (b *OrderBook) makeFill(taker, maker *Order, price, qty, now int64) Fill {
	f := Fill{
		TradeID:        uuid.NewString(),
		TakerOrderID:   taker.ID,
		MakerOrderID:   maker.ID,
		TakerAccountID: taker.AccountID,
		MakerAccountID: maker.AccountID,
		Price:          price,
		Quantity:       qty,
		Timestamp:      now,
		TakerSide:      taker.Side,
	}
	if b.feeCalc != nil {
		f.Fees = b.feeCalc.FillFees(taker.AccountID, maker.AccountID, taker.Side == SideSell, price, qty, now)
	}
	return f
}

// CanFullyFill walks the opposing depth and reports whether the taker
// could be filled completely right now. Same-account resting quantity is
// skipped so the check agrees with self-trade prevention. Market takers
// with price protection only count levels within the protection band of
// lastPrice; lastPrice <= 0 disables the band.
func (b *OrderBook) CanFullyFill(taker *Order, lastPrice int64) bool {
	needed := taker.Remaining
	opp := taker.Side.Opposite()
	m := b.sideMap(opp)

	scan := func(price int64, lvl *priceLevel) bool {
		if taker.HasPrice && !crosses(taker.Side, taker.Price, price) {
			return false
		}
		if !taker.HasPrice && taker.HasPriceProtection && lastPrice > 0 {
			dist := price - lastPrice
			if taker.Side == SideSell {
				dist = lastPrice - price
			}
			if dist > taker.PriceProtection {
				return false
			}
		}
		for _, ref := range lvl.queue {
			o := b.arena.Get(ref)
			if taker.AccountID != "" && o.AccountID == taker.AccountID {
				continue
			}
			needed -= o.available()
			if needed <= 0 {
				return false
			}
		}
		return true
	}

	if opp == SideBuy {
		m.Reverse(scan)
	} else {
		m.Scan(scan)
	}
	return needed <= 0
}

// Remove takes a resting order out of its level. It reports false when
// the ref is not on the book.
func (b *OrderBook) Remove(ref OrderRef) bool {
	o := b.arena.Get(ref)
	m := b.sideMap(o.Side)
	lvl, ok := m.Get(o.Price)
	if !ok || !lvl.remove(ref) {
		return false
	}
	if len(lvl.queue) == 0 {
		m.Delete(o.Price)
	}
	return true
}

// LevelSummary is one aggregated price level of a snapshot. Quantity
// counts only visible size.
type LevelSummary struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
	Orders   int   `json:"orders"`
}

// BookSnapshot is a read-only view of the top of the book.
type BookSnapshot struct {
	Instrument string         `json:"instrument"`
	Bids       []LevelSummary `json:"bids"`
	Asks       []LevelSummary `json:"asks"`
	Timestamp  int64          `json:"timestamp"`
}

// Snapshot aggregates up to depth levels per side, bids descending and
// asks ascending.
func (b *OrderBook) Snapshot(depth int, now int64) BookSnapshot {
	snap := BookSnapshot{Instrument: b.instrument, Timestamp: now}
	collect := func(out *[]LevelSummary) func(int64, *priceLevel) bool {
		return func(price int64, lvl *priceLevel) bool {
			if len(*out) >= depth {
				return false
			}
			*out = append(*out, LevelSummary{
				Price:    price,
				Quantity: lvl.visibleQty(b.arena),
				Orders:   len(lvl.queue),
			})
			return true
		}
	}
	b.bids.Reverse(collect(&snap.Bids))
	b.asks.Scan(collect(&snap.Asks))
	return snap
}
