package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocksanalyses/exchange-core/internal/risk"
)

const testInstrument = "600000.SH"

func newTestEngine() *Engine {
	return NewEngine(testInstrument, nil, nil, nil)
}

func TestLimitOrderRestsThenCrosses(t *testing.T) {
	e := newTestEngine()

	sell := NewLimit("s1", testInstrument, SideSell, TifGTC, 100, 5, "maker", 1)
	fills, err := e.OnNewOrder(sell, 1)
	require.NoError(t, err)
	assert.Empty(t, fills)
	assert.Equal(t, StateActive, sell.State)

	buy := NewLimit("b1", testInstrument, SideBuy, TifGTC, 100, 5, "taker", 2)
	fills, err = e.OnNewOrder(buy, 2)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, int64(100), fills[0].Price)
	assert.Equal(t, int64(5), fills[0].Quantity)
	assert.Equal(t, "s1", fills[0].MakerOrderID)
	assert.Equal(t, StateFilled, buy.State)

	// the maker is gone from the book
	_, ok := e.OrderStatus("s1")
	assert.False(t, ok)
}

func TestPriceTimePriorityWithinLevel(t *testing.T) {
	e := newTestEngine()

	first := NewLimit("s1", testInstrument, SideSell, TifGTC, 100, 3, "a", 1)
	second := NewLimit("s2", testInstrument, SideSell, TifGTC, 100, 3, "b", 2)
	_, err := e.OnNewOrder(first, 1)
	require.NoError(t, err)
	_, err = e.OnNewOrder(second, 2)
	require.NoError(t, err)

	buy := NewMarket("b1", testInstrument, SideBuy, TifIOC, 4, "c", 3)
	fills, err := e.OnNewOrder(buy, 3)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, "s1", fills[0].MakerOrderID)
	assert.Equal(t, int64(3), fills[0].Quantity)
	assert.Equal(t, "s2", fills[1].MakerOrderID)
	assert.Equal(t, int64(1), fills[1].Quantity)
}

func TestBetterPricedLevelMatchesFirst(t *testing.T) {
	e := newTestEngine()

	_, err := e.OnNewOrder(NewLimit("s1", testInstrument, SideSell, TifGTC, 102, 2, "a", 1), 1)
	require.NoError(t, err)
	_, err = e.OnNewOrder(NewLimit("s2", testInstrument, SideSell, TifGTC, 101, 2, "b", 2), 2)
	require.NoError(t, err)

	buy := NewLimit("b1", testInstrument, SideBuy, TifGTC, 102, 3, "c", 3)
	fills, err := e.OnNewOrder(buy, 3)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, int64(101), fills[0].Price)
	assert.Equal(t, int64(102), fills[1].Price)
	assert.Equal(t, int64(1), fills[1].Quantity)
}

func TestIcebergRefillLosesPriority(t *testing.T) {
	e := newTestEngine()

	ice := NewIceberg("ice", testInstrument, SideSell, TifGTC, 100, 10, 3, "a", 1)
	_, err := e.OnNewOrder(ice, 1)
	require.NoError(t, err)
	plain := NewLimit("plain", testInstrument, SideSell, TifGTC, 100, 5, "b", 2)
	_, err = e.OnNewOrder(plain, 2)
	require.NoError(t, err)

	buy := NewMarket("b1", testInstrument, SideBuy, TifIOC, 5, "c", 3)
	fills, err := e.OnNewOrder(buy, 3)
	require.NoError(t, err)
	require.Len(t, fills, 2)

	// iceberg's visible slice first, then the refilled iceberg waits
	// behind the plain order
	assert.Equal(t, "ice", fills[0].MakerOrderID)
	assert.Equal(t, int64(3), fills[0].Quantity)
	assert.Equal(t, "plain", fills[1].MakerOrderID)
	assert.Equal(t, int64(2), fills[1].Quantity)
}

func TestIcebergReserveFillsOutsizedTaker(t *testing.T) {
	e := newTestEngine()

	ice := NewIceberg("ice", testInstrument, SideSell, TifGTC, 100, 10, 3, "a", 1)
	_, err := e.OnNewOrder(ice, 1)
	require.NoError(t, err)

	buy := NewMarket("b1", testInstrument, SideBuy, TifIOC, 4, "c", 2)
	fills, err := e.OnNewOrder(buy, 2)
	require.NoError(t, err)

	var total int64
	for _, f := range fills {
		total += f.Quantity
		assert.Equal(t, int64(100), f.Price)
	}
	assert.Equal(t, int64(4), total)
	assert.Equal(t, StateFilled, buy.State)

	rest, ok := e.OrderStatus("ice")
	require.True(t, ok)
	assert.Equal(t, int64(6), rest.Remaining)
	assert.Equal(t, int64(3), rest.VisibleRemaining)
}

func TestSnapshotCountsVisibleQuantityOnly(t *testing.T) {
	e := newTestEngine()

	_, err := e.OnNewOrder(NewIceberg("ice", testInstrument, SideSell, TifGTC, 100, 10, 3, "a", 1), 1)
	require.NoError(t, err)
	_, err = e.OnNewOrder(NewLimit("b1", testInstrument, SideBuy, TifGTC, 99, 7, "b", 2), 2)
	require.NoError(t, err)

	snap := e.Snapshot(5, 3)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, int64(100), snap.Asks[0].Price)
	assert.Equal(t, int64(3), snap.Asks[0].Quantity)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, int64(7), snap.Bids[0].Quantity)
}

func TestIOCNeverLeavesRemainder(t *testing.T) {
	e := newTestEngine()

	_, err := e.OnNewOrder(NewLimit("s1", testInstrument, SideSell, TifGTC, 100, 2, "a", 1), 1)
	require.NoError(t, err)

	buy := NewLimit("b1", testInstrument, SideBuy, TifIOC, 100, 5, "b", 2)
	fills, err := e.OnNewOrder(buy, 2)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, int64(2), fills[0].Quantity)
	assert.Equal(t, StateCancelled, buy.State)
	assert.Equal(t, int64(3), buy.Remaining)

	snap := e.Snapshot(5, 3)
	assert.Empty(t, snap.Bids)
}

func TestFOKFillsFullyOrRejects(t *testing.T) {
	e := newTestEngine()

	_, err := e.OnNewOrder(NewLimit("s1", testInstrument, SideSell, TifGTC, 100, 3, "a", 1), 1)
	require.NoError(t, err)

	// not enough depth: zero fills and REJECTED
	fok := NewLimit("b1", testInstrument, SideBuy, TifFOK, 100, 5, "b", 2)
	fills, err := e.OnNewOrder(fok, 2)
	assert.ErrorIs(t, err, ErrUnfillable)
	assert.True(t, IsRejection(err))
	assert.Empty(t, fills)
	assert.Equal(t, StateRejected, fok.State)

	// the maker is untouched
	maker, ok := e.OrderStatus("s1")
	require.True(t, ok)
	assert.Equal(t, int64(3), maker.Remaining)

	// enough depth: fills completely
	_, err = e.OnNewOrder(NewLimit("s2", testInstrument, SideSell, TifGTC, 100, 2, "c", 3), 3)
	require.NoError(t, err)
	fok2 := NewLimit("b2", testInstrument, SideBuy, TifFOK, 100, 5, "b", 4)
	fills, err = e.OnNewOrder(fok2, 4)
	require.NoError(t, err)
	assert.Equal(t, StateFilled, fok2.State)
	var total int64
	for _, f := range fills {
		total += f.Quantity
	}
	assert.Equal(t, int64(5), total)
}

func TestFOKSkipsSameAccountDepth(t *testing.T) {
	e := newTestEngine()

	// own liquidity behind someone else's must not count toward FOK depth
	_, err := e.OnNewOrder(NewLimit("s1", testInstrument, SideSell, TifGTC, 100, 2, "other", 1), 1)
	require.NoError(t, err)
	_, err = e.OnNewOrder(NewLimit("s2", testInstrument, SideSell, TifGTC, 101, 5, "self", 2), 2)
	require.NoError(t, err)

	fok := NewLimit("b1", testInstrument, SideBuy, TifFOK, 101, 4, "self", 3)
	_, err = e.OnNewOrder(fok, 3)
	assert.ErrorIs(t, err, ErrUnfillable)
}

func TestMarketOrderNeverRests(t *testing.T) {
	e := newTestEngine()

	buy := NewMarket("b1", testInstrument, SideBuy, TifGTC, 5, "a", 1)
	fills, err := e.OnNewOrder(buy, 1)
	require.NoError(t, err)
	assert.Empty(t, fills)
	assert.Equal(t, StateCancelled, buy.State)

	snap := e.Snapshot(5, 2)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}

func TestSelfTradePrevention(t *testing.T) {
	e := newTestEngine()

	_, err := e.OnNewOrder(NewLimit("s1", testInstrument, SideSell, TifGTC, 100, 5, "acct", 1), 1)
	require.NoError(t, err)

	buy := NewLimit("b1", testInstrument, SideBuy, TifGTC, 100, 5, "acct", 2)
	fills, err := e.OnNewOrder(buy, 2)
	assert.ErrorIs(t, err, ErrSelfTrade)
	assert.Empty(t, fills)
	assert.Equal(t, StateRejected, buy.State)

	// a different account still trades against that liquidity
	other := NewLimit("b2", testInstrument, SideBuy, TifGTC, 100, 5, "other", 3)
	fills, err = e.OnNewOrder(other, 3)
	require.NoError(t, err)
	assert.Len(t, fills, 1)
}

func TestStopOrderActivatesOnTick(t *testing.T) {
	e := newTestEngine()

	_, err := e.OnNewOrder(NewLimit("s1", testInstrument, SideSell, TifGTC, 106, 5, "a", 1), 1)
	require.NoError(t, err)

	stop := NewStop("stp", testInstrument, SideBuy, TifGTC, 105, 0, false, 5, "b", 2)
	fills, err := e.OnNewOrder(stop, 2)
	require.NoError(t, err)
	assert.Empty(t, fills)
	assert.Equal(t, 1, e.PendingTriggers())

	// below the stop, nothing happens
	fills = e.OnPriceTick(104, 3)
	assert.Empty(t, fills)
	assert.Equal(t, 1, e.PendingTriggers())

	// at the stop, the order converts to market and sweeps the ask
	fills = e.OnPriceTick(105, 4)
	require.Len(t, fills, 1)
	assert.Equal(t, int64(106), fills[0].Price)
	assert.Equal(t, int64(5), fills[0].Quantity)
	assert.Equal(t, 0, e.PendingTriggers())
}

func TestSellStopActivatesBelowStopPrice(t *testing.T) {
	e := newTestEngine()

	stop := NewStop("stp", testInstrument, SideSell, TifGTC, 95, 94, true, 5, "b", 1)
	_, err := e.OnNewOrder(stop, 1)
	require.NoError(t, err)

	e.OnPriceTick(96, 2)
	assert.Equal(t, 1, e.PendingTriggers())

	// activation with an attached price converts to a limit that rests
	fills := e.OnPriceTick(95, 3)
	assert.Empty(t, fills)
	assert.Equal(t, 0, e.PendingTriggers())

	resting, ok := e.OrderStatus("stp")
	require.True(t, ok)
	assert.Equal(t, TypeLimit, resting.Type)
	snap := e.Snapshot(5, 4)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, int64(94), snap.Asks[0].Price)
}

func TestSameBarHiddenOrderInjectsAtBarOpen(t *testing.T) {
	e := newTestEngine()

	_, err := e.OnNewOrder(NewLimit("s1", testInstrument, SideSell, TifGTC, 100, 5, "a", 1), 1)
	require.NoError(t, err)

	hidden := NewLimit("h1", testInstrument, SideBuy, TifGTC, 100, 5, "b", 2)
	hidden.Visibility = HiddenSameBar
	hidden.ValidFromBar = 7
	fills, err := e.OnNewOrder(hidden, 2)
	require.NoError(t, err)
	assert.Empty(t, fills)

	// earlier bar leaves it parked
	assert.Empty(t, e.OnBarOpen(6, 3))

	fills = e.OnBarOpen(7, 4)
	require.Len(t, fills, 1)
	assert.Equal(t, "h1", fills[0].TakerOrderID)
}

func TestHiddenOrderExpiresAfterWindow(t *testing.T) {
	e := newTestEngine()

	hidden := NewLimit("h1", testInstrument, SideBuy, TifGTC, 100, 5, "b", 1)
	hidden.Visibility = HiddenSameBar
	hidden.ValidFromBar = 3
	hidden.ValidToBar = 4
	_, err := e.OnNewOrder(hidden, 1)
	require.NoError(t, err)

	assert.Empty(t, e.OnBarOpen(5, 2))
	_, ok := e.OrderStatus("h1")
	assert.False(t, ok)
}

func TestCancelRestingOrder(t *testing.T) {
	e := newTestEngine()

	_, err := e.OnNewOrder(NewLimit("s1", testInstrument, SideSell, TifGTC, 100, 5, "a", 1), 1)
	require.NoError(t, err)

	out, err := e.Cancel("s1", 2)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, out.State)

	_, err = e.Cancel("s1", 3)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	snap := e.Snapshot(5, 4)
	assert.Empty(t, snap.Asks)
}

func TestCancelParkedStopOrder(t *testing.T) {
	e := newTestEngine()

	_, err := e.OnNewOrder(NewStop("stp", testInstrument, SideBuy, TifGTC, 105, 0, false, 5, "b", 1), 1)
	require.NoError(t, err)
	require.Equal(t, 1, e.PendingTriggers())

	out, err := e.Cancel("stp", 2)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, out.State)
	assert.Equal(t, 0, e.PendingTriggers())
}

func TestRiskRejectionsCarryNoSideEffects(t *testing.T) {
	mgr := risk.NewManager(nil)
	e := NewEngine(testInstrument, mgr, nil, nil)

	mgr.SetCircuitBreaker(testInstrument, true, 1_000)

	o := NewLimit("b1", testInstrument, SideBuy, TifGTC, 100, 5, "acct", 500)
	fills, err := e.OnNewOrder(o, 500)
	assert.ErrorIs(t, err, risk.ErrCircuitOpen)
	assert.True(t, IsRejection(err))
	assert.Empty(t, fills)
	assert.Equal(t, StateRejected, o.State)

	// after the breaker window passes the same order goes through
	o2 := NewLimit("b2", testInstrument, SideBuy, TifGTC, 100, 5, "acct", 2_000)
	_, err = e.OnNewOrder(o2, 2_000)
	require.NoError(t, err)
	assert.Equal(t, StateActive, o2.State)
}

func TestPriceBandRejection(t *testing.T) {
	mgr := risk.NewManager(nil)
	mgr.SetPriceLimits(testInstrument, 110, 90)
	e := NewEngine(testInstrument, mgr, nil, nil)

	o := NewLimit("b1", testInstrument, SideBuy, TifGTC, 111, 5, "acct", 1)
	_, err := e.OnNewOrder(o, 1)
	assert.ErrorIs(t, err, risk.ErrPriceLimit)

	ok := NewLimit("b2", testInstrument, SideBuy, TifGTC, 110, 5, "acct", 2)
	_, err = e.OnNewOrder(ok, 2)
	require.NoError(t, err)
}

func TestFillsUpdatePositions(t *testing.T) {
	mgr := risk.NewManager(nil)
	e := NewEngine(testInstrument, mgr, nil, nil)

	_, err := e.OnNewOrder(NewLimit("s1", testInstrument, SideSell, TifGTC, 100, 5, "maker", 1), 1)
	require.NoError(t, err)
	_, err = e.OnNewOrder(NewMarket("b1", testInstrument, SideBuy, TifIOC, 5, "taker", 2), 2)
	require.NoError(t, err)

	long, ok := mgr.GetPosition("taker", testInstrument)
	require.True(t, ok)
	assert.Equal(t, int64(5), long.Quantity)
	assert.Equal(t, "100", long.AvgPrice.String())

	short, ok := mgr.GetPosition("maker", testInstrument)
	require.True(t, ok)
	assert.Equal(t, int64(-5), short.Quantity)
}

func TestDuplicateOrderIDRejected(t *testing.T) {
	e := newTestEngine()

	_, err := e.OnNewOrder(NewLimit("dup", testInstrument, SideSell, TifGTC, 100, 5, "a", 1), 1)
	require.NoError(t, err)
	_, err = e.OnNewOrder(NewLimit("dup", testInstrument, SideSell, TifGTC, 101, 5, "a", 2), 2)
	assert.Error(t, err)
	assert.False(t, IsRejection(err))
}

func TestInstrumentMismatchIsFatal(t *testing.T) {
	e := newTestEngine()
	o := NewLimit("x", "000001.SZ", SideBuy, TifGTC, 100, 1, "a", 1)
	_, err := e.OnNewOrder(o, 1)
	assert.Error(t, err)
	assert.False(t, IsRejection(err))
}

func TestIcebergRequiresPositiveDisplayQuantity(t *testing.T) {
	e := newTestEngine()

	ice := NewIceberg("ice", testInstrument, SideSell, TifGTC, 100, 10, 0, "m", 1)
	_, err := e.OnNewOrder(ice, 1)
	assert.Error(t, err)
	assert.False(t, IsRejection(err))

	// nothing rested, so a taker sweep returns immediately
	buy := NewMarket("b1", testInstrument, SideBuy, TifIOC, 4, "t", 2)
	fills, err := e.OnNewOrder(buy, 2)
	require.NoError(t, err)
	assert.Empty(t, fills)
	assert.Equal(t, StateCancelled, buy.State)
}

func TestZeroDisplayMakerIsDroppedDuringSweep(t *testing.T) {
	arena := NewArena()
	book := NewOrderBook(testInstrument, arena, nil)

	// a maker whose refill exposes nothing must leave the queue instead
	// of cycling through it forever
	ice := NewIceberg("ice", testInstrument, SideSell, TifGTC, 100, 10, 0, "m", 1)
	ref := arena.Alloc(*ice)
	book.EnqueuePassive(ref, 1)

	taker := NewMarket("b1", testInstrument, SideBuy, TifIOC, 4, "t", 2)
	fills := book.MatchMarket(taker, 2)
	assert.Empty(t, fills)
	assert.Equal(t, int64(4), taker.Remaining)

	_, ok := book.BestAsk()
	assert.False(t, ok)
	_, ok = arena.Lookup("ice")
	assert.False(t, ok)
}

func TestMarketFOKHonorsPriceProtectionBand(t *testing.T) {
	e := newTestEngine()

	_, err := e.OnNewOrder(NewLimit("s1", testInstrument, SideSell, TifGTC, 110, 5, "m", 1), 1)
	require.NoError(t, err)
	e.OnPriceTick(100, 2)

	// depth sits 10 ticks from the reference; a 5-tick band cannot reach it
	buy := NewMarket("b1", testInstrument, SideBuy, TifFOK, 5, "t", 3)
	buy.HasPriceProtection = true
	buy.PriceProtection = 5
	fills, err := e.OnNewOrder(buy, 3)
	assert.ErrorIs(t, err, ErrUnfillable)
	assert.Empty(t, fills)
	assert.Equal(t, StateRejected, buy.State)

	maker, ok := e.OrderStatus("s1")
	require.True(t, ok)
	assert.Equal(t, int64(5), maker.Remaining)

	// a 10-tick band admits the same depth
	buy2 := NewMarket("b2", testInstrument, SideBuy, TifFOK, 5, "t", 4)
	buy2.HasPriceProtection = true
	buy2.PriceProtection = 10
	fills, err = e.OnNewOrder(buy2, 4)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, int64(110), fills[0].Price)
	assert.Equal(t, StateFilled, buy2.State)
}

func TestUnfilledFOKRemainderMapsToRejected(t *testing.T) {
	e := newTestEngine()

	ref := e.arena.Alloc(*NewLimit("f1", testInstrument, SideBuy, TifFOK, 100, 5, "a", 1))
	e.finalize(ref, 2)
	assert.Equal(t, StateRejected, e.arena.Get(ref).State)
}
