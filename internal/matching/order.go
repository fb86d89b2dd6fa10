package matching

import (
	"github.com/stocksanalyses/exchange-core/internal/fees"
)

// Side is the order direction.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideBuy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType selects the matching behavior for an order.
type OrderType int

const (
	TypeMarket OrderType = iota
	TypeLimit
	TypeStop
	TypeTakeProfit
	TypeIceberg
)

func (t OrderType) String() string {
	switch t {
	case TypeMarket:
		return "MARKET"
	case TypeLimit:
		return "LIMIT"
	case TypeStop:
		return "STOP"
	case TypeTakeProfit:
		return "TAKE_PROFIT"
	case TypeIceberg:
		return "ICEBERG"
	}
	return "UNKNOWN"
}

// TimeInForce controls what happens to the unfilled remainder.
type TimeInForce int

const (
	TifGTC TimeInForce = iota // rest until cancelled
	TifIOC                    // fill now, cancel remainder
	TifFOK                    // fill fully or reject
)

func (t TimeInForce) String() string {
	switch t {
	case TifIOC:
		return "IOC"
	case TifFOK:
		return "FOK"
	}
	return "GTC"
}

// ExecStyle is the parent-order execution style expanded by the child
// scheduler at bar boundaries.
type ExecStyle int

const (
	ExecNone ExecStyle = iota
	ExecOpen
	ExecClose
	ExecTWAP
	ExecVWAP
)

func (s ExecStyle) String() string {
	switch s {
	case ExecOpen:
		return "OPEN"
	case ExecClose:
		return "CLOSE"
	case ExecTWAP:
		return "TWAP"
	case ExecVWAP:
		return "VWAP"
	}
	return "NONE"
}

// Visibility controls when an order becomes eligible for matching.
type Visibility int

const (
	VisibleAlways Visibility = iota
	// HiddenSameBar parks the order until the bar named by ValidFromBar
	// opens; it is then injected through the full pipeline.
	HiddenSameBar
)

// OrderState is the lifecycle state machine:
// NEW -> (REJECTED | ACTIVE | TRIGGERED | FILLED | PARTIALLY_FILLED |
// CANCELLED | EXPIRED).
type OrderState int

const (
	StateNew OrderState = iota
	StateActive
	StatePartiallyFilled
	StateFilled
	StateCancelled
	StateRejected
	StateExpired
	StateTriggered
)

func (s OrderState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateActive:
		return "ACTIVE"
	case StatePartiallyFilled:
		return "PARTIALLY_FILLED"
	case StateFilled:
		return "FILLED"
	case StateCancelled:
		return "CANCELLED"
	case StateRejected:
		return "REJECTED"
	case StateExpired:
		return "EXPIRED"
	case StateTriggered:
		return "TRIGGERED"
	}
	return "UNKNOWN"
}

// Terminal reports whether the state admits no further transitions.
func (s OrderState) Terminal() bool {
	switch s {
	case StateFilled, StateCancelled, StateRejected, StateExpired:
		return true
	}
	return false
}

// Order is immutable intent plus mutable execution state. Prices are
// integer tick units; HasPrice distinguishes "no price" (market and
// trigger-to-market orders) from a zero tick.
//
// Invariants: 0 <= Remaining <= Quantity, and for iceberg orders
// 0 <= VisibleRemaining <= min(DisplayQty, Remaining).
type Order struct {
	ID         string `json:"id"`
	Instrument string `json:"instrument"`
	AccountID  string `json:"account_id,omitempty"`
	ParentID   string `json:"parent_id,omitempty"`

	Side Side        `json:"side"`
	Type OrderType   `json:"type"`
	TIF  TimeInForce `json:"tif"`

	Price    int64 `json:"price,omitempty"`
	HasPrice bool  `json:"has_price"`

	StopPrice int64 `json:"stop_price,omitempty"`

	DisplayQty int64 `json:"display_qty,omitempty"`

	// PriceProtection bounds market/triggered orders to an absolute
	// tick distance from the last trade price during FOK depth walks.
	PriceProtection    int64 `json:"price_protection,omitempty"`
	HasPriceProtection bool  `json:"has_price_protection,omitempty"`

	Quantity         int64 `json:"quantity"`
	Remaining        int64 `json:"remaining"`
	VisibleRemaining int64 `json:"visible_remaining,omitempty"`

	Style        ExecStyle  `json:"style,omitempty"`
	Visibility   Visibility `json:"visibility,omitempty"`
	ValidFromBar int64      `json:"valid_from_bar,omitempty"`
	ValidToBar   int64      `json:"valid_to_bar,omitempty"`
	TwapSlices   int        `json:"twap_slices,omitempty"`

	State    OrderState `json:"state"`
	CreateTs int64      `json:"create_ts"`
	UpdateTs int64      `json:"update_ts"`
}

// normalize seeds the execution state from the intent.
func (o *Order) normalize(now int64) {
	o.Remaining = o.Quantity
	if o.Type == TypeIceberg {
		o.VisibleRemaining = min64(o.DisplayQty, o.Quantity)
	} else {
		o.VisibleRemaining = 0
	}
	o.State = StateNew
	if o.CreateTs == 0 {
		o.CreateTs = now
	}
	o.UpdateTs = now
}

// available is the quantity a maker exposes at the front of its level:
// the visible slice for icebergs, the full remainder otherwise.
func (o *Order) available() int64 {
	if o.Type == TypeIceberg {
		return o.VisibleRemaining
	}
	return o.Remaining
}

// NewLimit builds a GTC-style limit order; tif selects the remainder
// policy.
func NewLimit(id, instrument string, side Side, tif TimeInForce, price, quantity int64, accountID string, ts int64) *Order {
	o := &Order{
		ID: id, Instrument: instrument, AccountID: accountID,
		Side: side, Type: TypeLimit, TIF: tif,
		Price: price, HasPrice: true,
		Quantity: quantity, CreateTs: ts,
	}
	o.normalize(ts)
	return o
}

// NewMarket builds a market order. Market orders never rest.
func NewMarket(id, instrument string, side Side, tif TimeInForce, quantity int64, accountID string, ts int64) *Order {
	o := &Order{
		ID: id, Instrument: instrument, AccountID: accountID,
		Side: side, Type: TypeMarket, TIF: tif,
		Quantity: quantity, CreateTs: ts,
	}
	o.normalize(ts)
	return o
}

// NewStop builds a stop order held in the trigger pool until the last
// price crosses stopPrice. A zero hasPrice converts to market on
// activation; otherwise to a limit at price.
func NewStop(id, instrument string, side Side, tif TimeInForce, stopPrice int64, price int64, hasPrice bool, quantity int64, accountID string, ts int64) *Order {
	o := &Order{
		ID: id, Instrument: instrument, AccountID: accountID,
		Side: side, Type: TypeStop, TIF: tif,
		StopPrice: stopPrice, Price: price, HasPrice: hasPrice,
		Quantity: quantity, CreateTs: ts,
	}
	o.normalize(ts)
	return o
}

// NewIceberg builds a limit order exposing only displayQty at a time.
func NewIceberg(id, instrument string, side Side, tif TimeInForce, price, quantity, displayQty int64, accountID string, ts int64) *Order {
	o := &Order{
		ID: id, Instrument: instrument, AccountID: accountID,
		Side: side, Type: TypeIceberg, TIF: tif,
		Price: price, HasPrice: true, DisplayQty: displayQty,
		Quantity: quantity, CreateTs: ts,
	}
	o.normalize(ts)
	return o
}

// Fill is one matched quantity slice, created exactly once and never
// mutated afterwards.
type Fill struct {
	TradeID        string     `json:"trade_id"`
	TakerOrderID   string     `json:"taker_order_id"`
	MakerOrderID   string     `json:"maker_order_id"`
	TakerAccountID string     `json:"taker_account_id,omitempty"`
	MakerAccountID string     `json:"maker_account_id,omitempty"`
	Price          int64      `json:"price"`
	Quantity       int64      `json:"quantity"`
	Timestamp      int64      `json:"timestamp"`
	TakerSide      Side       `json:"taker_side"`
	Fees           []fees.Fee `json:"fees,omitempty"`
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
