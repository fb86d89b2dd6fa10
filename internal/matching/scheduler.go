package matching

import (
	"fmt"
	"sync"
)

// parentEntry tracks how much of a registered parent order has already
// been dispatched as children.
type parentEntry struct {
	order      Order
	dispatched int64
	childSeq   int
}

func (p *parentEntry) remaining() int64 {
	return p.order.Quantity - p.dispatched
}

// ChildScheduler expands parent orders with an execution style into
// child orders at bar boundaries. OPEN parents dispatch their full
// quantity at bar open and CLOSE parents at bar close, both as market
// children. TWAP parents dispatch ceil(quantity/slices) per slice call
// until exhausted; VWAP parents dispatch their full remainder on the
// first slice call. Children always carry IOC so no child ever rests.
type ChildScheduler struct {
	mu      sync.Mutex
	parents map[string][]*parentEntry // keyed by instrument
}

func NewChildScheduler() *ChildScheduler {
	return &ChildScheduler{parents: make(map[string][]*parentEntry)}
}

// Register adds a parent order for expansion. Parents never enter the
// book themselves.
func (s *ChildScheduler) Register(parent Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents[parent.Instrument] = append(s.parents[parent.Instrument], &parentEntry{order: parent})
}

// OpenChildren returns the children to submit at a bar open: the full
// quantity of every OPEN parent plus the next slice of TWAP/VWAP
// parents.
func (s *ChildScheduler) OpenChildren(instrument string, now int64) []Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var children []Order
	for _, p := range s.parents[instrument] {
		switch p.order.Style {
		case ExecOpen:
			children = s.dispatch(children, p, p.remaining(), now)
		case ExecTWAP:
			children = s.dispatch(children, p, s.twapSlice(p), now)
		case ExecVWAP:
			children = s.dispatch(children, p, p.remaining(), now)
		}
	}
	return children
}

// CloseChildren returns the children to submit at a bar close: the full
// quantity of every CLOSE parent.
func (s *ChildScheduler) CloseChildren(instrument string, now int64) []Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var children []Order
	for _, p := range s.parents[instrument] {
		if p.order.Style == ExecClose {
			children = s.dispatch(children, p, p.remaining(), now)
		}
	}
	return children
}

// twapSlice is ceil(quantity/slices), capped by what is left.
func (s *ChildScheduler) twapSlice(p *parentEntry) int64 {
	slices := int64(p.order.TwapSlices)
	if slices <= 0 {
		slices = 1
	}
	slice := (p.order.Quantity + slices - 1) / slices
	return min64(slice, p.remaining())
}

func (s *ChildScheduler) dispatch(children []Order, p *parentEntry, qty, now int64) []Order {
	if qty <= 0 {
		return children
	}
	p.childSeq++
	p.dispatched += qty

	child := Order{
		ID:         fmt.Sprintf("%s-c%d", p.order.ID, p.childSeq),
		Instrument: p.order.Instrument,
		AccountID:  p.order.AccountID,
		ParentID:   p.order.ID,
		Side:       p.order.Side,
		TIF:        TifIOC,
		Quantity:   qty,
	}
	// OPEN and CLOSE children always go out as market orders; TWAP and
	// VWAP children inherit the parent's pricing.
	if (p.order.Style == ExecTWAP || p.order.Style == ExecVWAP) && p.order.HasPrice {
		child.Type = TypeLimit
		child.Price = p.order.Price
		child.HasPrice = true
	} else {
		child.Type = TypeMarket
	}
	child.normalize(now)
	return append(children, child)
}

// PendingQuantity is the undispatched quantity of a parent, zero when
// the parent is unknown or exhausted.
func (s *ChildScheduler) PendingQuantity(instrument, parentID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.parents[instrument] {
		if p.order.ID == parentID {
			return p.remaining()
		}
	}
	return 0
}
