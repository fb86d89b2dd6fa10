package matching

// OrderRef is a stable handle into an order arena. Book levels and
// trigger pools store refs instead of pointers so the live order set
// stays in one contiguous slab.
type OrderRef int32

// RefNone is the zero-value "no order" handle.
const RefNone OrderRef = -1

// Arena owns every live order for one instrument. Slots are recycled
// through a free list; a released ref must not be used again.
type Arena struct {
	slots []Order
	free  []OrderRef
	byID  map[string]OrderRef
}

func NewArena() *Arena {
	return &Arena{byID: make(map[string]OrderRef)}
}

// Alloc copies o into the arena and indexes it by ID.
func (a *Arena) Alloc(o Order) OrderRef {
	var ref OrderRef
	if n := len(a.free); n > 0 {
		ref = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[ref] = o
	} else {
		ref = OrderRef(len(a.slots))
		a.slots = append(a.slots, o)
	}
	a.byID[o.ID] = ref
	return ref
}

// Get returns the mutable order behind ref. The pointer is invalidated
// by the next Alloc.
func (a *Arena) Get(ref OrderRef) *Order {
	return &a.slots[ref]
}

// Lookup resolves an order ID to its live ref.
func (a *Arena) Lookup(id string) (OrderRef, bool) {
	ref, ok := a.byID[id]
	return ref, ok
}

// Release returns the slot to the free list and drops the ID index.
func (a *Arena) Release(ref OrderRef) {
	delete(a.byID, a.slots[ref].ID)
	a.slots[ref] = Order{}
	a.free = append(a.free, ref)
}

// Len is the number of live orders.
func (a *Arena) Len() int {
	return len(a.byID)
}
