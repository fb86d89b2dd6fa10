package matching

import "container/heap"

// triggerItem snapshots the stop price and arrival order at insertion so
// heap ordering is stable without arena derefs.
type triggerItem struct {
	ref  OrderRef
	stop int64
	seq  int64
}

// triggerHeap orders items by stop price; min=true gives the lowest stop
// first (buy stops), min=false the highest (sell stops). Ties break by
// arrival.
type triggerHeap struct {
	items []triggerItem
	min   bool
}

func (h *triggerHeap) Len() int { return len(h.items) }

func (h *triggerHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.stop != b.stop {
		if h.min {
			return a.stop < b.stop
		}
		return a.stop > b.stop
	}
	return a.seq < b.seq
}

func (h *triggerHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *triggerHeap) Push(x any) { h.items = append(h.items, x.(triggerItem)) }

func (h *triggerHeap) Pop() any {
	n := len(h.items)
	it := h.items[n-1]
	h.items = h.items[:n-1]
	return it
}

// triggerPool parks stop and take-profit orders until the last trade
// price reaches their stop. Buy stops activate when lastPrice >= stop,
// sell stops when lastPrice <= stop.
type triggerPool struct {
	buys  triggerHeap
	sells triggerHeap
	seq   int64
}

func newTriggerPool() *triggerPool {
	return &triggerPool{buys: triggerHeap{min: true}, sells: triggerHeap{min: false}}
}

func (p *triggerPool) add(ref OrderRef, side Side, stop int64) {
	p.seq++
	it := triggerItem{ref: ref, stop: stop, seq: p.seq}
	if side == SideBuy {
		heap.Push(&p.buys, it)
	} else {
		heap.Push(&p.sells, it)
	}
}

// activated pops every ref whose trigger condition holds at lastPrice,
// cheapest-to-trigger first.
func (p *triggerPool) activated(lastPrice int64) []OrderRef {
	var refs []OrderRef
	for p.buys.Len() > 0 && p.buys.items[0].stop <= lastPrice {
		refs = append(refs, heap.Pop(&p.buys).(triggerItem).ref)
	}
	for p.sells.Len() > 0 && p.sells.items[0].stop >= lastPrice {
		refs = append(refs, heap.Pop(&p.sells).(triggerItem).ref)
	}
	return refs
}

// remove drops a parked ref, for cancellation.
func (p *triggerPool) remove(ref OrderRef) bool {
	for _, h := range []*triggerHeap{&p.buys, &p.sells} {
		for i, it := range h.items {
			if it.ref == ref {
				heap.Remove(h, i)
				return true
			}
		}
	}
	return false
}

func (p *triggerPool) size() int {
	return p.buys.Len() + p.sells.Len()
}
