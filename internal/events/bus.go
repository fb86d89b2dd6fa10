// Package events carries fills and book snapshots away from the
// matching hot path. Publication is fire-and-forget through a bounded
// buffer; a slow or failing sink can drop events but never delays or
// rolls back a matching decision.
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/stocksanalyses/exchange-core/internal/matching"
	"github.com/stocksanalyses/exchange-core/pkg/metrics"
)

// Type tags the payload kind of an Event.
type Type int

const (
	TypeFills Type = iota
	TypeBook
)

func (t Type) String() string {
	if t == TypeBook {
		return "book"
	}
	return "fills"
}

// Event is one published unit: a fill batch or a book snapshot.
type Event struct {
	Type       Type                   `json:"type"`
	Instrument string                 `json:"instrument"`
	Fills      []matching.Fill        `json:"fills,omitempty"`
	Book       *matching.BookSnapshot `json:"book,omitempty"`
}

// Sink consumes events on the bus goroutine. Deliver may block or fail
// internally; it must not panic.
type Sink interface {
	Deliver(ev Event)
}

// Bus fans events out to sinks through one bounded channel. Publishing
// never blocks: when the buffer is full the event is dropped and
// counted.
type Bus struct {
	ch     chan Event
	sinks  []Sink
	logger *zap.Logger

	wg     sync.WaitGroup
	once   sync.Once
	closed chan struct{}
}

// NewBus starts the dispatch goroutine. buffer <= 0 defaults to 1024.
func NewBus(buffer int, logger *zap.Logger, sinks ...Sink) *Bus {
	if buffer <= 0 {
		buffer = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		ch:     make(chan Event, buffer),
		sinks:  sinks,
		logger: logger,
		closed: make(chan struct{}),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

func (b *Bus) run() {
	defer b.wg.Done()
	for {
		select {
		case ev := <-b.ch:
			b.deliver(ev)
		case <-b.closed:
			for {
				select {
				case ev := <-b.ch:
					b.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) deliver(ev Event) {
	for _, s := range b.sinks {
		s.Deliver(ev)
	}
}

// PublishFills enqueues a fill batch.
func (b *Bus) PublishFills(instrument string, fills []matching.Fill) {
	b.publish(Event{Type: TypeFills, Instrument: instrument, Fills: fills})
}

// PublishBook enqueues a book snapshot.
func (b *Bus) PublishBook(snap matching.BookSnapshot) {
	b.publish(Event{Type: TypeBook, Instrument: snap.Instrument, Book: &snap})
}

func (b *Bus) publish(ev Event) {
	select {
	case b.ch <- ev:
	case <-b.closed:
	default:
		metrics.EventsDropped.Inc()
		b.logger.Warn("event dropped, buffer full",
			zap.String("type", ev.Type.String()),
			zap.String("instrument", ev.Instrument))
	}
}

// Close drains the buffer and stops the dispatch goroutine.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.closed) })
	b.wg.Wait()
}
