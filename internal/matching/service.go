package matching

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stocksanalyses/exchange-core/internal/fees"
	"github.com/stocksanalyses/exchange-core/internal/risk"
	"github.com/stocksanalyses/exchange-core/pkg/metrics"
)

// EventPublisher receives fills and book snapshots after each mutating
// operation. Implementations must not block the caller.
type EventPublisher interface {
	PublishFills(instrument string, fills []Fill)
	PublishBook(snap BookSnapshot)
}

var errServiceClosed = errors.New("matching: service closed")

// engineActor owns one engine and serializes access to it through a
// command channel. Submitters never close cmds; stop signals quit so a
// concurrent do either enqueues before the drain or fails with
// errServiceClosed instead of panicking on a closed channel.
type engineActor struct {
	cmds chan func(*Engine)
	quit chan struct{}
	done chan struct{}
}

func newEngineActor(e *Engine) *engineActor {
	a := &engineActor{
		cmds: make(chan func(*Engine), 128),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(a.done)
		for {
			select {
			case fn := <-a.cmds:
				fn(e)
			case <-a.quit:
				for {
					select {
					case fn := <-a.cmds:
						fn(e)
					default:
						return
					}
				}
			}
		}
	}()
	return a
}

// do runs fn on the actor goroutine and waits for it to finish. It
// returns errServiceClosed when the actor stopped before fn ran.
func (a *engineActor) do(fn func(*Engine)) error {
	ran := make(chan struct{})
	cmd := func(e *Engine) {
		defer close(ran)
		fn(e)
	}
	select {
	case a.cmds <- cmd:
	case <-a.quit:
		return errServiceClosed
	}
	select {
	case <-ran:
		return nil
	case <-a.done:
		// the enqueue may have raced the final drain pass
		select {
		case <-ran:
			return nil
		default:
			return errServiceClosed
		}
	}
}

func (a *engineActor) stop() {
	close(a.quit)
	<-a.done
}

// Service fronts one engine per instrument. Engines are created lazily
// on first touch and each runs on its own goroutine, so operations on
// different instruments proceed in parallel while operations on one
// instrument are totally ordered.
type Service struct {
	mu     sync.Mutex
	actors map[string]*engineActor
	closed bool

	risk      *risk.Manager
	feeCalc   *fees.Calculator
	scheduler *ChildScheduler
	publisher EventPublisher
	depth     int
	logger    *zap.Logger
}

// ServiceConfig carries the collaborators of a Service. Nil fields
// disable the corresponding concern.
type ServiceConfig struct {
	Risk      *risk.Manager
	Fees      *fees.Calculator
	Publisher EventPublisher
	// SnapshotDepth is the number of levels published per side after a
	// mutating operation.
	SnapshotDepth int
}

func NewService(cfg ServiceConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	depth := cfg.SnapshotDepth
	if depth <= 0 {
		depth = 10
	}
	return &Service{
		actors:    make(map[string]*engineActor),
		risk:      cfg.Risk,
		feeCalc:   cfg.Fees,
		scheduler: NewChildScheduler(),
		publisher: cfg.Publisher,
		depth:     depth,
		logger:    logger,
	}
}

func (s *Service) actorFor(instrument string) (*engineActor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errServiceClosed
	}
	a, ok := s.actors[instrument]
	if !ok {
		var feeCalc FeeComputer
		if s.feeCalc != nil {
			feeCalc = s.feeCalc
		}
		a = newEngineActor(NewEngine(instrument, s.risk, feeCalc, s.logger))
		s.actors[instrument] = a
		s.logger.Info("engine started", zap.String("instrument", instrument))
	}
	return a, nil
}

// SubmitOrder routes the order to its instrument engine. The order is
// updated in place with the submission outcome.
func (s *Service) SubmitOrder(o *Order, now int64) ([]Fill, error) {
	a, err := s.actorFor(o.Instrument)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var fills []Fill
	var subErr error
	if err := a.do(func(e *Engine) {
		fills, subErr = e.OnNewOrder(o, now)
		s.publish(e, o.Instrument, fills, now)
	}); err != nil {
		return nil, err
	}
	metrics.SubmitLatency.Observe(time.Since(start).Seconds())
	s.record(o, fills, subErr)
	return fills, subErr
}

// CancelOrder cancels a resting or parked order.
func (s *Service) CancelOrder(instrument, orderID string, now int64) (Order, error) {
	a, err := s.actorFor(instrument)
	if err != nil {
		return Order{}, err
	}
	var out Order
	var cErr error
	if err := a.do(func(e *Engine) {
		out, cErr = e.Cancel(orderID, now)
		s.publish(e, instrument, nil, now)
	}); err != nil {
		return Order{}, err
	}
	return out, cErr
}

// OnPriceTick feeds a reference price, activating any waiting stops.
func (s *Service) OnPriceTick(instrument string, price, now int64) ([]Fill, error) {
	a, err := s.actorFor(instrument)
	if err != nil {
		return nil, err
	}
	var fills []Fill
	if err := a.do(func(e *Engine) {
		fills = e.OnPriceTick(price, now)
		s.publish(e, instrument, fills, now)
	}); err != nil {
		return nil, err
	}
	return fills, nil
}

// RegisterParent stores a styled parent order for bar-boundary
// expansion. Parents never rest on the book.
func (s *Service) RegisterParent(parent Order) {
	s.scheduler.Register(parent)
}

// BarOpen injects hidden orders whose bar arrived, then dispatches OPEN
// and slice children against the revealed liquidity.
func (s *Service) BarOpen(instrument string, barID, now int64) ([]Fill, error) {
	a, err := s.actorFor(instrument)
	if err != nil {
		return nil, err
	}
	children := s.scheduler.OpenChildren(instrument, now)
	var fills []Fill
	if err := a.do(func(e *Engine) {
		fills = append(fills, e.OnBarOpen(barID, now)...)
		for i := range children {
			fs, err := e.OnNewOrder(&children[i], now)
			fills = append(fills, fs...)
			if err != nil && IsRejection(err) {
				s.logger.Warn("child order rejected",
					zap.String("order_id", children[i].ID), zap.Error(err))
			}
		}
		s.publish(e, instrument, fills, now)
	}); err != nil {
		return nil, err
	}
	return fills, nil
}

// BarClose dispatches CLOSE children.
func (s *Service) BarClose(instrument string, barID, now int64) ([]Fill, error) {
	a, err := s.actorFor(instrument)
	if err != nil {
		return nil, err
	}
	children := s.scheduler.CloseChildren(instrument, now)
	var fills []Fill
	if err := a.do(func(e *Engine) {
		for i := range children {
			fs, err := e.OnNewOrder(&children[i], now)
			fills = append(fills, fs...)
			if err != nil && IsRejection(err) {
				s.logger.Warn("child order rejected",
					zap.String("order_id", children[i].ID), zap.Error(err))
			}
		}
		s.publish(e, instrument, fills, now)
	}); err != nil {
		return nil, err
	}
	return fills, nil
}

// Snapshot returns the aggregated top of book.
func (s *Service) Snapshot(instrument string, depth int, now int64) (BookSnapshot, error) {
	a, err := s.actorFor(instrument)
	if err != nil {
		return BookSnapshot{}, err
	}
	var snap BookSnapshot
	if err := a.do(func(e *Engine) {
		snap = e.Snapshot(depth, now)
	}); err != nil {
		return BookSnapshot{}, err
	}
	return snap, nil
}

// OrderStatus returns a live order's current state.
func (s *Service) OrderStatus(instrument, orderID string) (Order, bool) {
	a, err := s.actorFor(instrument)
	if err != nil {
		return Order{}, false
	}
	var o Order
	var ok bool
	if err := a.do(func(e *Engine) {
		o, ok = e.OrderStatus(orderID)
	}); err != nil {
		return Order{}, false
	}
	return o, ok
}

// AddRiskLimit installs a risk limit. No-op without a risk manager.
func (s *Service) AddRiskLimit(l risk.Limit) {
	if s.risk != nil {
		s.risk.AddLimit(l)
	}
}

// SetPriceLimits installs the static price band of an instrument.
func (s *Service) SetPriceLimits(instrument string, up, down int64) {
	if s.risk != nil {
		s.risk.SetPriceLimits(instrument, up, down)
	}
}

// SetCircuitBreaker trips or clears an instrument's breaker.
func (s *Service) SetCircuitBreaker(instrument string, triggered bool, endTimeMs int64) {
	if s.risk != nil {
		s.risk.SetCircuitBreaker(instrument, triggered, endTimeMs)
	}
}

// Position returns the current position of an account in an instrument.
func (s *Service) Position(accountID, instrument string) (risk.Position, bool) {
	if s.risk == nil {
		return risk.Position{}, false
	}
	return s.risk.GetPosition(accountID, instrument)
}

// MarginFees prorates margin interest and borrow fees over days held.
func (s *Service) MarginFees(accountID string, notional int64, days int, now int64) []fees.Fee {
	if s.feeCalc == nil {
		return nil
	}
	return s.feeCalc.MarginFees(accountID, notional, days, now)
}

// DailyVolume reports an account's fee-tier volume counter.
func (s *Service) DailyVolume(accountID string) int64 {
	if s.feeCalc == nil {
		return 0
	}
	return s.feeCalc.DailyVolume(accountID)
}

// Close stops every engine actor. Pending commands drain first.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	actors := make([]*engineActor, 0, len(s.actors))
	for _, a := range s.actors {
		actors = append(actors, a)
	}
	s.mu.Unlock()

	for _, a := range actors {
		a.stop()
	}
}

func (s *Service) publish(e *Engine, instrument string, fills []Fill, now int64) {
	if s.publisher == nil {
		return
	}
	if len(fills) > 0 {
		s.publisher.PublishFills(instrument, fills)
	}
	s.publisher.PublishBook(e.Snapshot(s.depth, now))
}

func (s *Service) record(o *Order, fills []Fill, err error) {
	switch {
	case err == nil:
		metrics.OrdersSubmitted.WithLabelValues(o.Instrument, o.Side.String()).Inc()
	case IsRejection(err):
		metrics.OrdersRejected.WithLabelValues(o.Instrument, rejectionReason(err)).Inc()
	}
	if len(fills) > 0 {
		metrics.FillsTotal.WithLabelValues(o.Instrument).Add(float64(len(fills)))
		var qty int64
		for _, f := range fills {
			qty += f.Quantity
		}
		metrics.FillQuantity.WithLabelValues(o.Instrument).Add(float64(qty))
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrSelfTrade):
		return "self_trade"
	case errors.Is(err, ErrUnfillable):
		return "unfillable_fok"
	case errors.Is(err, risk.ErrCircuitOpen):
		return "circuit_breaker"
	case errors.Is(err, risk.ErrPriceLimit):
		return "price_limit"
	case errors.Is(err, risk.ErrLimitBreached):
		return "risk_limit"
	}
	return "other"
}

// NotionalOf is a convenience for reporting: price times quantity as a
// decimal.
func NotionalOf(price, quantity int64) decimal.Decimal {
	return decimal.NewFromInt(price).Mul(decimal.NewFromInt(quantity))
}
