package risk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sentinel errors for the rejection taxonomy. Callers use errors.Is to
// distinguish risk rejections from programmer errors.
var (
	ErrCircuitOpen   = errors.New("risk: circuit breaker open")
	ErrPriceLimit    = errors.New("risk: price limit violated")
	ErrLimitBreached = errors.New("risk: account limit breached")
)

// OrderIntent is the pre-trade view of an order the manager checks.
// Price is meaningful only when HasPrice is true (market orders carry
// no price and are checked against the current market price instead).
type OrderIntent struct {
	AccountID  string
	Instrument string
	IsBuy      bool
	IsMarket   bool
	HasPrice   bool
	Price      int64
	Quantity   int64
}

type posKey struct{ account, instrument string }

type breaker struct {
	tripped bool
	untilMs int64
}

// Manager runs ordered pre-trade checks and owns post-trade position
// and PnL bookkeeping. Check order: circuit breaker, price band, then
// the account's limit list with short-circuit on first violation.
type Manager struct {
	mu sync.RWMutex

	logger *zap.Logger

	accountLimits map[string][]Limit
	positions     map[posKey]Position
	dailyPnL      map[string]decimal.Decimal
	maxDrawdown   map[string]decimal.Decimal

	breakers map[string]*breaker

	priceLimitUp   map[string]int64
	priceLimitDown map[string]int64
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:         logger,
		accountLimits:  make(map[string][]Limit),
		positions:      make(map[posKey]Position),
		dailyPnL:       make(map[string]decimal.Decimal),
		maxDrawdown:    make(map[string]decimal.Decimal),
		breakers:       make(map[string]*breaker),
		priceLimitUp:   make(map[string]int64),
		priceLimitDown: make(map[string]int64),
	}
}

// AddLimit registers a per-account control.
func (m *Manager) AddLimit(l Limit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountLimits[l.AccountID] = append(m.accountLimits[l.AccountID], l)
}

// SetPriceLimits installs the up/down price band for an instrument.
func (m *Manager) SetPriceLimits(instrument string, up, down int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.priceLimitUp[instrument] = up
	m.priceLimitDown[instrument] = down
}

// SetCircuitBreaker trips or clears the instrument breaker. A tripped
// breaker auto-resets once now passes endTimeMs.
func (m *Manager) SetCircuitBreaker(instrument string, triggered bool, endTimeMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakers[instrument] = &breaker{tripped: triggered, untilMs: endTimeMs}
}

// IsCircuitOpen reports whether the instrument breaker blocks trading
// at the given time, auto-resetting an expired breaker.
func (m *Manager) IsCircuitOpen(instrument string, nowMs int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.circuitOpenLocked(instrument, nowMs)
}

func (m *Manager) circuitOpenLocked(instrument string, nowMs int64) bool {
	b, ok := m.breakers[instrument]
	if !ok || !b.tripped {
		return false
	}
	if nowMs > b.untilMs {
		b.tripped = false
		return false
	}
	return true
}

// CheckOrder runs the ordered pre-trade checks. lastPrice is the
// current market price in ticks (used for market orders); a zero
// lastPrice means no trade has printed yet.
func (m *Manager) CheckOrder(o OrderIntent, lastPrice, nowMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.circuitOpenLocked(o.Instrument, nowMs) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, o.Instrument)
	}
	if err := m.checkPriceBandLocked(o, lastPrice); err != nil {
		return err
	}
	if o.AccountID == "" {
		return nil
	}
	for _, l := range m.accountLimits[o.AccountID] {
		if !l.Enabled {
			continue
		}
		if l.Instrument != "" && l.Instrument != o.Instrument {
			continue
		}
		if err := m.checkLimitLocked(l, o, lastPrice); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) checkPriceBandLocked(o OrderIntent, lastPrice int64) error {
	up, hasUp := m.priceLimitUp[o.Instrument]
	down, hasDown := m.priceLimitDown[o.Instrument]
	if !hasUp && !hasDown {
		return nil
	}
	if o.IsMarket || !o.HasPrice {
		if lastPrice == 0 {
			return nil
		}
		if hasUp && lastPrice >= up {
			return fmt.Errorf("%w: market at limit-up %d", ErrPriceLimit, up)
		}
		if hasDown && lastPrice <= down {
			return fmt.Errorf("%w: market at limit-down %d", ErrPriceLimit, down)
		}
		return nil
	}
	if hasUp && o.Price > up {
		return fmt.Errorf("%w: price %d above band %d", ErrPriceLimit, o.Price, up)
	}
	if hasDown && o.Price < down {
		return fmt.Errorf("%w: price %d below band %d", ErrPriceLimit, o.Price, down)
	}
	return nil
}

func (m *Manager) checkLimitLocked(l Limit, o OrderIntent, lastPrice int64) error {
	switch l.Type {
	case LimitSingleLoss:
		price := o.Price
		if !o.HasPrice {
			price = lastPrice
		}
		notional := decimal.NewFromInt(o.Quantity).Mul(decimal.NewFromInt(price)).Abs()
		if notional.GreaterThan(l.Value) {
			return fmt.Errorf("%w: single-order notional %s over %s", ErrLimitBreached, notional, l.Value)
		}
	case LimitExposure:
		pos, ok := m.positions[posKey{o.AccountID, o.Instrument}]
		if !ok {
			return nil
		}
		exposure := pos.MarketValue(lastPrice).Abs()
		if exposure.GreaterThan(l.Value) {
			return fmt.Errorf("%w: exposure %s over %s", ErrLimitBreached, exposure, l.Value)
		}
	case LimitDailyLoss:
		pnl, ok := m.dailyPnL[o.AccountID]
		if ok && pnl.LessThan(l.Value.Neg()) {
			return fmt.Errorf("%w: daily pnl %s under -%s", ErrLimitBreached, pnl, l.Value)
		}
	case LimitPosition:
		pos := m.positions[posKey{o.AccountID, o.Instrument}]
		next := pos.Quantity + o.Quantity
		if !o.IsBuy {
			next = pos.Quantity - o.Quantity
		}
		if next < 0 {
			next = -next
		}
		if decimal.NewFromInt(next).GreaterThan(l.Value) {
			return fmt.Errorf("%w: position %d over %s", ErrLimitBreached, next, l.Value)
		}
	case LimitVolume:
		if decimal.NewFromInt(o.Quantity).GreaterThan(l.Value) {
			return fmt.Errorf("%w: order quantity %d over %s", ErrLimitBreached, o.Quantity, l.Value)
		}
	case LimitMaxDrawdown:
		dd, ok := m.maxDrawdown[o.AccountID]
		if ok && dd.GreaterThan(l.Value) {
			return fmt.Errorf("%w: drawdown %s over %s", ErrLimitBreached, dd, l.Value)
		}
	}
	return nil
}

// ApplyFill folds one fill into the account's position: signed
// quantity, notional-weighted average price, realized PnL recognized
// only on reducing or reversing fills, and the daily PnL counter.
func (m *Manager) ApplyFill(accountID, instrument string, isBuy bool, price, quantity, nowMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := posKey{accountID, instrument}
	pos, ok := m.positions[key]
	if !ok {
		pos = Position{AccountID: accountID, Instrument: instrument, AvgPrice: decimal.Zero}
	}

	realized := realizedOnFill(pos, isBuy, price, quantity)
	avg := blendAvgPrice(pos, price, quantity)

	delta := quantity
	if !isBuy {
		delta = -quantity
	}
	pos.Quantity += delta
	pos.AvgPrice = avg
	pos.RealizedPnL = pos.RealizedPnL.Add(realized)
	pos.LastUpdateMs = nowMs
	m.positions[key] = pos

	if !realized.IsZero() {
		m.dailyPnL[accountID] = m.dailyPnL[accountID].Add(realized)
	}
}

// GetPosition returns the account's position in an instrument.
func (m *Manager) GetPosition(accountID, instrument string) (Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[posKey{accountID, instrument}]
	return pos, ok
}

// DailyPnL reports the account's cumulative realized PnL for the day.
func (m *Manager) DailyPnL(accountID string) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dailyPnL[accountID]
}

// SetDrawdown records the externally-computed drawdown for an account.
func (m *Manager) SetDrawdown(accountID string, dd decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxDrawdown[accountID] = dd
}

// ResetDaily clears the rolling daily PnL at day rollover.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyPnL = make(map[string]decimal.Decimal)
}
