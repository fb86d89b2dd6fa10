package corporate

import (
	"sync"
	"time"
)

// civilDate is a calendar date in the market zone, comparable as a map
// key.
type civilDate struct {
	y int
	m time.Month
	d int
}

func dateOf(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{y, m, d}
}

// Calendar knows trading days, per-instrument suspensions, and ex-date
// lookups. The session schedule is the A-share one: 09:30-11:30 and
// 13:00-15:00 Asia/Shanghai.
type Calendar struct {
	mu          sync.RWMutex
	holidays    map[civilDate]struct{}
	suspensions map[string]map[civilDate]struct{}
	exActions   map[string][]Action
	zone        *time.Location
}

func NewCalendar() *Calendar {
	zone, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		zone = time.FixedZone("CST", 8*3600)
	}
	c := &Calendar{
		holidays:    make(map[civilDate]struct{}),
		suspensions: make(map[string]map[civilDate]struct{}),
		exActions:   make(map[string][]Action),
		zone:        zone,
	}
	c.loadHolidays2024()
	return c
}

// loadHolidays2024 seeds the 2024 A-share exchange closures.
func (c *Calendar) loadHolidays2024() {
	days := []civilDate{
		{2024, time.January, 1},
		{2024, time.February, 10}, {2024, time.February, 11},
		{2024, time.February, 12}, {2024, time.February, 13},
		{2024, time.February, 14}, {2024, time.February, 15},
		{2024, time.February, 16}, {2024, time.February, 17},
		{2024, time.April, 4}, {2024, time.April, 5}, {2024, time.April, 6},
		{2024, time.May, 1}, {2024, time.May, 2}, {2024, time.May, 3},
		{2024, time.June, 10},
		{2024, time.September, 15}, {2024, time.September, 16}, {2024, time.September, 17},
		{2024, time.October, 1}, {2024, time.October, 2}, {2024, time.October, 3},
		{2024, time.October, 4}, {2024, time.October, 5}, {2024, time.October, 6},
		{2024, time.October, 7},
	}
	for _, d := range days {
		c.holidays[d] = struct{}{}
	}
}

// AddHoliday marks one exchange closure.
func (c *Calendar) AddHoliday(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holidays[dateOf(t.In(c.zone))] = struct{}{}
}

func (c *Calendar) marketTime(ms int64) time.Time {
	return time.UnixMilli(ms).In(c.zone)
}

func (c *Calendar) isTradingDate(d civilDate, wd time.Weekday) bool {
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	_, holiday := c.holidays[d]
	return !holiday
}

// IsTradingDay reports whether the date of ms (market zone) is a
// weekday and not a holiday.
func (c *Calendar) IsTradingDay(ms int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t := c.marketTime(ms)
	return c.isTradingDate(dateOf(t), t.Weekday())
}

// AddSuspension halts an instrument for every date in [start, end].
func (c *Calendar) AddSuspension(instrument string, start, end time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	days := c.suspensions[instrument]
	if days == nil {
		days = make(map[civilDate]struct{})
		c.suspensions[instrument] = days
	}
	for t := start.In(c.zone); !t.After(end.In(c.zone)); t = t.AddDate(0, 0, 1) {
		days[dateOf(t)] = struct{}{}
	}
}

// IsSuspended reports whether the instrument is halted on the date of
// ms.
func (c *Calendar) IsSuspended(instrument string, ms int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	days, ok := c.suspensions[instrument]
	if !ok {
		return false
	}
	_, suspended := days[dateOf(c.marketTime(ms))]
	return suspended
}

// AddExDividendDate registers an action for ex-date lookups.
func (c *Calendar) AddExDividendDate(action Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exActions[action.Instrument] = append(c.exActions[action.Instrument], action)
}

// ExDividendActions returns the actions of an instrument whose ex-date
// falls on the date of ms.
func (c *Calendar) ExDividendActions(instrument string, ms int64) []Action {
	c.mu.RLock()
	defer c.mu.RUnlock()
	want := dateOf(c.marketTime(ms))
	var out []Action
	for _, a := range c.exActions[instrument] {
		if dateOf(c.marketTime(a.ExDate)) == want {
			out = append(out, a)
		}
	}
	return out
}

// NextTradingDay returns the first trading day strictly after the date
// of ms, at midnight market time.
func (c *Calendar) NextTradingDay(ms int64) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t := c.marketTime(ms)
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.zone)
	for {
		t = t.AddDate(0, 0, 1)
		if c.isTradingDate(dateOf(t), t.Weekday()) {
			return t
		}
	}
}

// PreviousTradingDay returns the last trading day strictly before the
// date of ms, at midnight market time.
func (c *Calendar) PreviousTradingDay(ms int64) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t := c.marketTime(ms)
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.zone)
	for {
		t = t.AddDate(0, 0, -1)
		if c.isTradingDate(dateOf(t), t.Weekday()) {
			return t
		}
	}
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

const (
	morningOpen    = 9*60 + 30
	morningClose   = 11*60 + 30
	afternoonOpen  = 13 * 60
	afternoonClose = 15 * 60
)

// IsMarketOpen reports whether ms falls in a trading session on a
// trading day.
func (c *Calendar) IsMarketOpen(ms int64) bool {
	if !c.IsTradingDay(ms) {
		return false
	}
	m := minuteOfDay(c.marketTime(ms))
	return (m >= morningOpen && m < morningClose) ||
		(m >= afternoonOpen && m < afternoonClose)
}

// NextMarketOpen returns the next session open at or after ms: the
// afternoon session when ms is in the morning session or lunch break,
// otherwise the morning open of the next trading day (or the same day
// before 09:30).
func (c *Calendar) NextMarketOpen(ms int64) int64 {
	t := c.marketTime(ms)
	m := minuteOfDay(t)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.zone)

	if c.IsTradingDay(ms) {
		switch {
		case m < morningOpen:
			return day.Add(time.Duration(morningOpen) * time.Minute).UnixMilli()
		case m < afternoonOpen:
			return day.Add(time.Duration(afternoonOpen) * time.Minute).UnixMilli()
		}
	}
	next := c.NextTradingDay(ms)
	return next.Add(time.Duration(morningOpen) * time.Minute).UnixMilli()
}
