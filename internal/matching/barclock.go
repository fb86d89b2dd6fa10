package matching

// BarClock tracks the current bar of a replayed or live feed. Bar IDs
// are caller-defined and must be monotonically increasing.
type BarClock struct {
	barID int64
	open  bool
}

// OpenBar marks barID as the active bar.
func (c *BarClock) OpenBar(barID int64) {
	c.barID = barID
	c.open = true
}

// CloseBar ends the active bar.
func (c *BarClock) CloseBar() {
	c.open = false
}

// CurrentBar returns the active bar ID; ok is false between bars.
func (c *BarClock) CurrentBar() (int64, bool) {
	return c.barID, c.open
}
