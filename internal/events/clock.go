package events

import "time"

// GestureClock records the most recent qualifying local interaction. It is
// monotonically non-decreasing and owned by the session's single logical
// thread of control.
type GestureClock struct {
	last time.Time

	// outstanding counts long-running async operations triggered by a
	// gesture; while any are outstanding the activity window stays open.
	outstanding int
}

// NewGestureClock creates a clock that has never seen a gesture.
func NewGestureClock() *GestureClock {
	return &GestureClock{}
}

// Touch records an interaction at t. Earlier-than-last timestamps are
// ignored to keep the clock monotone.
func (c *GestureClock) Touch(t time.Time) {
	if t.After(c.last) {
		c.last = t
	}
}

// Last returns the timestamp of the most recent interaction, zero if none.
func (c *GestureClock) Last() time.Time {
	return c.last
}

// BeginAsync marks a gesture-triggered async operation as outstanding,
// extending the activity window until EndAsync.
func (c *GestureClock) BeginAsync() {
	c.outstanding++
}

// EndAsync retires one outstanding async operation.
func (c *GestureClock) EndAsync() {
	if c.outstanding > 0 {
		c.outstanding--
	}
}

// Active reports whether user activity is recent at now, within window.
func (c *GestureClock) Active(window time.Duration, now time.Time) bool {
	if c.last.IsZero() {
		return false
	}
	if c.outstanding > 0 {
		return true
	}
	return now.Sub(c.last) <= window
}
