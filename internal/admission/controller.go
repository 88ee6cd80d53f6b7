package admission

import (
	"time"

	"github.com/workerdom/coordinator/internal/dom"
	"github.com/workerdom/coordinator/internal/events"
)

// Phase is the synchronization phase a batch arrives in.
type Phase int

const (
	// PhaseHydrating covers the one-time skeleton reconciliation at session
	// start.
	PhaseHydrating Phase = iota
	// PhaseMutating covers the steady-state mutation stream.
	PhaseMutating
)

// Config holds admission policy parameters.
type Config struct {
	// GestureWindow is the recency window for batch admission.
	GestureWindow time.Duration
	// MutationMaxAge is the gesture-age threshold for per-record deferral.
	MutationMaxAge time.Duration
	// MaxFreeHeight is the free-mutation height threshold in layout units.
	MaxFreeHeight int
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Controller applies gesture- and size-based admission policy for one
// session.
type Controller struct {
	cfg   Config
	clock *events.GestureClock
	host  dom.Host
	now   func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithNow overrides the time source, for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller for one host and gesture clock.
func New(cfg Config, clock *events.GestureClock, host dom.Host, opts ...Option) *Controller {
	c := &Controller{
		cfg:   cfg,
		clock: clock,
		host:  host,
		now:   time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Admit decides whether a mutation batch may apply in the given phase.
func (c *Controller) Admit(phase Phase) Decision {
	if phase == PhaseHydrating {
		return Decision{Allowed: true, Reason: "hydration"}
	}
	if c.clock.Active(c.cfg.GestureWindow, c.now()) {
		return Decision{Allowed: true, Reason: "recent gesture"}
	}
	if c.sizeContained() {
		return Decision{Allowed: true, Reason: "size-contained host"}
	}
	return Decision{Allowed: false, Reason: "no recent gesture and host not size-contained"}
}

// DeferRecord reports whether a pending record must wait for a future
// qualifying gesture. Size-contained hosts never defer. Implements the
// queue's deferral policy.
func (c *Controller) DeferRecord(now time.Time) bool {
	if c.sizeContained() {
		return false
	}
	return !c.clock.Active(c.cfg.MutationMaxAge, now)
}

func (c *Controller) sizeContained() bool {
	h, ok := c.host.StaticHeight()
	return ok && h <= c.cfg.MaxFreeHeight
}
