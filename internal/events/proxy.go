package events

import (
	"math"
	"time"

	"golang.org/x/net/html"

	"github.com/workerdom/coordinator/internal/protocol"
)

// DefaultEventTypes is the fixed allow-list of interaction events proxied
// to the worker.
var DefaultEventTypes = []string{
	"click", "dblclick", "mousedown", "mouseup",
	"keydown", "keyup", "input", "change", "submit",
	"focus", "blur", "touchstart", "touchend",
}

// DefaultTapSlop is the maximum touchstart-to-touchend distance, in layout
// units, for click-from-tap synthesis.
const DefaultTapSlop = 10.0

// LocalEvent is the coordinator-side view of one interaction event, as
// delivered by the embedding layer.
type LocalEvent struct {
	Type       string
	Target     *html.Node
	Properties map[string]any
	Value      string
	HasValue   bool
	X, Y       float64
	Time       time.Time
}

// Sender delivers a serialized event to the worker, fire-and-forget.
type Sender func(protocol.Event)

// Resolver maps a live node to its bound identifier.
type Resolver func(*html.Node) (string, bool)

// Proxy serializes allow-listed local events and forwards them.
type Proxy struct {
	allow   map[string]struct{}
	clock   *GestureClock
	resolve Resolver
	send    Sender
	tapSlop float64

	touchX, touchY float64
	touchActive    bool
	suppressClick  bool
}

// ProxyOption configures a Proxy.
type ProxyOption func(*Proxy)

// WithEventTypes replaces the default event allow-list.
func WithEventTypes(types []string) ProxyOption {
	return func(p *Proxy) {
		p.allow = make(map[string]struct{}, len(types))
		for _, t := range types {
			p.allow[t] = struct{}{}
		}
	}
}

// WithTapSlop overrides the tap synthesis distance threshold.
func WithTapSlop(slop float64) ProxyOption {
	return func(p *Proxy) { p.tapSlop = slop }
}

// NewProxy creates an event proxy.
func NewProxy(clock *GestureClock, resolve Resolver, send Sender, opts ...ProxyOption) *Proxy {
	p := &Proxy{
		clock:   clock,
		resolve: resolve,
		send:    send,
		tapSlop: DefaultTapSlop,
	}
	WithEventTypes(DefaultEventTypes)(p)
	for _, o := range opts {
		o(p)
	}
	return p
}

// HandleEvent processes one local event: gesture clock first, then tap
// synthesis bookkeeping, then serialization and forwarding. Events of types
// outside the allow-list are ignored entirely.
func (p *Proxy) HandleEvent(ev LocalEvent) {
	if _, ok := p.allow[ev.Type]; !ok {
		return
	}
	p.clock.Touch(ev.Time)

	switch ev.Type {
	case "touchstart":
		p.touchX, p.touchY, p.touchActive = ev.X, ev.Y, true
		p.forward(ev, ev.Type)
		return

	case "touchend":
		p.forward(ev, ev.Type)
		if p.touchActive && p.tapDistance(ev) <= p.tapSlop {
			// Re-send as a click and swallow the native click that the
			// same interaction will produce.
			p.forward(ev, "click")
			p.suppressClick = true
		}
		p.touchActive = false
		return

	case "click":
		if p.suppressClick {
			p.suppressClick = false
			return
		}
	}

	p.forward(ev, ev.Type)
}

func (p *Proxy) tapDistance(ev LocalEvent) float64 {
	return math.Hypot(ev.X-p.touchX, ev.Y-p.touchY)
}

// forward serializes ev under the given type label and sends it. Events on
// nodes outside the synchronized tree are dropped.
func (p *Proxy) forward(ev LocalEvent, typ string) {
	if ev.Target == nil {
		return
	}
	target, ok := p.resolve(ev.Target)
	if !ok {
		return
	}

	out := protocol.Event{
		Type:       typ,
		Target:     target,
		Properties: scalarProperties(ev.Properties),
	}
	if ev.HasValue && (typ == "change" || typ == "input") {
		out.Value = ev.Value
	}
	p.send(out)
}

// scalarProperties copies scalar own properties shallow, dropping
// functions, objects and constant-named fields.
func scalarProperties(props map[string]any) map[string]any {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		if constantNamed(k) {
			continue
		}
		switch v.(type) {
		case bool, string,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// constantNamed reports whether a property name looks like an event
// constant (DOM_KEY_LOCATION_LEFT and friends).
func constantNamed(name string) bool {
	if name == "" {
		return false
	}
	hasLetter := false
	for _, r := range name {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}
