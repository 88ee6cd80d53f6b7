package dom

import (
	"sync"

	"golang.org/x/net/html"
)

// HostState tracks the externally visible lifecycle of a host element.
type HostState int

const (
	HostPending HostState = iota
	HostHydrated
	HostBroken
)

func (s HostState) String() string {
	switch s {
	case HostHydrated:
		return "hydrated"
	case HostBroken:
		return "broken"
	default:
		return "pending"
	}
}

// Host describes the element embedding a worker session: its mount point,
// layout sizing, isolation mode, and visibility of descendants. The
// embedding layer implements it; the engine only consults it.
type Host interface {
	// Root returns the mount point all worker content hangs from.
	Root() *html.Node

	// StaticHeight returns the statically laid-out height of the host in
	// layout units, if it has one. Dynamically sized hosts return false.
	StaticHeight() (int, bool)

	// Framed reports whether the host isolates content in an embedded frame
	// with container-style sizing.
	Framed() bool

	// Visible reports whether n is currently inside the viewport.
	Visible(n *html.Node) bool

	MarkHydrated()
	MarkBroken()
	State() HostState

	// ResizeToContent grows or shrinks a framed host to fit its content
	// after a mutation flush.
	ResizeToContent()

	// PruneStaleContent drops stale duplicate content from the light-facing
	// tree of a framed host.
	PruneStaleContent()
}

// StaticHost is a plain Host implementation used by the server endpoints and
// tests. Visibility defaults to everything visible.
type StaticHost struct {
	root      *html.Node
	height    int
	hasHeight bool
	framed    bool
	visible   func(*html.Node) bool

	// mu guards the lifecycle fields: the session run loop writes them
	// while API handlers read State concurrently.
	mu      sync.RWMutex
	state   HostState
	resized bool
	pruned  bool
}

// StaticHostOption configures a StaticHost.
type StaticHostOption func(*StaticHost)

// WithStaticHeight marks the host as statically sized.
func WithStaticHeight(h int) StaticHostOption {
	return func(s *StaticHost) {
		s.height = h
		s.hasHeight = true
	}
}

// WithFrame marks the host as frame-isolated with container sizing.
func WithFrame() StaticHostOption {
	return func(s *StaticHost) { s.framed = true }
}

// WithVisibility installs a viewport visibility predicate.
func WithVisibility(f func(*html.Node) bool) StaticHostOption {
	return func(s *StaticHost) { s.visible = f }
}

// NewStaticHost creates a host around a fresh mount point.
func NewStaticHost(opts ...StaticHostOption) *StaticHost {
	s := &StaticHost{root: NewRoot()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *StaticHost) Root() *html.Node { return s.root }

func (s *StaticHost) StaticHeight() (int, bool) { return s.height, s.hasHeight }

func (s *StaticHost) Framed() bool { return s.framed }

func (s *StaticHost) Visible(n *html.Node) bool {
	if s.visible == nil {
		return true
	}
	return s.visible(n)
}

func (s *StaticHost) MarkHydrated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == HostPending {
		s.state = HostHydrated
	}
}

func (s *StaticHost) MarkBroken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = HostBroken
}

func (s *StaticHost) State() HostState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *StaticHost) ResizeToContent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resized = true
}

func (s *StaticHost) PruneStaleContent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned = true
}

// Resized reports whether ResizeToContent has run since creation.
func (s *StaticHost) Resized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resized
}

// Pruned reports whether PruneStaleContent has run since creation.
func (s *StaticHost) Pruned() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pruned
}
