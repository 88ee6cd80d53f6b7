package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/workerdom/coordinator/internal/dom"
	"github.com/workerdom/coordinator/internal/infrastructure/config"
	"github.com/workerdom/coordinator/internal/infrastructure/logging"
	"github.com/workerdom/coordinator/internal/infrastructure/monitoring"
	"github.com/workerdom/coordinator/internal/shared/id"
	"github.com/workerdom/coordinator/internal/worker"
)

// Manager is the process-wide registry of live sessions.
type Manager struct {
	cfg     config.Config
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger installs a logger.
func WithManagerLogger(log *logging.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithManagerMetrics installs a metrics collector.
func WithManagerMetrics(metrics *monitoring.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates an empty session registry.
func NewManager(cfg config.Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:      cfg,
		log:      logging.NewNop(),
		sessions: make(map[id.SessionID]*Session),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// HostSpec describes the host element a new session renders into.
type HostSpec struct {
	// StaticHeight marks the host statically sized at this many layout
	// units. Zero or negative means dynamically sized.
	StaticHeight int
	// Framed selects frame isolation with container sizing.
	Framed bool
}

func (h HostSpec) build() *dom.StaticHost {
	var opts []dom.StaticHostOption
	if h.StaticHeight > 0 {
		opts = append(opts, dom.WithStaticHeight(h.StaticHeight))
	}
	if h.Framed {
		opts = append(opts, dom.WithFrame())
	}
	return dom.NewStaticHost(opts...)
}

// StartInProcess creates and starts a session around an in-process worker
// running the given author program.
func (m *Manager) StartInProcess(program, location string, spec HostSpec) (*Session, error) {
	w, err := worker.NewGoja(program, worker.Config{
		MaxProgramSize: m.cfg.Worker.MaxProgramSize,
		ExecTimeout:    m.cfg.Worker.ExecTimeout,
	}, m.log)
	if err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}
	return m.start(w, location, spec)
}

// StartWithWorker creates and starts a session around an externally managed
// worker, typically a WebSocket-backed one.
func (m *Manager) StartWithWorker(w worker.Worker, location string, spec HostSpec) (*Session, error) {
	return m.start(w, location, spec)
}

func (m *Manager) start(w worker.Worker, location string, spec HostSpec) (*Session, error) {
	s := New(w, spec.build(), m.cfg.Sync,
		WithLogger(m.log),
		WithMetrics(m.metrics),
	)
	if err := s.Start(location); err != nil {
		w.Terminate()
		return nil, fmt.Errorf("start session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	return s, nil
}

// Get returns the session with the given identifier.
func (m *Manager) Get(sid id.SessionID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sid]
	return s, ok
}

// List returns the identifiers of all registered sessions, sorted.
func (m *Manager) List() []id.SessionID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]id.SessionID, 0, len(m.sessions))
	for sid := range m.sessions {
		out = append(out, sid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close shuts down and deregisters one session.
func (m *Manager) Close(sid id.SessionID) bool {
	m.mu.Lock()
	s, ok := m.sessions[sid]
	delete(m.sessions, sid)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	return true
}

// CloseAll shuts down every session, waiting up to timeout for run loops to
// exit. Used on server shutdown.
func (m *Manager) CloseAll(timeout time.Duration) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[id.SessionID]*Session)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, s := range sessions {
			s.Close()
			s.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		m.log.Warn("session shutdown timed out")
	}
}
