package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/workerdom/coordinator/internal/admission"
	"github.com/workerdom/coordinator/internal/dom"
	"github.com/workerdom/coordinator/internal/events"
	"github.com/workerdom/coordinator/internal/identity"
	"github.com/workerdom/coordinator/internal/infrastructure/config"
	"github.com/workerdom/coordinator/internal/infrastructure/logging"
	"github.com/workerdom/coordinator/internal/infrastructure/monitoring"
	"github.com/workerdom/coordinator/internal/materialize"
	"github.com/workerdom/coordinator/internal/protocol"
	"github.com/workerdom/coordinator/internal/queue"
	"github.com/workerdom/coordinator/internal/sanitize"
	"github.com/workerdom/coordinator/internal/shared/id"
	"github.com/workerdom/coordinator/internal/worker"
)

// State is the session lifecycle state.
type State int

const (
	StateActive State = iota
	StateBroken
	StateClosed
)

// ErrClosed reports an operation against a session whose run loop has
// stopped.
var ErrClosed = errors.New("session: closed")

// Session coordinates one worker against one host element.
type Session struct {
	id      id.SessionID
	cfg     config.SyncConfig
	log     *logging.Logger
	metrics *monitoring.Metrics
	now     func() time.Time

	worker worker.Worker
	host   dom.Host

	ids   *identity.Map
	gate  *sanitize.Gate
	mat   *materialize.Materializer
	clock *events.GestureClock
	proxy *events.Proxy
	queue *queue.Queue
	ctrl  *admission.Controller
	props dom.Properties

	phase admission.Phase

	// state transitions away from StateActive exactly once, guarded by
	// compare-and-swap so breakSession and Close cannot both claim it.
	state atomic.Int32

	cmds      chan func()
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithLogger installs a logger; it is scoped with the session id.
func WithLogger(log *logging.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithMetrics installs a metrics collector.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithNow overrides the time source, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New wires a session around a worker and a host. Call Start to begin.
func New(w worker.Worker, host dom.Host, cfg config.SyncConfig, opts ...Option) *Session {
	s := &Session{
		id:     id.NewSessionID(),
		cfg:    cfg,
		log:    logging.NewNop(),
		now:    time.Now,
		worker: w,
		host:   host,
		phase:  admission.PhaseHydrating,
		cmds:   make(chan func(), 256),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.Session(s.id.String())

	s.ids = identity.New(host.Root())
	s.gate = sanitize.NewGate()
	s.mat = materialize.New(s.gate, s.ids)
	s.clock = events.NewGestureClock()
	s.props = dom.NewProperties()

	s.ctrl = admission.New(admission.Config{
		GestureWindow:  cfg.GestureWindow,
		MutationMaxAge: cfg.MutationMaxAge,
		MaxFreeHeight:  cfg.MaxFreeHeight,
	}, s.clock, host, admission.WithNow(s.now))

	s.queue = queue.New(
		queue.Config{DrainSlice: cfg.DrainSlice, RetryDelay: cfg.RetryDelay},
		s, s.ctrl, s.schedule,
		queue.WithNow(s.now),
		queue.WithLogger(s.log),
		queue.WithDrainObserver(s.afterDrain),
	)

	s.proxy = events.NewProxy(s.clock, s.ids.IDOf, s.sendEvent,
		events.WithTapSlop(cfg.TapSlop))

	return s
}

// ID returns the session identifier.
func (s *Session) ID() id.SessionID { return s.id }

// Host returns the host element this session renders into.
func (s *Session) Host() dom.Host { return s.host }

// Start launches the run loop and sends the init message.
func (s *Session) Start(location string) error {
	if err := s.worker.Send(protocol.ToWorker{
		Type:     protocol.TypeInit,
		Location: location,
	}); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SessionsTotal.Inc()
		s.metrics.SessionsActive.Inc()
	}
	s.wg.Add(1)
	go s.run()
	return nil
}

// run is the session's single logical thread of control. Every entry point
// funnels through here, so the identity map, queue, property table and
// gesture clock see strictly sequential access.
func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case f := <-s.cmds:
			f()
		case msg, ok := <-s.worker.Messages():
			if !ok {
				s.Close()
				return
			}
			s.handleMessage(msg)
		}
	}
}

// post schedules f on the run loop; no-op after shutdown.
func (s *Session) post(f func()) {
	select {
	case s.cmds <- f:
	case <-s.done:
	}
}

// schedule implements the queue's timer abstraction: f fires on the run
// loop after d, unless cancelled first. Cancellation is checked on the
// loop itself so a timer that already fired cannot sneak its callback in.
func (s *Session) schedule(d time.Duration, f func()) queue.CancelFunc {
	cancelled := false
	timer := time.AfterFunc(d, func() {
		s.post(func() {
			if !cancelled {
				f()
			}
		})
	})
	return func() {
		cancelled = true
		timer.Stop()
	}
}

// DispatchEvent delivers one local interaction event to the session. Safe
// to call from any goroutine; processing happens on the run loop.
func (s *Session) DispatchEvent(ev events.LocalEvent) {
	s.post(func() {
		if s.CurrentState() != StateActive {
			return
		}
		s.proxy.HandleEvent(ev)
		s.retryDeferred()
	})
}

// RemoteEvent is an interaction event addressed by node identifier instead
// of a live node pointer, as delivered over the network API.
type RemoteEvent struct {
	Type       string         `json:"type"`
	TargetID   string         `json:"target"`
	Properties map[string]any `json:"properties,omitempty"`
	Value      string         `json:"value,omitempty"`
	HasValue   bool           `json:"hasValue,omitempty"`
	X          float64        `json:"x,omitempty"`
	Y          float64        `json:"y,omitempty"`
}

// DispatchRemote resolves the event target on the run loop and feeds the
// event through the proxy. Events on unknown targets are dropped.
func (s *Session) DispatchRemote(ev RemoteEvent) {
	s.post(func() {
		if s.CurrentState() != StateActive {
			return
		}
		n, ok := s.ids.Resolve(ev.TargetID)
		if !ok {
			s.log.Debug("event on unknown target dropped",
				zap.String("type", ev.Type))
			return
		}
		s.proxy.HandleEvent(events.LocalEvent{
			Type:       ev.Type,
			Target:     n,
			Properties: ev.Properties,
			Value:      ev.Value,
			HasValue:   ev.HasValue,
			X:          ev.X,
			Y:          ev.Y,
			Time:       s.now(),
		})
		s.retryDeferred()
	})
}

// retryDeferred gives gesture-deferred records another chance after an
// interaction event refreshed the gesture clock. Without it, a record left
// queued for gesture staleness would only resurface on the next mutate batch
// or visibility change. Runs on the run loop.
func (s *Session) retryDeferred() {
	if s.queue.Len() > 0 {
		s.queue.ScheduleDrain(0)
	}
}

// Snapshot renders the current synchronized content. The render runs on the
// run loop, so it observes a consistent tree.
func (s *Session) Snapshot() (string, error) {
	type result struct {
		html string
		err  error
	}
	ch := make(chan result, 1)
	s.post(func() {
		h, err := dom.RenderChildren(s.host.Root())
		ch <- result{h, err}
	})
	select {
	case r := <-ch:
		return r.html, r.err
	case <-s.done:
		return "", ErrClosed
	}
}

// NotifyVisibilityChange tells the session that viewport visibility moved,
// so visibility-deferred records get another chance.
func (s *Session) NotifyVisibilityChange() {
	s.post(func() {
		if s.CurrentState() == StateActive {
			s.queue.ScheduleDrain(0)
		}
	})
}

// BeginAsyncOperation extends the gesture activity window while a
// gesture-triggered long-running operation is outstanding.
func (s *Session) BeginAsyncOperation() {
	s.post(func() { s.clock.BeginAsync() })
}

// EndAsyncOperation retires one outstanding async operation.
func (s *Session) EndAsyncOperation() {
	s.post(func() { s.clock.EndAsync() })
}

// handleMessage processes one worker message on the run loop.
func (s *Session) handleMessage(msg protocol.FromWorker) {
	if s.CurrentState() != StateActive {
		return
	}

	switch msg.Type {
	case protocol.TypeInitResult:
		if s.phase != admission.PhaseHydrating {
			s.log.Warn("duplicate init-result ignored")
			return
		}
		s.hydrate(msg.Skeleton)
		s.host.MarkHydrated()
		s.phase = admission.PhaseMutating
		s.log.Info("session hydrated",
			zap.Int("identities", s.ids.Len()))

	case protocol.TypeMutate:
		decision := s.ctrl.Admit(s.phase)
		if !decision.Allowed {
			s.breakSession(decision.Reason)
			return
		}
		for i := range msg.Mutations {
			s.queue.Enqueue(msg.Mutations[i])
		}
		if s.metrics != nil {
			s.metrics.QueueDepth.Set(float64(s.queue.Len()))
		}
	}
}

// afterDrain runs at the end of every drain pass.
func (s *Session) afterDrain(applied, remaining int) {
	if s.metrics != nil {
		s.metrics.QueueDepth.Set(float64(remaining))
	}
	if applied > 0 && s.host.Framed() {
		// Container-sized frames track their content after each flush.
		s.host.ResizeToContent()
		s.host.PruneStaleContent()
	}
}

// breakSession is the terminal admission-rejection path: the worker is
// discarded, queued mutations are dropped and the host is marked broken.
// There is no retry.
func (s *Session) breakSession(reason string) {
	if !s.state.CompareAndSwap(int32(StateActive), int32(StateBroken)) {
		return
	}
	s.log.Error("mutation batch rejected, terminating worker",
		zap.String("reason", reason))
	s.queue.Drop()
	s.worker.Terminate()
	s.host.MarkBroken()
	if s.metrics != nil {
		s.metrics.AdmissionRejections.Inc()
		s.metrics.SessionsBroken.Inc()
		s.metrics.SessionsActive.Dec()
	}
}

// sendEvent forwards one serialized event to the worker, fire-and-forget.
func (s *Session) sendEvent(ev protocol.Event) {
	if s.metrics != nil {
		s.metrics.EventsForwarded.WithLabelValues(ev.Type).Inc()
	}
	event := ev
	if err := s.worker.Send(protocol.ToWorker{
		Type:  protocol.TypeEvent,
		Event: &event,
	}); err != nil {
		s.log.Debug("event not delivered", zap.Error(err))
	}
}

// CurrentState returns the lifecycle state. Safe from any goroutine.
func (s *Session) CurrentState() State {
	return State(s.state.Load())
}

// Close shuts the session down. Idempotent. The active gauge is decremented
// only when Close itself retires the session; a session broken by admission
// rejection already gave its slot up.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		wasActive := s.state.CompareAndSwap(int32(StateActive), int32(StateClosed))
		s.worker.Terminate()
		close(s.done)
		if s.metrics != nil && wasActive {
			s.metrics.SessionsActive.Dec()
		}
	})
}

// Wait blocks until the run loop has exited. For tests and teardown.
func (s *Session) Wait() {
	s.wg.Wait()
}
