package queue

import (
	"time"

	"go.uber.org/zap"

	"github.com/workerdom/coordinator/internal/infrastructure/logging"
	"github.com/workerdom/coordinator/internal/protocol"
)

// Applier commits one mutation to the live document and answers visibility
// queries for deferral decisions. Implemented by the session.
type Applier interface {
	Apply(m protocol.Mutation) error
	Visible(target string) bool
}

// Policy decides whether a pending record must wait for a future qualifying
// gesture. Implemented by the admission controller.
type Policy interface {
	DeferRecord(now time.Time) bool
}

// CancelFunc cancels a scheduled drain that has not fired yet.
type CancelFunc func()

// ScheduleFunc runs f after d on the session's logical thread of control.
type ScheduleFunc func(d time.Duration, f func()) CancelFunc

// Config holds drain scheduling parameters.
type Config struct {
	// DrainSlice bounds one synchronous drain pass.
	DrainSlice time.Duration
	// RetryDelay is the reschedule delay after an exhausted pass.
	RetryDelay time.Duration
}

// Item is one pending mutation with its local receive timestamp. The
// timestamp is assigned by the coordinator, never trusted from the worker.
type Item struct {
	Mutation protocol.Mutation
	Received time.Time
}

// Queue is the ordered buffer of pending mutation records.
type Queue struct {
	cfg      Config
	applier  Applier
	policy   Policy
	schedule ScheduleFunc
	now      func() time.Time
	log      *logging.Logger

	items    []Item
	pending  CancelFunc // single pending-drain handle
	observer func(applied, remaining int)
}

// Option configures a Queue.
type Option func(*Queue)

// WithNow overrides the time source, for tests.
func WithNow(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithLogger installs a logger.
func WithLogger(log *logging.Logger) Option {
	return func(q *Queue) { q.log = log }
}

// WithDrainObserver installs a callback invoked at the end of every drain
// pass, including rescheduled ones.
func WithDrainObserver(f func(applied, remaining int)) Option {
	return func(q *Queue) { q.observer = f }
}

// New creates a queue draining into applier under policy.
func New(cfg Config, applier Applier, policy Policy, schedule ScheduleFunc, opts ...Option) *Queue {
	q := &Queue{
		cfg:      cfg,
		applier:  applier,
		policy:   policy,
		schedule: schedule,
		now:      time.Now,
		log:      logging.NewNop(),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue stamps the record with the current time, appends it at the tail
// and schedules a drain.
func (q *Queue) Enqueue(m protocol.Mutation) {
	q.items = append(q.items, Item{Mutation: m, Received: q.now()})
	q.ScheduleDrain(0)
}

// ScheduleDrain arranges a drain after delay, superseding any drain already
// scheduled.
func (q *Queue) ScheduleDrain(delay time.Duration) {
	if q.pending != nil {
		q.pending()
		q.pending = nil
	}
	q.pending = q.schedule(delay, func() {
		q.pending = nil
		q.Drain(q.now().Add(q.cfg.DrainSlice))
	})
}

// Drain walks the queue from the head until the deadline. Each record still
// pending is applied now, deferred (left queued) or, on apply failure,
// dropped with a diagnostic. Returns how many records were applied and how
// many remain queued. Calling Drain directly supersedes a scheduled one.
func (q *Queue) Drain(deadline time.Time) (applied, remaining int) {
	if q.pending != nil {
		q.pending()
		q.pending = nil
	}
	defer func() {
		if q.observer != nil {
			q.observer(applied, remaining)
		}
	}()

	i := 0
	for i < len(q.items) {
		now := q.now()
		if now.After(deadline) {
			// Out of budget with records pending: hand control back and
			// pick the queue up again shortly.
			q.ScheduleDrain(q.cfg.RetryDelay)
			remaining = len(q.items)
			return applied, remaining
		}

		it := q.items[i]
		if q.policy != nil && q.policy.DeferRecord(now) {
			i++
			continue
		}
		if deferrableOffscreen(it.Mutation) && !q.applier.Visible(it.Mutation.Target) {
			i++
			continue
		}

		q.items = append(q.items[:i], q.items[i+1:]...)
		if err := q.applier.Apply(it.Mutation); err != nil {
			q.log.Warn("mutation dropped",
				zap.String("type", it.Mutation.Type),
				zap.String("target", it.Mutation.Target),
				zap.Error(err),
			)
		} else {
			applied++
		}
	}
	return applied, len(q.items)
}

// Len returns the number of pending records.
func (q *Queue) Len() int {
	return len(q.items)
}

// Drop discards all pending records and any scheduled drain. Used on
// session teardown; there is no recovery past this point.
func (q *Queue) Drop() {
	if q.pending != nil {
		q.pending()
		q.pending = nil
	}
	q.items = nil
}

// deferrableOffscreen reports whether this variant may wait for its target
// to scroll into view. Structural changes always apply; skipping them could
// strand later records that anchor on the new nodes.
func deferrableOffscreen(m protocol.Mutation) bool {
	return m.Type == protocol.MutationAttributes || m.Type == protocol.MutationCharacterData
}
