package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workerdom/coordinator/internal/protocol"
)

// fakeApplier records applied mutations and answers visibility from a set.
type fakeApplier struct {
	applied []protocol.Mutation
	hidden  map[string]bool
	failOn  string
}

func (f *fakeApplier) Apply(m protocol.Mutation) error {
	if f.failOn != "" && m.Target == f.failOn {
		return errors.New("apply failed")
	}
	f.applied = append(f.applied, m)
	return nil
}

func (f *fakeApplier) Visible(target string) bool {
	return !f.hidden[target]
}

// fakePolicy defers everything while deferring is true.
type fakePolicy struct{ deferring bool }

func (f *fakePolicy) DeferRecord(time.Time) bool { return f.deferring }

// fakeScheduler records scheduled drains without running them.
type fakeScheduler struct {
	scheduled []time.Duration
	cancelled int
}

func (f *fakeScheduler) schedule(d time.Duration, fn func()) CancelFunc {
	f.scheduled = append(f.scheduled, d)
	return func() { f.cancelled++ }
}

func newTestQueue(applier Applier, policy Policy) (*Queue, *fakeScheduler) {
	sched := &fakeScheduler{}
	q := New(Config{DrainSlice: 5 * time.Millisecond, RetryDelay: 16 * time.Millisecond},
		applier, policy, sched.schedule)
	return q, sched
}

func childList(target string) protocol.Mutation {
	return protocol.Mutation{Type: protocol.MutationChildList, Target: target}
}

func attrChange(target, name string) protocol.Mutation {
	return protocol.Mutation{Type: protocol.MutationAttributes, Target: target, AttributeName: name}
}

func TestEnqueueSchedulesDrain(t *testing.T) {
	applier := &fakeApplier{}
	q, sched := newTestQueue(applier, &fakePolicy{})

	q.Enqueue(childList("a"))
	require.Len(t, sched.scheduled, 1)
	assert.Equal(t, time.Duration(0), sched.scheduled[0])
	assert.Equal(t, 1, q.Len())
}

func TestDrainAppliesInOrder(t *testing.T) {
	applier := &fakeApplier{}
	q, _ := newTestQueue(applier, &fakePolicy{})

	q.Enqueue(childList("a"))
	q.Enqueue(attrChange("a", "class"))
	q.Enqueue(childList("b"))

	applied, remaining := q.Drain(time.Now().Add(time.Second))
	assert.Equal(t, 3, applied)
	assert.Equal(t, 0, remaining)
	require.Len(t, applier.applied, 3)
	assert.Equal(t, "class", applier.applied[1].AttributeName)
}

func TestDrainDefersByPolicy(t *testing.T) {
	applier := &fakeApplier{}
	policy := &fakePolicy{deferring: true}
	q, _ := newTestQueue(applier, policy)

	q.Enqueue(childList("a"))
	applied, remaining := q.Drain(time.Now().Add(time.Second))
	assert.Equal(t, 0, applied)
	assert.Equal(t, 1, remaining)

	// A later qualifying gesture lifts the deferral; the record applies.
	policy.deferring = false
	applied, remaining = q.Drain(time.Now().Add(time.Second))
	assert.Equal(t, 1, applied)
	assert.Equal(t, 0, remaining)
}

func TestDrainDefersOffscreenContentChanges(t *testing.T) {
	applier := &fakeApplier{hidden: map[string]bool{"hidden": true}}
	q, _ := newTestQueue(applier, &fakePolicy{})

	q.Enqueue(attrChange("hidden", "class"))
	q.Enqueue(childList("hidden")) // structural: applies regardless
	q.Enqueue(attrChange("visible", "id"))

	applied, remaining := q.Drain(time.Now().Add(time.Second))
	assert.Equal(t, 2, applied)
	assert.Equal(t, 1, remaining)

	// Scrolling the target into view releases it.
	applier.hidden["hidden"] = false
	applied, _ = q.Drain(time.Now().Add(time.Second))
	assert.Equal(t, 1, applied)
	assert.Equal(t, "class", applier.applied[2].AttributeName)
}

func TestDrainDeadlineReschedules(t *testing.T) {
	applier := &fakeApplier{}
	sched := &fakeScheduler{}
	q := New(Config{DrainSlice: 5 * time.Millisecond, RetryDelay: 16 * time.Millisecond},
		applier, &fakePolicy{}, sched.schedule)

	q.Enqueue(childList("a"))
	q.Enqueue(childList("b"))

	// An already-expired deadline applies nothing and reschedules.
	applied, remaining := q.Drain(time.Now().Add(-time.Second))
	assert.Equal(t, 0, applied)
	assert.Equal(t, 2, remaining)
	require.NotEmpty(t, sched.scheduled)
	assert.Equal(t, 16*time.Millisecond, sched.scheduled[len(sched.scheduled)-1])
}

func TestDrainDropsFailedRecordAndContinues(t *testing.T) {
	applier := &fakeApplier{failOn: "broken"}
	q, _ := newTestQueue(applier, &fakePolicy{})

	q.Enqueue(childList("broken"))
	q.Enqueue(childList("fine"))

	applied, remaining := q.Drain(time.Now().Add(time.Second))
	assert.Equal(t, 1, applied)
	assert.Equal(t, 0, remaining)
	require.Len(t, applier.applied, 1)
	assert.Equal(t, "fine", applier.applied[0].Target)
}

func TestScheduleDrainSupersedes(t *testing.T) {
	applier := &fakeApplier{}
	q, sched := newTestQueue(applier, &fakePolicy{})

	q.ScheduleDrain(0)
	q.ScheduleDrain(10 * time.Millisecond)
	assert.Equal(t, 1, sched.cancelled)
}

func TestDrop(t *testing.T) {
	applier := &fakeApplier{}
	q, sched := newTestQueue(applier, &fakePolicy{})

	q.Enqueue(childList("a"))
	q.Drop()
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 1, sched.cancelled)
}

func TestDrainObserver(t *testing.T) {
	applier := &fakeApplier{}
	sched := &fakeScheduler{}
	var gotApplied, gotRemaining int
	q := New(Config{DrainSlice: 5 * time.Millisecond, RetryDelay: 16 * time.Millisecond},
		applier, &fakePolicy{}, sched.schedule,
		WithDrainObserver(func(applied, remaining int) {
			gotApplied, gotRemaining = applied, remaining
		}))

	q.Enqueue(childList("a"))
	q.Drain(time.Now().Add(time.Second))
	assert.Equal(t, 1, gotApplied)
	assert.Equal(t, 0, gotRemaining)
}

// Relative order within one (target, variant) stream survives deferral and
// release: content changes on a hidden target may fall behind structural
// ones, but two records of the same variant on the same target never swap.
func TestPerTargetVariantOrderProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	type step struct {
		Target  int // 0 or 1
		Variant int // 0 childList, 1 attributes, 2 characterData
	}

	genStep := gopter.CombineGens(
		gen.IntRange(0, 1),
		gen.IntRange(0, 2),
	).Map(func(vals []interface{}) step {
		return step{Target: vals[0].(int), Variant: vals[1].(int)}
	})

	variants := []string{
		protocol.MutationChildList,
		protocol.MutationAttributes,
		protocol.MutationCharacterData,
	}
	targets := []string{"a", "b"}

	streamKey := func(m protocol.Mutation) string { return m.Target + ":" + m.Type }

	properties.Property("per-(target,variant) order preserved across deferral", prop.ForAll(
		func(steps []step, hiddenTarget int) bool {
			applier := &fakeApplier{hidden: map[string]bool{targets[hiddenTarget]: true}}
			q, _ := newTestQueue(applier, &fakePolicy{})

			want := make(map[string][]string)
			for i, s := range steps {
				m := protocol.Mutation{
					Type:          variants[s.Variant],
					Target:        targets[s.Target],
					AttributeName: fmt.Sprintf("seq%d", i),
				}
				q.Enqueue(m)
				want[streamKey(m)] = append(want[streamKey(m)], m.AttributeName)
			}

			q.Drain(time.Now().Add(time.Second))
			applier.hidden = map[string]bool{}
			q.Drain(time.Now().Add(time.Second))

			if q.Len() != 0 {
				return false
			}

			got := make(map[string][]string)
			for _, m := range applier.applied {
				got[streamKey(m)] = append(got[streamKey(m)], m.AttributeName)
			}
			for key, w := range want {
				g := got[key]
				if len(w) != len(g) {
					return false
				}
				for i := range w {
					if w[i] != g[i] {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(genStep),
		gen.IntRange(0, 1),
	))

	properties.TestingRun(t)
}
