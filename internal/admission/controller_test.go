package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/workerdom/coordinator/internal/dom"
	"github.com/workerdom/coordinator/internal/events"
)

func testConfig() Config {
	return Config{
		GestureWindow:  5 * time.Second,
		MutationMaxAge: 5 * time.Second,
		MaxFreeHeight:  300,
	}
}

func TestAdmit(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		phase      Phase
		gestureAge time.Duration // negative means no gesture ever
		height     int           // 0 means dynamically sized
		outstanding int
		want       bool
	}{
		{name: "hydration always admits", phase: PhaseHydrating, gestureAge: -1, want: true},
		{name: "recent gesture admits", phase: PhaseMutating, gestureAge: time.Second, want: true},
		{name: "gesture at window edge admits", phase: PhaseMutating, gestureAge: 5 * time.Second, want: true},
		{name: "stale gesture rejects", phase: PhaseMutating, gestureAge: 6 * time.Second, want: false},
		{name: "no gesture rejects dynamic host", phase: PhaseMutating, gestureAge: -1, want: false},
		{name: "small static host admits without gesture", phase: PhaseMutating, gestureAge: -1, height: 300, want: true},
		{name: "tall static host rejects without gesture", phase: PhaseMutating, gestureAge: -1, height: 301, want: false},
		{name: "outstanding async extends stale gesture", phase: PhaseMutating, gestureAge: time.Minute, outstanding: 1, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := events.NewGestureClock()
			if tt.gestureAge >= 0 {
				clock.Touch(base.Add(-tt.gestureAge))
			}
			for i := 0; i < tt.outstanding; i++ {
				clock.BeginAsync()
			}

			var opts []dom.StaticHostOption
			if tt.height > 0 {
				opts = append(opts, dom.WithStaticHeight(tt.height))
			}
			host := dom.NewStaticHost(opts...)

			ctrl := New(testConfig(), clock, host, WithNow(func() time.Time { return base }))
			got := ctrl.Admit(tt.phase)
			assert.Equal(t, tt.want, got.Allowed, got.Reason)
		})
	}
}

func TestDeferRecord(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("size-contained host never defers", func(t *testing.T) {
		clock := events.NewGestureClock()
		host := dom.NewStaticHost(dom.WithStaticHeight(200))
		ctrl := New(testConfig(), clock, host)
		assert.False(t, ctrl.DeferRecord(base))
	})

	t.Run("dynamic host defers past gesture age", func(t *testing.T) {
		clock := events.NewGestureClock()
		host := dom.NewStaticHost()
		ctrl := New(testConfig(), clock, host)

		clock.Touch(base.Add(-time.Second))
		assert.False(t, ctrl.DeferRecord(base))

		clock2 := events.NewGestureClock()
		clock2.Touch(base.Add(-10 * time.Second))
		ctrl2 := New(testConfig(), clock2, host)
		assert.True(t, ctrl2.DeferRecord(base))
	})
}
