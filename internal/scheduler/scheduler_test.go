package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/showsync/showsync-core/internal/dispatch"
	"github.com/showsync/showsync-core/internal/show"
)

// scriptedClock replays a fixed sequence of positions, one per poll, then
// reports the run over. waitPolls > 0 makes the first polls report no
// reading, like a timecode feed that has not started.
type scriptedClock struct {
	mu        sync.Mutex
	waitPolls int
	positions []float64
	index     int
}

func (c *scriptedClock) Position() (float64, ClockState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waitPolls > 0 {
		c.waitPolls--
		return 0, ClockWaiting
	}
	if c.index >= len(c.positions) {
		if len(c.positions) == 0 {
			return 0, ClockStopped
		}
		return c.positions[len(c.positions)-1], ClockStopped
	}
	pos := c.positions[c.index]
	c.index++
	return pos, ClockRunning
}

// recordingDispatcher records the event times it is asked to dispatch.
type recordingDispatcher struct {
	mu    sync.Mutex
	times []float64
}

func (d *recordingDispatcher) DispatchEvent(_ context.Context, showID string, event show.TimedEvent) dispatch.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.times = append(d.times, event.TimeS)
	return dispatch.Result{ShowID: showID, EventTimeS: event.TimeS}
}

func (d *recordingDispatcher) dispatched() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]float64, len(d.times))
	copy(out, d.times)
	return out
}

func testTimeline() show.Timeline {
	event := func(t float64) show.TimedEvent {
		return show.TimedEvent{
			TimeS:  t,
			Scenes: []show.ControllerScene{{ControllerID: "a", Directive: show.PresetDirective(1)}},
		}
	}
	return show.Timeline{event(0.0), event(1.0), event(2.0), event(2.5)}
}

func assertDispatched(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("dispatched %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatched %v, want %v", got, want)
		}
	}
}

func TestRunDispatchesDueEventsInOrder(t *testing.T) {
	d := &recordingDispatcher{}
	clock := &scriptedClock{positions: []float64{0.2, 1.0, 2.6}}
	s := New(d, time.Millisecond)

	if err := s.Run(context.Background(), "demo", testTimeline(), clock); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// First poll catches the time-zero event, then each advance catches
	// everything newly due, in timeline order.
	assertDispatched(t, d.dispatched(), []float64{0.0, 1.0, 2.0, 2.5})
}

func TestRunWaitsForFirstClockReading(t *testing.T) {
	d := &recordingDispatcher{}
	clock := &scriptedClock{waitPolls: 5, positions: []float64{0.2, 2.6}}
	s := New(d, time.Millisecond)

	if err := s.Run(context.Background(), "demo", testTimeline(), clock); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Polls before the clock's first reading dispatch nothing and do not
	// end the run; the first real reading still catches the time-zero
	// event.
	assertDispatched(t, d.dispatched(), []float64{0.0, 1.0, 2.0, 2.5})
}

func TestRunTimecodeClockAwaitsFirstFrame(t *testing.T) {
	d := &recordingDispatcher{}
	clock := NewTimecodeClock(30)
	s := New(d, time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background(), "demo", testTimeline(), clock)
	}()

	// No frames yet: the run idles instead of finishing.
	select {
	case err := <-done:
		t.Fatalf("Run() returned %v before the first frame", err)
	case <-time.After(50 * time.Millisecond):
	}

	if err := clock.Update("00:00:01:00"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	clock.Stop()

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	assertDispatched(t, d.dispatched(), []float64{0.0, 1.0})
}

func TestRunCatchesUpAfterClockJump(t *testing.T) {
	d := &recordingDispatcher{}
	clock := &scriptedClock{positions: []float64{2.6}}
	s := New(d, time.Millisecond)

	if err := s.Run(context.Background(), "demo", testTimeline(), clock); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// One poll far into the show dispatches every skipped event, still in
	// order.
	assertDispatched(t, d.dispatched(), []float64{0.0, 1.0, 2.0, 2.5})
}

func TestRunRewindReplay(t *testing.T) {
	d := &recordingDispatcher{}
	clock := &scriptedClock{positions: []float64{0.5, 2.6, 1.0, 2.6}}
	s := New(d, time.Millisecond, WithRewindPolicy(RewindReplay))

	if err := s.Run(context.Background(), "demo", testTimeline(), clock); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The seek back to 1.0 dispatches nothing itself; the re-pass fires
	// the rewound-over events again.
	assertDispatched(t, d.dispatched(), []float64{0.0, 1.0, 2.0, 2.5, 2.0, 2.5})
}

func TestRunRewindOnce(t *testing.T) {
	d := &recordingDispatcher{}
	clock := &scriptedClock{positions: []float64{0.5, 2.6, 1.0, 2.6}}
	s := New(d, time.Millisecond, WithRewindPolicy(RewindOnce))

	if err := s.Run(context.Background(), "demo", testTimeline(), clock); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Nothing fires twice.
	assertDispatched(t, d.dispatched(), []float64{0.0, 1.0, 2.0, 2.5})
}

func TestRunRewindThenNewEvents(t *testing.T) {
	d := &recordingDispatcher{}
	// Play past 1.0, rewind to 0.5, then advance over 1.0 and 2.0.
	clock := &scriptedClock{positions: []float64{1.5, 0.5, 2.2}}
	s := New(d, time.Millisecond, WithRewindPolicy(RewindOnce))

	if err := s.Run(context.Background(), "demo", testTimeline(), clock); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 0.0 and 1.0 fired pre-rewind; the re-pass suppresses them but 2.0
	// is new and fires.
	assertDispatched(t, d.dispatched(), []float64{0.0, 1.0, 2.0})
}

func TestRunEmptyTimeline(t *testing.T) {
	d := &recordingDispatcher{}
	clock := &scriptedClock{positions: []float64{0.0, 5.0}}
	s := New(d, time.Millisecond)

	if err := s.Run(context.Background(), "demo", show.Timeline{}, clock); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := d.dispatched(); len(got) != 0 {
		t.Errorf("dispatched %v from empty timeline", got)
	}
}

func TestRunCancelled(t *testing.T) {
	d := &recordingDispatcher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A clock that never ends; only cancellation stops the run.
	clock := NewTransportClock(0)
	clock.Play()

	s := New(d, time.Millisecond)
	err := s.Run(ctx, "demo", testTimeline(), clock)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunPositionHook(t *testing.T) {
	var (
		mu        sync.Mutex
		positions []float64
	)
	d := &recordingDispatcher{}
	clock := &scriptedClock{positions: []float64{0.5, 1.5}}
	s := New(d, time.Millisecond, WithPositionHook(func(_ string, pos float64) {
		mu.Lock()
		positions = append(positions, pos)
		mu.Unlock()
	}))

	if err := s.Run(context.Background(), "demo", testTimeline(), clock); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(positions) != 2 || positions[0] != 0.5 || positions[1] != 1.5 {
		t.Errorf("position hook saw %v, want [0.5 1.5]", positions)
	}
}

func TestSchedulerStatus(t *testing.T) {
	d := &recordingDispatcher{}
	s := New(d, time.Millisecond)

	if state, _, _ := s.Status(); state != StateIdle {
		t.Errorf("initial state = %q, want idle", state)
	}

	clock := &scriptedClock{positions: []float64{3.0}}
	if err := s.Run(context.Background(), "demo", testTimeline(), clock); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	state, showID, pos := s.Status()
	if state != StateFinished {
		t.Errorf("state = %q, want finished", state)
	}
	if showID != "demo" {
		t.Errorf("show = %q, want demo", showID)
	}
	if pos != 3.0 {
		t.Errorf("position = %v, want 3.0", pos)
	}
}

func TestParseRewindPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    RewindPolicy
		wantErr bool
	}{
		{"replay", RewindReplay, false},
		{"once", RewindOnce, false},
		{"", "", true},
		{"twice", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRewindPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRewindPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidRewindPolicy) {
			t.Errorf("ParseRewindPolicy(%q) error = %v, want ErrInvalidRewindPolicy", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseRewindPolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
