package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/showsync/showsync-core/internal/dispatch"
	"github.com/showsync/showsync-core/internal/show"
)

// Logger defines the logging interface used by the Scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher sends one timeline event to its devices. The call blocks until
// the event is settled; the scheduler relies on that for event ordering.
type Dispatcher interface {
	DispatchEvent(ctx context.Context, showID string, event show.TimedEvent) dispatch.Result
}

// RewindPolicy selects what happens to already-dispatched events when
// playback seeks backwards and then moves forward over them again.
type RewindPolicy string

const (
	// RewindReplay re-fires events on the re-pass. Lighting scenes are
	// idempotent state writes, so replaying keeps the devices in sync
	// with wherever the music actually is.
	RewindReplay RewindPolicy = "replay"

	// RewindOnce never fires an event twice in one run, even after a
	// rewind.
	RewindOnce RewindPolicy = "once"
)

// ParseRewindPolicy validates a configured policy name.
func ParseRewindPolicy(s string) (RewindPolicy, error) {
	switch RewindPolicy(s) {
	case RewindReplay:
		return RewindReplay, nil
	case RewindOnce:
		return RewindOnce, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRewindPolicy, s)
	}
}

// State is the scheduler's run state.
type State string

const (
	StateIdle     State = "idle"
	StatePlaying  State = "playing"
	StateFinished State = "finished"
)

// Scheduler drives one show run: it polls a Clock on a fixed tick and
// dispatches timeline events as their timestamps come due.
//
// Ticks resolve in timeline order and dispatch synchronously, so events
// never overlap on the wire and never fire out of order within a run, no
// matter how far the clock jumped between ticks.
type Scheduler struct {
	dispatcher Dispatcher
	tick       time.Duration
	rewind     RewindPolicy
	logger     Logger
	onPosition func(showID string, seconds float64)

	mu       sync.Mutex
	state    State
	showID   string
	position float64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRewindPolicy sets the rewind policy. Default is RewindReplay.
func WithRewindPolicy(p RewindPolicy) Option {
	return func(s *Scheduler) { s.rewind = p }
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithPositionHook registers a callback invoked once per tick with the
// current playback position. Runs on the scheduler goroutine.
func WithPositionHook(fn func(showID string, seconds float64)) Option {
	return func(s *Scheduler) { s.onPosition = fn }
}

// New creates a scheduler that polls the clock every tick.
func New(dispatcher Dispatcher, tick time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		dispatcher: dispatcher,
		tick:       tick,
		rewind:     RewindReplay,
		logger:     noopLogger{},
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the current run state, show and position.
func (s *Scheduler) Status() (State, string, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.showID, s.position
}

// Run plays one show to completion.
//
// Every tick the clock is polled once. A clock still waiting for its first
// reading skips the tick; the run starts dispatching when the clock does.
// Events whose time has come due since
// the previous tick dispatch in timeline order; the very first tick covers
// everything from the start of the timeline, so a time-zero event fires even
// though playback began slightly before the first poll. When the clock jumps
// backwards the cursor rewinds to match and nothing dispatches on that tick;
// what happens when playback passes the rewound stretch again is up to the
// rewind policy.
//
// Run returns nil when the clock reports the run over, or ctx.Err() when
// cancelled. It must not be called concurrently on the same Scheduler.
func (s *Scheduler) Run(ctx context.Context, showID string, timeline show.Timeline, clock Clock) error {
	s.setState(StatePlaying, showID, 0)
	defer func() {
		s.setState(StateFinished, showID, s.lastPosition())
	}()

	s.logger.Info("show started",
		"show", showID,
		"events", len(timeline),
		"tick_ms", s.tick.Milliseconds(),
		"rewind_policy", string(s.rewind),
	)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	var (
		cursor    int     // next undispatched timeline index
		watermark int     // highest cursor ever reached, for RewindOnce
		last      float64 // position at the previous tick
		first     = true
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("show cancelled", "show", showID, "position_s", last)
			return ctx.Err()
		case <-ticker.C:
		}

		pos, state := clock.Position()
		switch state {
		case ClockWaiting:
			// No reading yet. Keep polling until the clock starts.
			continue
		case ClockStopped:
			s.logger.Info("show finished", "show", showID, "position_s", pos)
			return nil
		}

		if !first && pos < last {
			// Backward seek. Rewind the cursor to the first event past
			// the new position; the seek tick itself dispatches nothing.
			cursor = sort.Search(len(timeline), func(i int) bool {
				return timeline[i].TimeS > pos
			})
			s.logger.Info("rewind",
				"show", showID,
				"from_s", last,
				"to_s", pos,
				"cursor", cursor,
			)
			last = pos
			s.observe(showID, pos)
			continue
		}
		first = false

		for cursor < len(timeline) && timeline[cursor].TimeS <= pos {
			if s.rewind == RewindOnce && cursor < watermark {
				cursor++
				continue
			}
			// Blocks until the event settles. The clock keeps moving
			// meanwhile; the next poll picks up whatever came due.
			s.dispatcher.DispatchEvent(ctx, showID, timeline[cursor])
			cursor++
			if cursor > watermark {
				watermark = cursor
			}
		}

		last = pos
		s.observe(showID, pos)
	}
}

func (s *Scheduler) observe(showID string, pos float64) {
	s.mu.Lock()
	s.position = pos
	s.mu.Unlock()
	if s.onPosition != nil {
		s.onPosition(showID, pos)
	}
}

func (s *Scheduler) setState(state State, showID string, pos float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.showID = showID
	s.position = pos
}

func (s *Scheduler) lastPosition() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}
