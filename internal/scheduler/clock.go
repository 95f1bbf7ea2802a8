package scheduler

import (
	"sync"
	"time"
)

// ClockState classifies one Position reading.
type ClockState int

const (
	// ClockWaiting means the clock has no position yet, like a timecode
	// feed that has not delivered its first frame. The scheduler skips
	// the tick and keeps polling.
	ClockWaiting ClockState = iota

	// ClockRunning means playback is under way at the reported position.
	ClockRunning

	// ClockStopped means the run is over. A clock that reported
	// ClockStopped must not report ClockRunning again for the same run.
	ClockStopped
)

// Clock is the playback position source the scheduler polls every tick.
//
// Position returns the current playback position in seconds and the state
// of the run. The position may jump backwards (a rewind seek); the
// scheduler handles that. Implementations must be safe for concurrent use.
type Clock interface {
	Position() (seconds float64, state ClockState)
}

// TransportClock is a wall-time playback clock with transport controls.
//
// It models the position of an externally playing piece of music: Play
// starts it at zero, Pause freezes it, Resume continues, SeekTo jumps to an
// arbitrary position, Stop ends the run. A paused clock still reports
// running so the scheduler keeps polling; only Stop (or reaching a set
// duration) finishes playback.
type TransportClock struct {
	mu        sync.Mutex
	startedAt time.Time // wall time the current playing stretch began
	offset    float64   // seconds accumulated before startedAt
	playing   bool
	stopped   bool
	started   bool
	duration  float64 // seconds; 0 means unbounded

	now func() time.Time // injectable for tests
}

// NewTransportClock creates a stopped clock. durationS bounds the run; pass
// 0 when the show length is unknown and Stop will end it.
func NewTransportClock(durationS float64) *TransportClock {
	return &TransportClock{
		duration: durationS,
		now:      time.Now,
	}
}

// Play starts playback from zero. Calling Play on a clock that already ran
// restarts it.
func (c *TransportClock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startedAt = c.now()
	c.offset = 0
	c.playing = true
	c.stopped = false
	c.started = true
}

// Pause freezes the position. No-op unless playing.
func (c *TransportClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing || c.stopped {
		return
	}
	c.offset += c.now().Sub(c.startedAt).Seconds()
	c.playing = false
}

// Resume continues from the paused position.
func (c *TransportClock) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || !c.started {
		return ErrClockStopped
	}
	if c.playing {
		return nil
	}
	c.startedAt = c.now()
	c.playing = true
	return nil
}

// SeekTo jumps to an absolute position in seconds. Negative positions clamp
// to zero. Seeking keeps the current playing/paused state.
func (c *TransportClock) SeekTo(seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || !c.started {
		return ErrClockStopped
	}
	if seconds < 0 {
		seconds = 0
	}
	c.offset = seconds
	c.startedAt = c.now()
	return nil
}

// Stop ends the run. Position keeps reporting the final position with
// running false.
func (c *TransportClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.playing {
		c.offset += c.now().Sub(c.startedAt).Seconds()
		c.playing = false
	}
	c.stopped = true
}

// Playing reports whether the clock is advancing right now.
func (c *TransportClock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing && !c.stopped
}

// Position implements Clock. Before the first Play it reports ClockWaiting.
func (c *TransportClock) Position() (float64, ClockState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos := c.offset
	if c.playing && !c.stopped {
		pos += c.now().Sub(c.startedAt).Seconds()
	}

	if c.stopped {
		return pos, ClockStopped
	}
	if !c.started {
		return 0, ClockWaiting
	}
	if c.duration > 0 && pos >= c.duration {
		// Past the end of the show. Freeze at the boundary.
		c.offset = c.duration
		c.playing = false
		c.stopped = true
		return c.duration, ClockStopped
	}
	return pos, ClockRunning
}
