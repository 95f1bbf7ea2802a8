package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// defaultTimecodeHold is how long a TimecodeClock keeps extrapolating after
// the last frame before freezing in place. A feed pushing frames several
// times a second never gets near it.
const defaultTimecodeHold = time.Second

// ParseTimecode converts an "HH:MM:SS:FF" SMPTE timecode into seconds at
// the given frame rate.
func ParseTimecode(tc string, fps float64) (float64, error) {
	if fps <= 0 {
		return 0, fmt.Errorf("%w: frame rate %v", ErrInvalidTimecode, fps)
	}

	parts := strings.Split(tc, ":")
	if len(parts) != 4 {
		return 0, fmt.Errorf("%w: %q (want HH:MM:SS:FF)", ErrInvalidTimecode, tc)
	}

	fields := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, tc)
		}
		fields[i] = n
	}

	hours, minutes, seconds, frames := fields[0], fields[1], fields[2], fields[3]
	if minutes > 59 || seconds > 59 || float64(frames) >= fps {
		return 0, fmt.Errorf("%w: %q at %v fps", ErrInvalidTimecode, tc, fps)
	}

	return float64(hours)*3600 + float64(minutes)*60 + float64(seconds) + float64(frames)/fps, nil
}

// FormatTimecode renders seconds as an "HH:MM:SS:FF" timecode at the given
// frame rate.
func FormatTimecode(seconds, fps float64) string {
	if seconds < 0 {
		seconds = 0
	}
	whole := int(seconds)
	frames := int((seconds - float64(whole)) * fps)
	return fmt.Sprintf("%02d:%02d:%02d:%02d", whole/3600, (whole/60)%60, whole%60, frames)
}

// TimecodeClock follows an external SMPTE timecode feed.
//
// Each Update snaps the position to the received frame; between frames the
// position extrapolates on wall time so a feed slower than the scheduler
// tick still produces smooth playback. When the feed goes quiet the clock
// holds its last position until frames return or Stop is called.
type TimecodeClock struct {
	fps  float64
	hold time.Duration

	mu        sync.Mutex
	position  float64
	updatedAt time.Time
	started   bool
	stopped   bool

	now func() time.Time // injectable for tests
}

// NewTimecodeClock creates a clock for a feed at the given frame rate.
func NewTimecodeClock(fps float64) *TimecodeClock {
	return &TimecodeClock{
		fps:  fps,
		hold: defaultTimecodeHold,
		now:  time.Now,
	}
}

// Update snaps the clock to a received timecode frame. The first frame
// starts the run.
func (c *TimecodeClock) Update(tc string) error {
	seconds, err := ParseTimecode(tc, c.fps)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrClockStopped
	}
	c.position = seconds
	c.updatedAt = c.now()
	c.started = true
	return nil
}

// Stop ends the run.
func (c *TimecodeClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

// Position implements Clock. Before the first frame it reports ClockWaiting
// so a run can start ahead of the feed.
func (c *TimecodeClock) Position() (float64, ClockState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return c.position, ClockStopped
	}
	if !c.started {
		return 0, ClockWaiting
	}

	sinceFrame := c.now().Sub(c.updatedAt)
	if sinceFrame > c.hold {
		// Feed is quiet. Hold position rather than drifting past events
		// the source never reached.
		return c.position, ClockRunning
	}
	return c.position + sinceFrame.Seconds(), ClockRunning
}
