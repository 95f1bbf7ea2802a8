package player

import (
	"context"
	"sync"
	"time"

	"github.com/showsync/showsync-core/internal/scheduler"
	"github.com/showsync/showsync-core/internal/show"
)

// Logger defines the logging interface used by the Player.
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

// State is the player's transport state.
type State string

const (
	StateIdle     State = "idle"
	StatePlaying  State = "playing"
	StatePaused   State = "paused"
	StateFinished State = "finished"
)

// Status is a snapshot of the player for status surfaces. Timecode is only
// set when an external timecode feed drives playback.
type Status struct {
	State     State   `json:"state"`
	ShowID    string  `json:"show_id,omitempty"`
	PositionS float64 `json:"position_s"`
	Timecode  string  `json:"timecode,omitempty"`
}

// showClock is what a session needs from its position source.
type showClock interface {
	scheduler.Clock
	Stop()
}

// session is one running show: its clock, its scheduler and the goroutine
// driving them. Exactly one of transport and timecode is set, depending on
// what drives the clock.
type session struct {
	showID    string
	clock     showClock
	transport *scheduler.TransportClock
	timecode  *scheduler.TimecodeClock
	sched     *scheduler.Scheduler
	cancel    context.CancelFunc
	done      chan struct{}
}

func (s *session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Player runs shows from a library, one at a time.
//
// Start spins up a scheduler run on its own goroutine; the transport methods
// steer that run's clock. Starting a show while another is playing stops the
// old one first. All methods are safe for concurrent use, which is what the
// HTTP and MQTT control surfaces need.
type Player struct {
	library     show.Library
	dispatcher  scheduler.Dispatcher
	tick        time.Duration
	rewind      scheduler.RewindPolicy
	timecodeFPS float64
	onPosition  func(showID string, seconds float64)
	logger      Logger

	mu      sync.Mutex
	current *session
	closed  bool
}

// Option configures a Player.
type Option func(*Player)

// WithRewindPolicy sets the rewind policy passed to each run's scheduler.
func WithRewindPolicy(p scheduler.RewindPolicy) Option {
	return func(pl *Player) { pl.rewind = p }
}

// WithPositionHook registers a per-tick position callback.
func WithPositionHook(fn func(showID string, seconds float64)) Option {
	return func(pl *Player) { pl.onPosition = fn }
}

// WithTimecodeSource makes every run follow an external SMPTE timecode
// feed at the given frame rate instead of the built-in transport clock.
// Frames arrive through SyncTimecode; a run started before the first frame
// waits for it. Pause, Resume and Seek are refused in this mode, since the
// feed owns the position.
func WithTimecodeSource(fps float64) Option {
	return func(pl *Player) { pl.timecodeFPS = fps }
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(pl *Player) { pl.logger = logger }
}

// New creates a player over a loaded show library.
func New(library show.Library, dispatcher scheduler.Dispatcher, tick time.Duration, opts ...Option) *Player {
	p := &Player{
		library:    library,
		dispatcher: dispatcher,
		tick:       tick,
		rewind:     scheduler.RewindReplay,
		logger:     noopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Shows returns the available show ids in sorted order.
func (p *Player) Shows() []string {
	return p.library.Names()
}

// Timeline returns the timeline for one show.
// Returns show.ErrShowNotFound for unknown ids.
func (p *Player) Timeline(showID string) (show.Timeline, error) {
	timeline, ok := p.library[showID]
	if !ok {
		return nil, show.ErrShowNotFound
	}
	return timeline, nil
}

// Start begins playback of a show from the top, stopping any show already
// playing.
func (p *Player) Start(showID string) error {
	timeline, ok := p.library[showID]
	if !ok {
		return show.ErrShowNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPlayerClosed
	}

	p.stopLocked()

	sched := scheduler.New(p.dispatcher, p.tick,
		scheduler.WithRewindPolicy(p.rewind),
		scheduler.WithLogger(p.logger),
		scheduler.WithPositionHook(p.onPosition),
	)

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		showID: showID,
		sched:  sched,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if p.timecodeFPS > 0 {
		// The feed owns the position; the run waits for its first frame.
		sess.timecode = scheduler.NewTimecodeClock(p.timecodeFPS)
		sess.clock = sess.timecode
	} else {
		sess.transport = scheduler.NewTransportClock(0)
		sess.clock = sess.transport
		sess.transport.Play()
	}
	p.current = sess

	go func() {
		defer close(sess.done)
		defer cancel()
		if err := sched.Run(ctx, showID, timeline, sess.clock); err != nil && ctx.Err() == nil {
			p.logger.Error("show run failed", "show", showID, "error", err)
		}
	}()

	p.logger.Info("show playback started", "show", showID, "events", len(timeline))
	return nil
}

// Pause freezes the active show's clock.
// Returns ErrTimecodeControlled when the timecode feed owns the position.
func (p *Player) Pause() error {
	sess, err := p.activeSession()
	if err != nil {
		return err
	}
	if sess.transport == nil {
		return ErrTimecodeControlled
	}
	sess.transport.Pause()
	p.logger.Info("playback paused", "show", sess.showID)
	return nil
}

// Resume continues a paused show.
func (p *Player) Resume() error {
	sess, err := p.activeSession()
	if err != nil {
		return err
	}
	if sess.transport == nil {
		return ErrTimecodeControlled
	}
	if err := sess.transport.Resume(); err != nil {
		return err
	}
	p.logger.Info("playback resumed", "show", sess.showID)
	return nil
}

// Seek jumps the active show to an absolute position in seconds.
func (p *Player) Seek(seconds float64) error {
	sess, err := p.activeSession()
	if err != nil {
		return err
	}
	if sess.transport == nil {
		return ErrTimecodeControlled
	}
	if err := sess.transport.SeekTo(seconds); err != nil {
		return err
	}
	p.logger.Info("playback seek", "show", sess.showID, "to_s", seconds)
	return nil
}

// SyncTimecode feeds one received SMPTE frame to the active show's clock.
// The first frame of a waiting run starts playback at that position.
func (p *Player) SyncTimecode(tc string) error {
	sess, err := p.activeSession()
	if err != nil {
		return err
	}
	if sess.timecode == nil {
		return ErrNotTimecodeControlled
	}
	return sess.timecode.Update(tc)
}

// Stop ends the active show and waits for its run to unwind.
func (p *Player) Stop() error {
	p.mu.Lock()
	sess := p.current
	if sess == nil {
		p.mu.Unlock()
		return ErrNoActiveShow
	}
	p.current = nil
	p.mu.Unlock()

	stopSession(sess)
	p.logger.Info("playback stopped", "show", sess.showID)
	return nil
}

// Status returns a snapshot of the transport state.
func (p *Player) Status() Status {
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()

	if sess == nil {
		return Status{State: StateIdle}
	}

	pos, _ := sess.clock.Position()
	status := Status{ShowID: sess.showID, PositionS: pos}
	if sess.timecode != nil {
		status.Timecode = scheduler.FormatTimecode(pos, p.timecodeFPS)
	}
	switch {
	case sess.finished():
		status.State = StateFinished
	case sess.transport != nil && !sess.transport.Playing():
		status.State = StatePaused
	default:
		status.State = StatePlaying
	}
	return status
}

// Close stops any active show. The player cannot be reused afterwards.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.stopLocked()
	return nil
}

// activeSession returns the current unfinished session.
func (p *Player) activeSession() (*session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPlayerClosed
	}
	if p.current == nil || p.current.finished() {
		return nil, ErrNoActiveShow
	}
	return p.current, nil
}

func (p *Player) stopLocked() {
	if p.current == nil {
		return
	}
	stopSession(p.current)
	p.current = nil
}

func stopSession(sess *session) {
	sess.clock.Stop()
	sess.cancel()
	<-sess.done
}
