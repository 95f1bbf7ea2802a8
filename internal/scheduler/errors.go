package scheduler

import "errors"

var (
	// ErrInvalidRewindPolicy indicates an unrecognised rewind policy name.
	ErrInvalidRewindPolicy = errors.New("scheduler: invalid rewind policy")

	// ErrClockStopped indicates a transport operation on a stopped clock.
	ErrClockStopped = errors.New("scheduler: clock stopped")

	// ErrInvalidTimecode indicates a timecode string that does not parse.
	ErrInvalidTimecode = errors.New("scheduler: invalid timecode")
)
