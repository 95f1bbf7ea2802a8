package player

import "errors"

var (
	// ErrNoActiveShow indicates a transport operation with nothing
	// playing.
	ErrNoActiveShow = errors.New("player: no active show")

	// ErrPlayerClosed indicates an operation on a closed player.
	ErrPlayerClosed = errors.New("player: closed")

	// ErrTimecodeControlled indicates a transport command on a show whose
	// position is owned by the external timecode feed.
	ErrTimecodeControlled = errors.New("player: playback is timecode controlled")

	// ErrNotTimecodeControlled indicates a timecode frame for a show
	// driven by the built-in transport clock.
	ErrNotTimecodeControlled = errors.New("player: playback is not timecode controlled")
)
