package show

import "errors"

var (
	// ErrMissingShows indicates the timings document has no top-level
	// shows collection. This is fatal: there is nothing to play.
	ErrMissingShows = errors.New("show: timings file has no 'shows' collection")

	// ErrInvalidDirective indicates a directive definition that cannot be
	// applied to a controller.
	ErrInvalidDirective = errors.New("show: invalid directive")

	// ErrMalformedGroup indicates a group entry that cannot be expanded.
	ErrMalformedGroup = errors.New("show: malformed group entry")

	// ErrShowNotFound indicates a lookup for a show id the library does
	// not contain.
	ErrShowNotFound = errors.New("show: show not found")
)
