package dispatch

import "errors"

var (
	// ErrRecordNotFound indicates a lookup for a dispatch record that does
	// not exist.
	ErrRecordNotFound = errors.New("dispatch: record not found")
)
