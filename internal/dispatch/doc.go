// Package dispatch fans timeline events out to device endpoints.
//
// One dispatch covers one timeline event. Every (scene, endpoint) pair
// becomes a parallel device call, and all calls share a single deadline so
// the slowest device in an event costs at most that long. DispatchEvent is
// synchronous: the playback loop resumes only after the event is fully
// settled, which is what keeps events in order on the wire.
//
// Each dispatch produces a Result with partial-success counts and, when a
// Repository is wired in, an audit Record in SQLite.
package dispatch
