// Package scheduler turns a playback clock and a show timeline into timed
// event dispatches.
//
// The Scheduler polls a Clock on a fixed tick and fires every timeline event
// whose timestamp has come due, strictly in timeline order, dispatching
// synchronously so events never overlap. Backward clock jumps rewind the
// cursor; the configured RewindPolicy decides whether re-passed events fire
// again.
//
// Two clocks ship with the package: TransportClock, a wall-time clock with
// play/pause/seek/stop transport controls, and TimecodeClock, which follows
// an external SMPTE timecode feed.
package scheduler
