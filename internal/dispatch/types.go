package dispatch

import "time"

// Result summarises one event dispatch: how many device calls were launched
// and how each group of them ended. A dispatch that loses some devices is
// still a completed dispatch; the show goes on with whatever answered.
type Result struct {
	ShowID     string  `json:"show_id"`
	EventTimeS float64 `json:"event_time_s"`
	DryRun     bool    `json:"dry_run"`

	// Attempted is the number of device calls launched: one per
	// (scene, endpoint) pair with a known controller.
	Attempted int `json:"attempted"`

	// Succeeded is the number of calls the device acknowledged in time.
	Succeeded int `json:"succeeded"`

	// TimedOut is the number of calls cut off by the shared deadline.
	TimedOut int `json:"timed_out"`

	// Skipped is the number of scenes naming a controller the registry
	// does not know. These launch no call at all.
	Skipped int `json:"skipped"`

	// Duration is the wall time the whole dispatch took. Bounded by the
	// shared deadline.
	Duration time.Duration `json:"duration_ns"`
}

// Failed returns calls that completed with an error other than the deadline.
func (r Result) Failed() int {
	return r.Attempted - r.Succeeded - r.TimedOut
}

// Record is a persisted dispatch result.
type Record struct {
	ID           string    `json:"id"`
	ShowID       string    `json:"show_id"`
	EventTimeS   float64   `json:"event_time_s"`
	DispatchedAt time.Time `json:"dispatched_at"`
	DryRun       bool      `json:"dry_run"`
	Attempted    int       `json:"attempted"`
	Succeeded    int       `json:"succeeded"`
	TimedOut     int       `json:"timed_out"`
	Skipped      int       `json:"skipped"`
	DurationMS   int64     `json:"duration_ms"`
}
