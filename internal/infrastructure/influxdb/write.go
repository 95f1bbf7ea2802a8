package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDispatchMetric records the outcome of one timeline event dispatch.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Tags keep cardinality low: show id only. Counts and latency go in fields.
func (c *Client) WriteDispatchMetric(showID string, eventTimeS float64, attempted, succeeded, timedOut int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"dispatch",
		map[string]string{
			"show_id": showID,
		},
		map[string]interface{}{
			"event_time_s": eventTimeS,
			"attempted":    attempted,
			"succeeded":    succeeded,
			"timed_out":    timedOut,
			"duration_ms":  duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePlaybackPosition records the playback clock position, sampled once
// per scheduler tick. Useful for correlating dispatch latency spikes with
// show position after the fact.
func (c *Client) WritePlaybackPosition(showID string, positionS float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"playback",
		map[string]string{
			"show_id": showID,
		},
		map[string]interface{}{
			"position_s": positionS,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
