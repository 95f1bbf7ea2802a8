// Package influxdb provides optional dispatch telemetry for ShowSync Core.
//
// Each dispatched timeline event writes one point (attempt/success/timeout
// counts plus fan-out latency) and the scheduler periodically records the
// playback position. Writes are batched and non-blocking so telemetry can
// never stall the dispatch path; async write failures surface through the
// SetOnError callback.
//
// The integration is disabled by default (influxdb.enabled in config.yaml).
package influxdb
