// Package mqtt provides the MQTT client for ShowSync Core.
//
// The controller uses MQTT two ways:
//
//   - Publishing: retained system status (with LWT for crash detection),
//     retained playback state transitions, and per-event dispatch results,
//     so lighting desks and front-of-house displays can follow the show.
//   - Subscribing: transport commands (play/pause/resume/seek/stop) from
//     external control surfaces.
//
// MQTT is optional; when disabled in config the rest of the system runs
// unchanged. Subscriptions survive reconnects, and message handlers run in
// library goroutines with panic recovery.
package mqtt
