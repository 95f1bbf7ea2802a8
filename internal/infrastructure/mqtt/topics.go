package mqtt

import "fmt"

// Topic prefixes for the ShowSync MQTT hierarchy.
//
// Scheme: showsync/{category}/...
const (
	// TopicPrefix is the base for all ShowSync topics.
	TopicPrefix = "showsync"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "showsync/system"
)

// Topics provides builders for ShowSync MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	topics.PlaybackState() // "showsync/playback/state"
type Topics struct{}

// SystemStatus returns the topic for controller online/offline status.
// Retained; also used as the LWT topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// PlaybackState returns the topic for playback state transitions
// (selecting/playing/finished plus show and position). Retained.
func (Topics) PlaybackState() string {
	return TopicPrefix + "/playback/state"
}

// EventDispatched returns the topic for per-event dispatch results.
func (Topics) EventDispatched() string {
	return TopicPrefix + "/event/dispatched"
}

// TransportCommand returns the topic external controllers publish transport
// commands to (play, pause, resume, seek, stop).
func (Topics) TransportCommand() string {
	return TopicPrefix + "/transport/command"
}

// TransportTimecode returns the topic an external timecode master publishes
// SMPTE frames to. Payloads are plain "HH:MM:SS:FF" strings.
func (Topics) TransportTimecode() string {
	return TopicPrefix + "/transport/timecode"
}

// ControllerHealth returns the topic for per-controller reachability reports.
//
// Example: showsync/health/trunk_master
func (Topics) ControllerHealth(controllerID string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, controllerID)
}
