// Package player runs shows from a loaded library and exposes transport
// control over the active run.
//
// One show plays at a time. The player owns the run's clock and scheduler
// and maps transport commands (start, pause, resume, seek, stop) onto them;
// the HTTP API and the MQTT command topic both drive playback through this
// package.
package player
