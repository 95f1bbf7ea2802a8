// Package show defines the timed show data model and the YAML timings
// loader.
//
// A show is a Timeline: a time-sorted sequence of TimedEvents, each carrying
// one or more ControllerScenes. A scene binds a controller id to a Directive
// describing what the controller should display (a preset id, a preset name,
// or a raw JSON state).
//
// Timelines are loaded from a YAML timings file keyed by show id. Group
// entries fan a single directive out to several controllers at load time, so
// downstream code only ever sees per-controller scenes.
//
// Malformed entries are logged and skipped rather than failing the whole
// load; a missing shows collection is the one fatal condition.
package show
