// Package wled talks to WLED devices over their JSON HTTP API.
//
// An Endpoint wraps one device URL with a lazily created HTTP session and
// three nested timeout budgets (total, connect, read) so a dead device fails
// fast instead of dragging out an event dispatch. A Registry groups
// endpoints under logical controller ids as declared in configuration.
//
// Directives map onto the device API as follows: preset recalls post
// {"ps":n,"on":true} to /json, named presets resolve the id through the
// /presets catalog first, and raw state directives post their fields
// verbatim.
package wled
