package wled

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ControllerDef describes one logical controller and the device URLs backing
// it. A controller with several URLs mirrors the same directives to every
// device.
type ControllerDef struct {
	URLs        []string
	Description string
}

// Registry resolves logical controller ids to their device endpoints.
//
// The endpoint set is fixed at construction; playback never adds or removes
// controllers. All public methods are thread-safe because the underlying
// maps are read-only after New.
type Registry struct {
	endpoints map[string][]*Endpoint
	logger    Logger
}

// NewRegistry builds endpoints for every defined controller.
func NewRegistry(defs map[string]ControllerDef, cfg Config) *Registry {
	r := &Registry{
		endpoints: make(map[string][]*Endpoint, len(defs)),
		logger:    noopLogger{},
	}
	for id, def := range defs {
		eps := make([]*Endpoint, 0, len(def.URLs))
		for _, url := range def.URLs {
			eps = append(eps, NewEndpoint(id, url, cfg))
		}
		r.endpoints[id] = eps
	}
	return r
}

// SetLogger sets the logger for the registry and all its endpoints.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
	for _, eps := range r.endpoints {
		for _, ep := range eps {
			ep.SetLogger(logger)
		}
	}
}

// Resolve returns the endpoints backing a controller id.
// Returns ErrControllerNotFound for unknown ids.
func (r *Registry) Resolve(controllerID string) ([]*Endpoint, error) {
	eps, ok := r.endpoints[controllerID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrControllerNotFound, controllerID)
	}
	return eps, nil
}

// Controllers returns all controller ids in sorted order.
func (r *Registry) Controllers() []string {
	ids := make([]string, 0, len(r.endpoints))
	for id := range r.endpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EndpointCount returns the total number of device endpoints.
func (r *Registry) EndpointCount() int {
	n := 0
	for _, eps := range r.endpoints {
		n += len(eps)
	}
	return n
}

// Close releases every endpoint's session. Endpoint close never blocks on
// the network, but closing in parallel keeps shutdown flat when the fleet
// is large.
func (r *Registry) Close() error {
	var g errgroup.Group
	for _, eps := range r.endpoints {
		for _, ep := range eps {
			g.Go(ep.Close)
		}
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("closing endpoints: %w", err)
	}
	r.logger.Info("all endpoints closed", "count", r.EndpointCount())
	return nil
}
