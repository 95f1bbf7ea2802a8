package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/showsync/showsync-core/internal/show"
	"github.com/showsync/showsync-core/internal/wled"
)

// Logger defines the logging interface used by the Dispatcher.
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

// unit is one device call: a directive bound to a concrete endpoint.
type unit struct {
	endpoint  *wled.Endpoint
	directive show.Directive
}

// Dispatcher fans one timeline event out to every target endpoint in
// parallel under a single shared deadline.
//
// DispatchEvent blocks until every call has answered or the deadline has
// passed, never longer. That blocking is what keeps events strictly ordered:
// the playback loop does not look at the clock again until the current event
// is done.
type Dispatcher struct {
	registry  *wled.Registry
	wait      time.Duration
	dryRun    bool
	repo      Repository
	onResult  func(Result)
	onOutcome func(controllerID string, err error)
	logger    Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRepository makes the dispatcher persist a Record per dispatched event.
// Persistence failures are logged, never fatal.
func WithRepository(repo Repository) Option {
	return func(d *Dispatcher) { d.repo = repo }
}

// WithResultHook registers a callback invoked after every dispatch with the
// final Result. Used to feed live status surfaces. The callback runs on the
// dispatch goroutine and should return quickly.
func WithResultHook(fn func(Result)) Option {
	return func(d *Dispatcher) { d.onResult = fn }
}

// WithOutcomeHook registers a callback invoked once per device call with
// the target controller id and the call's outcome, nil on success. Calls
// still pending when the shared deadline passes report
// context.DeadlineExceeded. Used to feed per-controller reachability
// surfaces. Runs on the dispatch goroutine and should return quickly.
func WithOutcomeHook(fn func(controllerID string, err error)) Option {
	return func(d *Dispatcher) { d.onOutcome = fn }
}

// WithDryRun makes every dispatch log instead of touching the network.
func WithDryRun(dryRun bool) Option {
	return func(d *Dispatcher) { d.dryRun = dryRun }
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// NewDispatcher creates a dispatcher over the given endpoint registry.
// wait is the shared per-event deadline every device call must fit inside.
func NewDispatcher(registry *wled.Registry, wait time.Duration, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		wait:     wait,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DispatchEvent sends every scene of one timeline event to its endpoints.
//
// All device calls start together and share one deadline. Calls still
// outstanding when it passes are counted as timed out and their contexts
// cancelled; DispatchEvent does not wait for them to unwind. Scenes naming
// an unknown controller are counted as skipped and launch nothing.
func (d *Dispatcher) DispatchEvent(ctx context.Context, showID string, event show.TimedEvent) Result {
	start := time.Now()
	result := Result{
		ShowID:     showID,
		EventTimeS: event.TimeS,
		DryRun:     d.dryRun,
	}

	units := d.collectUnits(event, &result)
	result.Attempted = len(units)

	if len(units) > 0 {
		d.run(ctx, units, &result)
	}
	result.Duration = time.Since(start)

	d.logger.Info("event dispatched",
		"show", showID,
		"time_s", event.TimeS,
		"attempted", result.Attempted,
		"succeeded", result.Succeeded,
		"timed_out", result.TimedOut,
		"skipped", result.Skipped,
		"duration_ms", result.Duration.Milliseconds(),
		"dry_run", d.dryRun,
	)

	d.record(ctx, result)
	if d.onResult != nil {
		d.onResult(result)
	}
	return result
}

// collectUnits resolves every scene to its endpoints, counting unresolvable
// scenes as skipped.
func (d *Dispatcher) collectUnits(event show.TimedEvent, result *Result) []unit {
	var units []unit
	for _, scene := range event.Scenes {
		endpoints, err := d.registry.Resolve(scene.ControllerID)
		if err != nil {
			result.Skipped++
			d.logger.Warn("skipping scene for unknown controller",
				"controller", scene.ControllerID,
				"show", result.ShowID,
				"time_s", result.EventTimeS,
			)
			continue
		}
		for _, ep := range endpoints {
			units = append(units, unit{endpoint: ep, directive: scene.Directive})
		}
	}
	return units
}

// run launches one goroutine per unit and gathers outcomes until all have
// answered or the shared deadline passes.
func (d *Dispatcher) run(ctx context.Context, units []unit, result *Result) {
	ctx, cancel := context.WithTimeout(ctx, d.wait)
	defer cancel()

	type outcome struct {
		idx int
		err error
	}

	// Buffered so late finishers never block after we stop collecting.
	outcomes := make(chan outcome, len(units))
	for i, u := range units {
		go func(i int, u unit) {
			outcomes <- outcome{idx: i, err: u.endpoint.Apply(ctx, u.directive, d.dryRun)}
		}(i, u)
	}

	answered := make([]bool, len(units))
	pending := len(units)
	for pending > 0 {
		select {
		case out := <-outcomes:
			pending--
			answered[out.idx] = true
			switch {
			case out.err == nil:
				result.Succeeded++
			case errors.Is(out.err, context.DeadlineExceeded):
				result.TimedOut++
			default:
				d.logger.Warn("device call failed", "error", out.err)
			}
			d.reportOutcome(units[out.idx], out.err)
		case <-ctx.Done():
			// Whatever has not answered is out of time. Their contexts
			// are cancelled; they unwind on their own.
			result.TimedOut += pending
			pending = 0
			for i, done := range answered {
				if !done {
					d.reportOutcome(units[i], context.DeadlineExceeded)
				}
			}
		}
	}
}

func (d *Dispatcher) reportOutcome(u unit, err error) {
	if d.onOutcome == nil {
		return
	}
	d.onOutcome(u.endpoint.ControllerID(), err)
}

// record persists the result when a repository is configured.
func (d *Dispatcher) record(ctx context.Context, result Result) {
	if d.repo == nil {
		return
	}
	rec := Record{
		ID:           uuid.NewString(),
		ShowID:       result.ShowID,
		EventTimeS:   result.EventTimeS,
		DispatchedAt: time.Now().UTC(),
		DryRun:       result.DryRun,
		Attempted:    result.Attempted,
		Succeeded:    result.Succeeded,
		TimedOut:     result.TimedOut,
		Skipped:      result.Skipped,
		DurationMS:   result.Duration.Milliseconds(),
	}
	// Persistence must not inherit the event deadline; the write is tiny.
	if err := d.repo.Insert(context.WithoutCancel(ctx), rec); err != nil {
		d.logger.Error("recording dispatch failed", "error", err)
	}
}
