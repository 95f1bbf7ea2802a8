package wled

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/showsync/showsync-core/internal/show"
)

// Config contains the HTTP timeout budgets for device calls.
// Total bounds the whole call; Connect and Read bound its phases and must
// each fit inside Total.
type Config struct {
	Timeout        time.Duration // total call budget
	ConnectTimeout time.Duration // connection establishment
	ReadTimeout    time.Duration // response headers
}

// DefaultConfig returns the device timeout budgets used when none are
// configured. The values keep a single unreachable device from stalling an
// event dispatch for longer than the dispatcher's shared wait.
func DefaultConfig() Config {
	return Config{
		Timeout:        500 * time.Millisecond,
		ConnectTimeout: 200 * time.Millisecond,
		ReadTimeout:    300 * time.Millisecond,
	}
}

// Endpoint is one physical WLED device reachable at a base URL.
//
// The underlying HTTP session is created lazily on first use and reused
// afterwards. Endpoints are not safe for concurrent Apply calls from
// multiple goroutines against the same scene; the dispatcher guarantees at
// most one in-flight call per endpoint per event, and events never overlap.
type Endpoint struct {
	controllerID string
	baseURL      string
	cfg          Config
	logger       Logger

	mu     sync.Mutex
	client *http.Client
	closed bool
}

// NewEndpoint creates an endpoint for one device URL belonging to the given
// controller. The URL is used as-is apart from trailing-slash trimming, e.g.
// "http://192.168.1.50".
func NewEndpoint(controllerID, baseURL string, cfg Config) *Endpoint {
	if cfg.Timeout <= 0 {
		cfg = DefaultConfig()
	}
	return &Endpoint{
		controllerID: controllerID,
		baseURL:      strings.TrimRight(baseURL, "/"),
		cfg:          cfg,
		logger:       noopLogger{},
	}
}

// SetLogger sets the logger for the endpoint.
func (e *Endpoint) SetLogger(logger Logger) {
	e.logger = logger
}

// ControllerID returns the logical controller this endpoint belongs to.
func (e *Endpoint) ControllerID() string { return e.controllerID }

// BaseURL returns the device base URL.
func (e *Endpoint) BaseURL() string { return e.baseURL }

// Apply sends one directive to the device.
//
// Preset directives post {"ps":n,"on":true} to the JSON state API. Named
// presets are first resolved against the device's preset catalog; an unknown
// name returns ErrPresetNotFound without writing any state. Raw state
// directives post their fields verbatim.
//
// In dry-run mode the directive is logged and no network traffic occurs.
func (e *Endpoint) Apply(ctx context.Context, directive show.Directive, dryRun bool) error {
	if err := directive.Validate(); err != nil {
		return err
	}

	if dryRun {
		e.logger.Info("dry run, directive not sent",
			"controller", e.controllerID,
			"url", e.baseURL,
			"directive", directive.String(),
		)
		return nil
	}

	body, err := e.stateBody(ctx, directive)
	if err != nil {
		return err
	}
	return e.postState(ctx, body)
}

// stateBody builds the JSON state payload for a directive, resolving named
// presets against the device catalog first.
func (e *Endpoint) stateBody(ctx context.Context, directive show.Directive) ([]byte, error) {
	switch directive.Kind {
	case show.KindPreset:
		return presetBody(directive.Preset), nil

	case show.KindPresetName:
		id, err := e.resolvePresetID(ctx, directive.PresetName)
		if err != nil {
			return nil, err
		}
		return presetBody(id), nil

	case show.KindRawState:
		body, err := json.Marshal(directive.State)
		if err != nil {
			return nil, fmt.Errorf("encoding state: %w", err)
		}
		return body, nil

	default:
		return nil, fmt.Errorf("%w: kind %q", show.ErrInvalidDirective, directive.Kind)
	}
}

func presetBody(id int) []byte {
	return []byte(fmt.Sprintf(`{"ps":%d,"on":true}`, id))
}

// postState posts a JSON state body to the device.
func (e *Endpoint) postState(ctx context.Context, body []byte) error {
	client, err := e.httpClient()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building state request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("posting state to %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s from %s", ErrDeviceStatus, resp.Status, e.baseURL)
	}

	e.logger.Debug("state applied",
		"controller", e.controllerID,
		"url", e.baseURL,
		"status", resp.StatusCode,
	)
	return nil
}

// presetEntry is one record of the device preset catalog. Only the display
// name matters here; everything else is device-internal.
type presetEntry struct {
	Name string `json:"n"`
}

// resolvePresetID fetches the device preset catalog and returns the id whose
// display name exactly matches name.
func (e *Endpoint) resolvePresetID(ctx context.Context, name string) (int, error) {
	client, err := e.httpClient()
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/presets", nil)
	if err != nil {
		return 0, fmt.Errorf("building presets request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching presets from %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: %s fetching presets from %s", ErrDeviceStatus, resp.Status, e.baseURL)
	}

	// Catalog keys are preset ids as strings; slot 0 is reserved and never
	// carries a name.
	var catalog map[string]presetEntry
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return 0, fmt.Errorf("decoding presets from %s: %w", e.baseURL, err)
	}

	for key, entry := range catalog {
		if entry.Name != name {
			continue
		}
		id, err := strconv.Atoi(key)
		if err != nil {
			continue // non-numeric key, not a preset slot
		}
		return id, nil
	}
	return 0, fmt.Errorf("%w: %q on %s", ErrPresetNotFound, name, e.baseURL)
}

// httpClient returns the lazily created HTTP session for this endpoint.
func (e *Endpoint) httpClient() (*http.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if e.client == nil {
		e.client = &http.Client{
			Timeout: e.cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: e.cfg.ConnectTimeout,
				}).DialContext,
				ResponseHeaderTimeout: e.cfg.ReadTimeout,
				MaxIdleConnsPerHost:   1,
			},
		}
		e.logger.Debug("session opened", "controller", e.controllerID, "url", e.baseURL)
	}
	return e.client, nil
}

// Close releases the endpoint's HTTP session. Safe to call more than once;
// later Apply calls return ErrClosed.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.client != nil {
		e.client.CloseIdleConnections()
		e.client = nil
	}
	return nil
}
