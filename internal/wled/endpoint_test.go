package wled

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/showsync/showsync-core/internal/show"
)

// fakeDevice is an httptest-backed WLED device that records state writes.
type fakeDevice struct {
	server  *httptest.Server
	presets map[string]map[string]any
	status  int

	stateWrites atomic.Int64
	lastBody    atomic.Value // string
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	d := &fakeDevice{
		presets: map[string]map[string]any{},
		status:  http.StatusOK,
	}
	d.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/json":
			body, _ := io.ReadAll(r.Body)
			d.lastBody.Store(string(body))
			d.stateWrites.Add(1)
			w.WriteHeader(d.status)
		case r.Method == http.MethodGet && r.URL.Path == "/presets":
			json.NewEncoder(w).Encode(d.presets) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(d.server.Close)
	return d
}

func (d *fakeDevice) body() string {
	if v := d.lastBody.Load(); v != nil {
		return v.(string)
	}
	return ""
}

func testConfig() Config {
	return Config{
		Timeout:        2 * time.Second,
		ConnectTimeout: time.Second,
		ReadTimeout:    time.Second,
	}
}

func TestEndpointApplyPreset(t *testing.T) {
	device := newFakeDevice(t)
	ep := NewEndpoint("trunk_master", device.server.URL, testConfig())
	defer ep.Close()

	if err := ep.Apply(context.Background(), show.PresetDirective(5), false); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got, want := device.body(), `{"ps":5,"on":true}`; got != want {
		t.Errorf("state body = %s, want %s", got, want)
	}
}

func TestEndpointApplyPresetName(t *testing.T) {
	device := newFakeDevice(t)
	device.presets = map[string]map[string]any{
		"0": {},
		"3": {"n": "PurpleFade", "on": true},
		"7": {"n": "Strobe"},
	}
	ep := NewEndpoint("left_arch", device.server.URL, testConfig())
	defer ep.Close()

	if err := ep.Apply(context.Background(), show.PresetNameDirective("PurpleFade"), false); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got, want := device.body(), `{"ps":3,"on":true}`; got != want {
		t.Errorf("state body = %s, want %s", got, want)
	}
}

func TestEndpointApplyPresetNameNotFound(t *testing.T) {
	device := newFakeDevice(t)
	device.presets = map[string]map[string]any{"1": {"n": "Other"}}
	ep := NewEndpoint("left_arch", device.server.URL, testConfig())
	defer ep.Close()

	err := ep.Apply(context.Background(), show.PresetNameDirective("Missing"), false)
	if !errors.Is(err, ErrPresetNotFound) {
		t.Fatalf("Apply() error = %v, want ErrPresetNotFound", err)
	}
	// An unresolved name must not write any state.
	if n := device.stateWrites.Load(); n != 0 {
		t.Errorf("device received %d state writes, want 0", n)
	}
}

func TestEndpointApplyRawState(t *testing.T) {
	device := newFakeDevice(t)
	ep := NewEndpoint("derpy_blade", device.server.URL, testConfig())
	defer ep.Close()

	d := show.RawStateDirective(map[string]any{"on": true, "bri": 200})
	if err := ep.Apply(context.Background(), d, false); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	var sent map[string]any
	if err := json.Unmarshal([]byte(device.body()), &sent); err != nil {
		t.Fatalf("device received invalid JSON: %v", err)
	}
	if sent["on"] != true || sent["bri"] != float64(200) {
		t.Errorf("device received %v", sent)
	}
}

func TestEndpointApplyErrorStatus(t *testing.T) {
	device := newFakeDevice(t)
	device.status = http.StatusInternalServerError
	ep := NewEndpoint("trunk_master", device.server.URL, testConfig())
	defer ep.Close()

	err := ep.Apply(context.Background(), show.PresetDirective(1), false)
	if !errors.Is(err, ErrDeviceStatus) {
		t.Errorf("Apply() error = %v, want ErrDeviceStatus", err)
	}
}

func TestEndpointApplyDryRun(t *testing.T) {
	device := newFakeDevice(t)
	ep := NewEndpoint("trunk_master", device.server.URL, testConfig())
	defer ep.Close()

	if err := ep.Apply(context.Background(), show.PresetDirective(1), true); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if n := device.stateWrites.Load(); n != 0 {
		t.Errorf("dry run reached the device: %d writes", n)
	}
}

func TestEndpointApplyInvalidDirective(t *testing.T) {
	ep := NewEndpoint("x", "http://127.0.0.1:1", testConfig())
	defer ep.Close()

	err := ep.Apply(context.Background(), show.PresetDirective(0), false)
	if !errors.Is(err, show.ErrInvalidDirective) {
		t.Errorf("Apply() error = %v, want ErrInvalidDirective", err)
	}
}

func TestEndpointApplyContextCancelled(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	ep := NewEndpoint("slow", server.URL, testConfig())
	defer ep.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := ep.Apply(ctx, show.PresetDirective(1), false)
	if err == nil {
		t.Fatal("Apply() succeeded against a hung device")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Apply() took %v, expected prompt abort on context deadline", elapsed)
	}
}

func TestEndpointClose(t *testing.T) {
	device := newFakeDevice(t)
	ep := NewEndpoint("trunk_master", device.server.URL, testConfig())

	if err := ep.Apply(context.Background(), show.PresetDirective(1), false); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if err := ep.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := ep.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	err := ep.Apply(context.Background(), show.PresetDirective(1), false)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Apply() after Close error = %v, want ErrClosed", err)
	}
}

func TestRegistryResolve(t *testing.T) {
	defs := map[string]ControllerDef{
		"trunk_master": {URLs: []string{"http://10.0.0.1", "http://10.0.0.2"}},
		"left_arch":    {URLs: []string{"http://10.0.0.3"}},
	}
	reg := NewRegistry(defs, testConfig())
	defer reg.Close()

	eps, err := reg.Resolve("trunk_master")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(eps) != 2 {
		t.Fatalf("Resolve() returned %d endpoints, want 2", len(eps))
	}
	for _, ep := range eps {
		if ep.ControllerID() != "trunk_master" {
			t.Errorf("endpoint controller = %q", ep.ControllerID())
		}
	}

	if _, err := reg.Resolve("nope"); !errors.Is(err, ErrControllerNotFound) {
		t.Errorf("Resolve(nope) error = %v, want ErrControllerNotFound", err)
	}

	if got := reg.Controllers(); len(got) != 2 || got[0] != "left_arch" {
		t.Errorf("Controllers() = %v", got)
	}
	if got := reg.EndpointCount(); got != 3 {
		t.Errorf("EndpointCount() = %d, want 3", got)
	}
}
