package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/showsync/showsync-core/internal/auth"
	"github.com/showsync/showsync-core/internal/dispatch"
	"github.com/showsync/showsync-core/internal/infrastructure/config"
	"github.com/showsync/showsync-core/internal/infrastructure/logging"
	"github.com/showsync/showsync-core/internal/player"
	"github.com/showsync/showsync-core/internal/scheduler"
	"github.com/showsync/showsync-core/internal/show"
)

// nullDispatcher satisfies the scheduler's dispatcher without any devices.
type nullDispatcher struct{}

func (nullDispatcher) DispatchEvent(_ context.Context, showID string, event show.TimedEvent) dispatch.Result {
	return dispatch.Result{ShowID: showID, EventTimeS: event.TimeS}
}

// fakeDispatchRepo is an in-memory dispatch.Repository for handler tests.
type fakeDispatchRepo struct {
	records []dispatch.Record
}

func (r *fakeDispatchRepo) Insert(_ context.Context, rec dispatch.Record) error {
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeDispatchRepo) GetByID(_ context.Context, id string) (*dispatch.Record, error) {
	for i := range r.records {
		if r.records[i].ID == id {
			return &r.records[i], nil
		}
	}
	return nil, dispatch.ErrRecordNotFound
}

func (r *fakeDispatchRepo) ListByShow(_ context.Context, showID string, limit int) ([]dispatch.Record, error) {
	var out []dispatch.Record
	for _, rec := range r.records {
		if rec.ShowID == showID && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeDispatchRepo) ListRecent(_ context.Context, limit int) ([]dispatch.Record, error) {
	if len(r.records) <= limit {
		return r.records, nil
	}
	return r.records[:limit], nil
}

func testShowLibrary() show.Library {
	return show.Library{
		"spooky-song": show.Timeline{
			{
				TimeS: 0.0,
				Scenes: []show.ControllerScene{
					{ControllerID: "trunk_master", Directive: show.PresetDirective(1)},
				},
			},
			{
				TimeS: 12.5,
				Scenes: []show.ControllerScene{
					{ControllerID: "trunk_master", Directive: show.PresetNameDirective("Strobe")},
				},
			},
		},
	}
}

type testServerOption func(*Deps)

func withSecurity(sec config.SecurityConfig) testServerOption {
	return func(d *Deps) { d.Security = sec }
}

func withRepo(repo dispatch.Repository) testServerOption {
	return func(d *Deps) { d.DispatchRepo = repo }
}

// newTestServer builds a server over a real player and returns its router.
func newTestServer(t *testing.T, opts ...testServerOption) (*Server, http.Handler) {
	t.Helper()

	p := player.New(testShowLibrary(), nullDispatcher{}, time.Millisecond,
		player.WithRewindPolicy(scheduler.RewindReplay))
	t.Cleanup(func() { p.Close() })

	deps := Deps{
		Logger:  logging.Default(),
		Player:  p,
		Version: "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	s, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.hub = NewHub(deps.WS, deps.Logger)
	return s, s.buildRouter()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestListShows(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/shows", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
	shows := body["shows"].([]any)
	first := shows[0].(map[string]any)
	if first["id"] != "spooky-song" || first["events"] != float64(2) || first["duration_s"] != 12.5 {
		t.Errorf("show summary = %v", first)
	}
}

func TestGetShow(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/shows/spooky-song", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	events := body["events"].([]any)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	first := events[0].(map[string]any)
	scenes := first["scenes"].([]any)
	directive := scenes[0].(map[string]any)["directive"].(map[string]any)
	if directive["kind"] != "preset" || directive["preset"] != float64(1) {
		t.Errorf("directive = %v", directive)
	}
}

func TestGetShowNotFound(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/shows/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPlaybackLifecycle(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/playback", nil)
	if body := decodeBody(t, rec); body["state"] != "idle" {
		t.Errorf("initial state = %v, want idle", body["state"])
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/playback/start", map[string]any{"show_id": "spooky-song"})
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["state"] != "playing" || body["show_id"] != "spooky-song" {
		t.Errorf("after start = %v", body)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/playback/pause", nil)
	if body := decodeBody(t, rec); body["state"] != "paused" {
		t.Errorf("after pause = %v", body)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/playback/seek", map[string]any{"position_s": 5.0})
	if rec.Code != http.StatusOK {
		t.Fatalf("seek status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/playback/resume", nil)
	if body := decodeBody(t, rec); body["state"] != "playing" {
		t.Errorf("after resume = %v", body)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/playback/stop", nil)
	if body := decodeBody(t, rec); body["state"] != "idle" {
		t.Errorf("after stop = %v", body)
	}
}

func TestPlaybackStartValidation(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/playback/start", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing show_id status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/playback/start", map[string]any{"show_id": "nope"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown show status = %d, want 404", rec.Code)
	}
}

func TestPlaybackTransportWithoutShow(t *testing.T) {
	_, router := newTestServer(t)

	for _, path := range []string{"pause", "resume", "stop"} {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/playback/"+path, nil)
		if rec.Code != http.StatusConflict {
			t.Errorf("%s status = %d, want 409", path, rec.Code)
		}
	}
}

func TestListDispatches(t *testing.T) {
	repo := &fakeDispatchRepo{records: []dispatch.Record{
		{ID: "a", ShowID: "spooky-song", EventTimeS: 1, DispatchedAt: time.Now(), Attempted: 2, Succeeded: 2},
		{ID: "b", ShowID: "other", EventTimeS: 2, DispatchedAt: time.Now(), Attempted: 1, Succeeded: 0, TimedOut: 1},
	}}
	_, router := newTestServer(t, withRepo(repo))

	rec := doJSON(t, router, http.MethodGet, "/api/v1/dispatches", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/dispatches?show_id=other", nil)
	if body := decodeBody(t, rec); body["count"] != float64(1) {
		t.Errorf("filtered count = %v, want 1", body["count"])
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/dispatches?limit=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/dispatches/a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["id"] != "a" {
		t.Errorf("record = %v", body)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/dispatches/zzz", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing record status = %d, want 404", rec.Code)
	}
}

func TestDispatchesDisabled(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/dispatches", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when history disabled", rec.Code)
	}
}

func testSecurity(t *testing.T, password string) config.SecurityConfig {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	return config.SecurityConfig{
		Auth: config.AuthConfig{Enabled: true, OperatorPasswordHash: hash},
		JWT:  config.JWTConfig{Secret: "0123456789abcdef0123456789abcdef", AccessTokenTTL: 15},
	}
}

func TestAuthFlow(t *testing.T) {
	sec := testSecurity(t, "showtime")
	_, router := newTestServer(t, withSecurity(sec))

	// Protected route without a token.
	rec := doJSON(t, router, http.MethodGet, "/api/v1/shows", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	// Wrong password.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]any{"password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want 401", rec.Code)
	}

	// Correct password yields a token.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]any{"password": "showtime"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	token := decodeBody(t, rec)["access_token"].(string)
	if token == "" {
		t.Fatal("empty access token")
	}

	// Token unlocks protected routes.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shows", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", out.Code)
	}

	// Garbage token is rejected.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/shows", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	out = httptest.NewRecorder()
	router.ServeHTTP(out, req)
	if out.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", out.Code)
	}
}

func TestLoginDisabled(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]any{"password": "x"})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 when auth disabled", rec.Code)
	}
}
