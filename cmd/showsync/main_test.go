package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/showsync/showsync-core/internal/dispatch"
	"github.com/showsync/showsync-core/internal/player"
	"github.com/showsync/showsync-core/internal/show"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("SHOWSYNC_CONFIG")
	defer os.Setenv("SHOWSYNC_CONFIG", originalEnv)

	os.Setenv("SHOWSYNC_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("SHOWSYNC_CONFIG")
	defer os.Setenv("SHOWSYNC_CONFIG", originalEnv)

	os.Unsetenv("SHOWSYNC_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("SHOWSYNC_CONFIG")
	defer os.Setenv("SHOWSYNC_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("SHOWSYNC_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_SuccessfulStartupAndShutdown tests full startup with MQTT and
// InfluxDB disabled. The run ends when the context times out, exercising the
// whole shutdown defer chain.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	showsPath := filepath.Join(tmpDir, "shows.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	showsContent := `
shows:
  test_song:
    - time: 0.0
      controllers:
        left_arch:
          preset: 1
    - time: 4.5
      controllers:
        left_arch:
          preset: 2
`
	if err := os.WriteFile(showsPath, []byte(showsContent), 0600); err != nil {
		t.Fatalf("failed to write shows file: %v", err)
	}

	configContent := `
shows:
  timings_path: "` + showsPath + `"

controllers:
  left_arch:
    urls: ["http://127.0.0.1:21324"]
    description: "test controller"
    type: wled

scheduler:
  tick_ms: 50
  rewind_policy: replay
  dry_run: true

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: info
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18090
  timeouts:
    read: 30
    write: 60
    idle: 120
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("SHOWSYNC_CONFIG")
	defer os.Setenv("SHOWSYNC_CONFIG", originalEnv)
	os.Setenv("SHOWSYNC_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}
}

// TestRun_MissingShowsFile verifies run fails when the timings file is absent.
func TestRun_MissingShowsFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
shows:
  timings_path: "` + filepath.Join(tmpDir, "nope.yaml") + `"

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18091
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("SHOWSYNC_CONFIG")
	defer os.Setenv("SHOWSYNC_CONFIG", originalEnv)
	os.Setenv("SHOWSYNC_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the shows file is missing")
	}
}

// nopDispatcher satisfies the scheduler's dispatcher without touching the
// network.
type nopDispatcher struct{}

func (nopDispatcher) DispatchEvent(_ context.Context, showID string, event show.TimedEvent) dispatch.Result {
	return dispatch.Result{ShowID: showID, EventTimeS: event.TimeS}
}

// TestTimecodeFrameHandler verifies the MQTT timecode feed drives a
// timecode-sourced player and tolerates idle periods and bad frames.
func TestTimecodeFrameHandler(t *testing.T) {
	lib := show.Library{
		"demo": show.Timeline{{
			TimeS:  0,
			Scenes: []show.ControllerScene{{ControllerID: "a", Directive: show.PresetDirective(1)}},
		}},
	}
	p := player.New(lib, nopDispatcher{}, time.Millisecond, player.WithTimecodeSource(30))
	defer p.Close()

	handler := timecodeFrameHandler(p)

	// The master publishes frames regardless of show selection; frames
	// with nothing playing are dropped, not errors.
	if err := handler("", []byte("00:00:01:00")); err != nil {
		t.Errorf("handler with idle player error = %v", err)
	}

	if err := p.Start("demo"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := handler("", []byte(" 00:00:02:00\n")); err != nil {
		t.Errorf("handler error = %v", err)
	}
	if status := p.Status(); status.PositionS < 2 {
		t.Errorf("position = %v, want >= 2 after frame", status.PositionS)
	}

	if err := handler("", []byte("garbage")); err == nil {
		t.Error("handler accepted a malformed frame")
	}
}
