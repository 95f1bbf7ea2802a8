// ShowSync Core - Timed Lighting Show Controller
//
// This is the main entry point for the ShowSync Core application.
// ShowSync drives choreographed WLED lighting shows from a master clock:
//   - Show timelines loaded from a single YAML document
//   - Fan-out dispatch to WLED controllers with a shared deadline
//   - REST + WebSocket control surface, optional MQTT transport commands
//
// For the show document format, see: configs/shows.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/showsync/showsync-core/migrations"

	"github.com/showsync/showsync-core/internal/api"
	"github.com/showsync/showsync-core/internal/dispatch"
	"github.com/showsync/showsync-core/internal/infrastructure/config"
	"github.com/showsync/showsync-core/internal/infrastructure/database"
	"github.com/showsync/showsync-core/internal/infrastructure/influxdb"
	"github.com/showsync/showsync-core/internal/infrastructure/logging"
	"github.com/showsync/showsync-core/internal/infrastructure/mqtt"
	"github.com/showsync/showsync-core/internal/player"
	"github.com/showsync/showsync-core/internal/scheduler"
	"github.com/showsync/showsync-core/internal/show"
	"github.com/showsync/showsync-core/internal/wled"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// playbackPublishInterval bounds how often playback state and position are
// pushed to WebSocket clients, MQTT and InfluxDB. The scheduler ticks faster
// than any external consumer needs.
const playbackPublishInterval = 250 * time.Millisecond

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ShowSync Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	dispatchRepo := dispatch.NewSQLiteRepository(db.DB)

	// Build the controller registry from configuration
	registry := buildRegistry(cfg)
	registry.SetLogger(log)
	defer func() {
		log.Info("closing controller endpoints")
		if closeErr := registry.Close(); closeErr != nil {
			log.Error("error closing endpoints", "error", closeErr)
		}
	}()
	log.Info("controller registry initialised",
		"controllers", len(registry.Controllers()),
		"endpoints", registry.EndpointCount(),
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// WebSocket hub, shared between the API server and the playback hooks
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	topics := mqtt.Topics{}
	qos := byte(cfg.MQTT.QoS)

	// Dispatcher: fans each timeline event out to its controller endpoints
	// under one shared deadline, persists the outcome, and feeds observers.
	// The deadline is the per-call device budget plus a settling margin, so
	// individual calls always hit their own timeout first.
	dispatcher := dispatch.NewDispatcher(registry, cfg.DispatchWait(),
		dispatch.WithRepository(dispatchRepo),
		dispatch.WithDryRun(cfg.Scheduler.DryRun),
		dispatch.WithLogger(log),
		dispatch.WithOutcomeHook(func(controllerID string, outcomeErr error) {
			if mqttClient == nil {
				return
			}
			report := controllerHealth{
				ControllerID: controllerID,
				Reachable:    outcomeErr == nil,
				Timestamp:    time.Now().UTC().Format(time.RFC3339),
			}
			if outcomeErr != nil {
				report.Error = outcomeErr.Error()
			}
			if payload, marshalErr := json.Marshal(report); marshalErr == nil {
				// Retained so dashboards see the last known reachability.
				_ = mqttClient.Publish(topics.ControllerHealth(controllerID), payload, qos, true)
			}
		}),
		dispatch.WithResultHook(func(res dispatch.Result) {
			hub.Broadcast(api.ChannelDispatchResult, res)
			if mqttClient != nil {
				if payload, marshalErr := json.Marshal(res); marshalErr == nil {
					if pubErr := mqttClient.Publish(topics.EventDispatched(), payload, qos, false); pubErr != nil {
						log.Warn("publishing dispatch result", "error", pubErr)
					}
				}
			}
			if influxClient != nil {
				influxClient.WriteDispatchMetric(res.ShowID, res.EventTimeS,
					res.Attempted, res.Succeeded, res.TimedOut, res.Duration)
			}
		}),
	)
	if cfg.Scheduler.DryRun {
		log.Warn("dry run enabled: directives are logged, not transmitted")
	}

	// Load the show library
	library, err := show.LoadTimings(cfg.Shows.TimingsPath, log)
	if err != nil {
		return fmt.Errorf("loading show timings: %w", err)
	}
	log.Info("show library loaded",
		"path", cfg.Shows.TimingsPath,
		"shows", len(library),
	)

	rewind, err := scheduler.ParseRewindPolicy(cfg.Scheduler.RewindPolicy)
	if err != nil {
		return fmt.Errorf("scheduler config: %w", err)
	}

	// The per-tick hook keeps WebSocket clients on a live position feed;
	// heavier consumers (MQTT, InfluxDB) are served by watchPlayback below.
	playerOpts := []player.Option{
		player.WithRewindPolicy(rewind),
		player.WithLogger(log),
		player.WithPositionHook(func(showID string, seconds float64) {
			hub.Broadcast(api.ChannelPlaybackPosition, positionUpdate{
				ShowID:    showID,
				PositionS: seconds,
			})
		}),
	}
	if cfg.Scheduler.ClockSource == "timecode" {
		playerOpts = append(playerOpts, player.WithTimecodeSource(cfg.Scheduler.TimecodeFPS))
	}
	showPlayer := player.New(library, dispatcher, cfg.Tick(), playerOpts...)
	defer func() {
		log.Info("closing player")
		if closeErr := showPlayer.Close(); closeErr != nil {
			log.Error("error closing player", "error", closeErr)
		}
	}()
	log.Info("player initialised",
		"tick", cfg.Tick(),
		"rewind_policy", rewind,
		"clock_source", cfg.Scheduler.ClockSource,
	)

	go watchPlayback(ctx, showPlayer, hub, mqttClient, influxClient, qos)

	// Accept transport commands over MQTT (play/pause/resume/seek/stop)
	if mqttClient != nil {
		if subErr := mqttClient.Subscribe(topics.TransportCommand(), qos, transportCommandHandler(showPlayer, log)); subErr != nil {
			return fmt.Errorf("subscribing to transport commands: %w", subErr)
		}
		log.Info("transport command subscription active", "topic", topics.TransportCommand())
	}

	// In timecode mode the external master feeds SMPTE frames over MQTT
	if mqttClient != nil && cfg.Scheduler.ClockSource == "timecode" {
		if subErr := mqttClient.Subscribe(topics.TransportTimecode(), qos, timecodeFrameHandler(showPlayer)); subErr != nil {
			return fmt.Errorf("subscribing to timecode feed: %w", subErr)
		}
		log.Info("timecode feed subscription active",
			"topic", topics.TransportTimecode(),
			"fps", cfg.Scheduler.TimecodeFPS,
		)
	}

	// Start the API server
	apiServer, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Logger:       log,
		Player:       showPlayer,
		DispatchRepo: dispatchRepo,
		Registry:     registry,
		ExternalHub:  hub,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
		"tls", cfg.API.TLS.Enabled,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Player (stops any running show)
	// 3. MQTT (if enabled)
	// 4. InfluxDB (if enabled)
	// 5. Controller endpoints
	// 6. Database

	log.Info("ShowSync Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SHOWSYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SHOWSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildRegistry converts configured controllers into a WLED endpoint registry.
func buildRegistry(cfg *config.Config) *wled.Registry {
	defs := make(map[string]wled.ControllerDef, len(cfg.Controllers))
	for id, ctrl := range cfg.Controllers {
		defs[id] = wled.ControllerDef{
			URLs:        ctrl.URLs,
			Description: ctrl.Description,
		}
	}
	return wled.NewRegistry(defs, wled.Config{
		Timeout:        cfg.DeviceTimeout(),
		ConnectTimeout: cfg.DeviceConnectTimeout(),
		ReadTimeout:    cfg.DeviceReadTimeout(),
	})
}

// positionUpdate is the WebSocket payload for playback.position messages.
type positionUpdate struct {
	ShowID    string  `json:"show_id"`
	PositionS float64 `json:"position_s"`
}

// watchPlayback polls the player and publishes playback state transitions to
// WebSocket clients and MQTT, plus a throttled position feed to InfluxDB.
//
// State is polled rather than hooked: transitions happen on API and MQTT
// commands as well as at end-of-timeline, and a single poll loop sees all
// of them without wiring callbacks through every control surface.
func watchPlayback(ctx context.Context, p *player.Player, hub *api.Hub, mqttClient *mqtt.Client, influxClient *influxdb.Client, qos byte) {
	topics := mqtt.Topics{}
	ticker := time.NewTicker(playbackPublishInterval)
	defer ticker.Stop()

	var lastState player.State
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status := p.Status()
		if status.State != lastState {
			lastState = status.State
			hub.Broadcast(api.ChannelPlaybackState, status)
			if mqttClient != nil {
				if payload, err := json.Marshal(status); err == nil {
					// Retained so late subscribers see the current state.
					_ = mqttClient.Publish(topics.PlaybackState(), payload, qos, true)
				}
			}
		}

		if status.State == player.StatePlaying && influxClient != nil {
			influxClient.WritePlaybackPosition(status.ShowID, status.PositionS)
		}
	}
}

// transportCommand is the payload accepted on the MQTT transport topic.
type transportCommand struct {
	Command   string  `json:"command"`
	ShowID    string  `json:"show_id,omitempty"`
	PositionS float64 `json:"position_s,omitempty"`
}

// transportCommandHandler returns an MQTT handler that drives the player.
// Errors are returned to the MQTT client, which logs them; a malformed or
// rejected command never takes the subscription down.
func transportCommandHandler(p *player.Player, log *logging.Logger) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		var cmd transportCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("decoding transport command: %w", err)
		}

		var err error
		switch cmd.Command {
		case "play":
			err = p.Start(cmd.ShowID)
		case "pause":
			err = p.Pause()
		case "resume":
			err = p.Resume()
		case "seek":
			err = p.Seek(cmd.PositionS)
		case "stop":
			err = p.Stop()
		default:
			return fmt.Errorf("unknown transport command %q", cmd.Command)
		}
		if err != nil {
			return fmt.Errorf("transport %s: %w", cmd.Command, err)
		}

		log.Info("transport command executed",
			"command", cmd.Command,
			"show_id", cmd.ShowID,
		)
		return nil
	}
}

// timecodeFrameHandler returns an MQTT handler that feeds SMPTE frames to
// the player's timecode clock. Frames arriving with nothing playing are
// dropped; the master keeps publishing regardless of show selection.
func timecodeFrameHandler(p *player.Player) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		frame := strings.TrimSpace(string(payload))
		err := p.SyncTimecode(frame)
		if errors.Is(err, player.ErrNoActiveShow) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("timecode frame %q: %w", frame, err)
		}
		return nil
	}
}

// controllerHealth is the retained MQTT payload for per-controller
// reachability, derived from each device call's outcome.
type controllerHealth struct {
	ControllerID string `json:"controller_id"`
	Reachable    bool   `json:"reachable"`
	Error        string `json:"error,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// healthCheck verifies all infrastructure connections are healthy.
// MQTT and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
