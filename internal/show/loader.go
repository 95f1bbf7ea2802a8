package show

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Logger defines the logging interface used by the loader.
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

// groupKey is the controller-map key that marks a controller-group entry.
const groupKey = "group"

// rawDocument mirrors the top level of a timings file.
type rawDocument struct {
	Shows map[string][]rawEvent `yaml:"shows"`
}

// rawEvent mirrors one timeline entry. Controllers stays a yaml.Node so the
// declaration order of controller entries survives decoding.
type rawEvent struct {
	Time        float64   `yaml:"time"`
	Controllers yaml.Node `yaml:"controllers"`
}

// LoadTimings reads and parses a show timings YAML file.
//
// Format:
//
//	shows:
//	  spooky-song:
//	    - time: 0.0
//	      controllers:
//	        trunk_master:
//	          preset: 1
//	        derpy_blade:
//	          scene:
//	            on: true
//	            fx: 85
//	        group:
//	          controllers: [left_arch, right_arch]
//	          preset_name: "PurpleFade"
//
// A missing top-level shows collection is fatal (ErrMissingShows wrapped).
// Malformed items are logged and skipped; the load continues.
func LoadTimings(path string, logger Logger) (Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading timings file: %w", err)
	}
	return ParseTimings(data, logger)
}

// ParseTimings parses timings YAML into a Library of sorted timelines.
func ParseTimings(data []byte, logger Logger) (Library, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing timings file: %w", err)
	}
	if doc.Shows == nil {
		return nil, ErrMissingShows
	}

	library := make(Library, len(doc.Shows))
	for showID, rawEvents := range doc.Shows {
		timeline := make(Timeline, 0, len(rawEvents))
		for _, raw := range rawEvents {
			if raw.Time < 0 {
				logger.Warn("skipping event with negative time",
					"show", showID,
					"time", raw.Time,
				)
				continue
			}

			timeline = append(timeline, TimedEvent{
				TimeS:  raw.Time,
				Scenes: parseControllers(showID, raw.Controllers, logger),
			})
		}
		timeline.sortStable()
		library[showID] = timeline
	}

	return library, nil
}

// parseControllers walks the controllers mapping of one event in declaration
// order, expanding group entries, and returns the resulting scenes.
func parseControllers(showID string, node yaml.Node, logger Logger) []ControllerScene {
	if node.Kind == 0 {
		return nil // event without a controllers map
	}
	if node.Kind != yaml.MappingNode {
		logger.Warn("controllers is not a mapping", "show", showID)
		return nil
	}

	var scenes []ControllerScene
	// Mapping node content alternates key, value.
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value

		var def map[string]any
		if err := node.Content[i+1].Decode(&def); err != nil {
			logger.Warn("skipping malformed controller entry",
				"show", showID,
				"controller", key,
				"error", err,
			)
			continue
		}

		expanded, err := parseControllerEntry(key, def)
		if err != nil {
			logger.Warn("skipping malformed controller entry",
				"show", showID,
				"controller", key,
				"error", err,
			)
			continue
		}
		scenes = append(scenes, expanded...)
	}
	return scenes
}

// parseControllerEntry converts one controller-map entry into scenes.
//
// A "group" entry expands to one scene per listed controller id, each
// carrying an identical copy of the remaining directive fields. A regular
// entry yields exactly one scene.
func parseControllerEntry(key string, def map[string]any) ([]ControllerScene, error) {
	if key == groupKey {
		return expandGroup(def)
	}

	directive, err := parseDirective(def)
	if err != nil {
		return nil, err
	}
	return []ControllerScene{{ControllerID: key, Directive: directive}}, nil
}

// expandGroup produces one scene per controller listed in a group entry.
func expandGroup(def map[string]any) ([]ControllerScene, error) {
	rawIDs, ok := def["controllers"]
	if !ok {
		return nil, fmt.Errorf("%w: group missing 'controllers' list", ErrMalformedGroup)
	}
	idList, ok := rawIDs.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: group 'controllers' must be a list", ErrMalformedGroup)
	}

	// The directive is everything except the controllers key.
	fields := make(map[string]any, len(def)-1)
	for k, v := range def {
		if k != "controllers" {
			fields[k] = v
		}
	}

	directive, err := parseDirective(fields)
	if err != nil {
		return nil, err
	}

	scenes := make([]ControllerScene, 0, len(idList))
	for _, rawID := range idList {
		id, ok := rawID.(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("%w: controller id %v is not a string", ErrMalformedGroup, rawID)
		}
		scenes = append(scenes, ControllerScene{ControllerID: id, Directive: directive})
	}
	return scenes, nil
}

// parseDirective converts a directive definition map into a Directive.
//
// Recognised forms, checked in order:
//   - {"preset": <int>, ...}
//   - {"preset_name": <string>, ...}
//   - {"scene": {<raw state>}, ...}
//   - anything else: the whole map is the raw state
func parseDirective(def map[string]any) (Directive, error) {
	if raw, ok := def["preset"]; ok {
		id, err := toInt(raw)
		if err != nil {
			return Directive{}, fmt.Errorf("%w: preset: %w", ErrInvalidDirective, err)
		}
		d := PresetDirective(id)
		return d, d.Validate()
	}

	if raw, ok := def["preset_name"]; ok {
		name, ok := raw.(string)
		if !ok {
			return Directive{}, fmt.Errorf("%w: preset_name must be a string", ErrInvalidDirective)
		}
		d := PresetNameDirective(name)
		return d, d.Validate()
	}

	if raw, ok := def["scene"]; ok {
		fields, ok := raw.(map[string]any)
		if !ok {
			return Directive{}, fmt.Errorf("%w: scene must be a mapping", ErrInvalidDirective)
		}
		d := RawStateDirective(fields)
		return d, d.Validate()
	}

	d := RawStateDirective(def)
	return d, d.Validate()
}

// toInt accepts the numeric types yaml.v3 produces for scalars.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%v (%T) is not an integer", v, v)
	}
}
