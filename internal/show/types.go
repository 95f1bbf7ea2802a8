package show

import (
	"fmt"
	"sort"
)

// DirectiveKind identifies which variant of a Directive is populated.
type DirectiveKind string

// Directive variants. The set is closed: every consumer switches over these
// three kinds and treats anything else as invalid.
const (
	// KindPreset recalls a device preset by number.
	KindPreset DirectiveKind = "preset"

	// KindPresetName recalls a device preset by display name, resolved
	// against the device's preset catalog at dispatch time.
	KindPresetName DirectiveKind = "preset_name"

	// KindRawState applies a raw JSON state object verbatim.
	KindRawState DirectiveKind = "state"
)

// Directive is a single instruction for one device: preset recall by number
// or name, or a raw state merge. Immutable once constructed - the State map
// is deep-copied by the constructor.
type Directive struct {
	Kind       DirectiveKind
	Preset     int
	PresetName string
	State      map[string]any
}

// PresetDirective returns a preset-by-number directive.
func PresetDirective(id int) Directive {
	return Directive{Kind: KindPreset, Preset: id}
}

// PresetNameDirective returns a preset-by-name directive.
func PresetNameDirective(name string) Directive {
	return Directive{Kind: KindPresetName, PresetName: name}
}

// RawStateDirective returns a raw-state directive.
// The fields map is deep-copied so later mutation of the argument cannot
// change the directive.
func RawStateDirective(fields map[string]any) Directive {
	return Directive{Kind: KindRawState, State: deepCopyMap(fields)}
}

// Validate checks that exactly the fields for the directive's kind are set.
func (d Directive) Validate() error {
	switch d.Kind {
	case KindPreset:
		if d.Preset < 1 {
			return fmt.Errorf("%w: preset id %d (must be >= 1)", ErrInvalidDirective, d.Preset)
		}
	case KindPresetName:
		if d.PresetName == "" {
			return fmt.Errorf("%w: empty preset name", ErrInvalidDirective)
		}
	case KindRawState:
		if len(d.State) == 0 {
			return fmt.Errorf("%w: empty state", ErrInvalidDirective)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDirective, d.Kind)
	}
	return nil
}

// String renders the directive for log output.
func (d Directive) String() string {
	switch d.Kind {
	case KindPreset:
		return fmt.Sprintf("preset(%d)", d.Preset)
	case KindPresetName:
		return fmt.Sprintf("preset_name(%s)", d.PresetName)
	case KindRawState:
		return fmt.Sprintf("state(%d fields)", len(d.State))
	default:
		return "invalid"
	}
}

// ControllerScene pairs a logical controller id with the directive it should
// receive. The same controller may appear more than once in one event; no
// dedup is performed.
type ControllerScene struct {
	ControllerID string
	Directive    Directive
}

// TimedEvent is a single timepoint in a show: all controller scenes that
// fire together at TimeS seconds into playback.
type TimedEvent struct {
	TimeS  float64
	Scenes []ControllerScene
}

// Timeline is the full ordered event list for one show, sorted ascending by
// TimeS. Events with equal TimeS keep their declaration order.
type Timeline []TimedEvent

// sortStable orders the timeline by TimeS, preserving declaration order for
// equal timestamps.
func (t Timeline) sortStable() {
	sort.SliceStable(t, func(i, j int) bool {
		return t[i].TimeS < t[j].TimeS
	})
}

// Library maps show ids to their timelines.
type Library map[string]Timeline

// Names returns all show ids in sorted order.
func (l Library) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, item := range val {
			cpy[i] = deepCopyValue(item)
		}
		return cpy
	default:
		return v
	}
}
