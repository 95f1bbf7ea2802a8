package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/showsync/showsync-core/internal/show"
)

// showSummary is one row of the show listing.
type showSummary struct {
	ID        string  `json:"id"`
	Events    int     `json:"events"`
	DurationS float64 `json:"duration_s"`
}

// handleListShows returns the loaded show library.
func (s *Server) handleListShows(w http.ResponseWriter, _ *http.Request) {
	ids := s.player.Shows()
	summaries := make([]showSummary, 0, len(ids))
	for _, id := range ids {
		timeline, err := s.player.Timeline(id)
		if err != nil {
			continue
		}
		summaries = append(summaries, summariseShow(id, timeline))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"shows": summaries,
		"count": len(summaries),
	})
}

// handleGetShow returns one show's full timeline.
func (s *Server) handleGetShow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	timeline, err := s.player.Timeline(id)
	if err != nil {
		if errors.Is(err, show.ErrShowNotFound) {
			writeNotFound(w, "show not found")
			return
		}
		writeInternalError(w, "loading show failed")
		return
	}

	events := make([]map[string]any, 0, len(timeline))
	for _, event := range timeline {
		scenes := make([]map[string]any, 0, len(event.Scenes))
		for _, scene := range event.Scenes {
			scenes = append(scenes, map[string]any{
				"controller": scene.ControllerID,
				"directive":  directiveJSON(scene.Directive),
			})
		}
		events = append(events, map[string]any{
			"time_s": event.TimeS,
			"scenes": scenes,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"events": events,
	})
}

// directiveJSON renders a directive in its wire-friendly form.
func directiveJSON(d show.Directive) map[string]any {
	out := map[string]any{"kind": string(d.Kind)}
	switch d.Kind {
	case show.KindPreset:
		out["preset"] = d.Preset
	case show.KindPresetName:
		out["preset_name"] = d.PresetName
	case show.KindRawState:
		out["state"] = d.State
	}
	return out
}

// summariseShow condenses a timeline for the listing endpoint.
func summariseShow(id string, timeline show.Timeline) showSummary {
	summary := showSummary{ID: id, Events: len(timeline)}
	if len(timeline) > 0 {
		summary.DurationS = timeline[len(timeline)-1].TimeS
	}
	return summary
}
