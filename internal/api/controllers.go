package api

import "net/http"

// controllerSummary is one row of the controller listing.
type controllerSummary struct {
	ID        string   `json:"id"`
	Endpoints []string `json:"endpoints"`
}

// handleListControllers returns the configured controller fleet.
func (s *Server) handleListControllers(w http.ResponseWriter, _ *http.Request) {
	if s.registry == nil {
		writeNotFound(w, "controller registry not enabled")
		return
	}

	ids := s.registry.Controllers()
	controllers := make([]controllerSummary, 0, len(ids))
	for _, id := range ids {
		endpoints, err := s.registry.Resolve(id)
		if err != nil {
			continue
		}
		urls := make([]string, 0, len(endpoints))
		for _, ep := range endpoints {
			urls = append(urls, ep.BaseURL())
		}
		controllers = append(controllers, controllerSummary{ID: id, Endpoints: urls})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"controllers": controllers,
		"count":       len(controllers),
	})
}
