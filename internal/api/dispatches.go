package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/showsync/showsync-core/internal/dispatch"
)

// defaultDispatchLimit bounds history listings when the client gives none.
const defaultDispatchLimit = 50

// handleListDispatches returns recent dispatch records, optionally filtered
// by show via ?show_id= and bounded by ?limit=.
func (s *Server) handleListDispatches(w http.ResponseWriter, r *http.Request) {
	if s.dispatchRepo == nil {
		writeNotFound(w, "dispatch history not enabled")
		return
	}

	limit := defaultDispatchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	var (
		records []dispatch.Record
		err     error
	)
	if showID := r.URL.Query().Get("show_id"); showID != "" {
		records, err = s.dispatchRepo.ListByShow(r.Context(), showID, limit)
	} else {
		records, err = s.dispatchRepo.ListRecent(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("listing dispatch records failed", "error", err)
		writeInternalError(w, "listing dispatch records failed")
		return
	}

	if records == nil {
		records = []dispatch.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dispatches": records,
		"count":      len(records),
	})
}

// handleGetDispatch returns one dispatch record by id.
func (s *Server) handleGetDispatch(w http.ResponseWriter, r *http.Request) {
	if s.dispatchRepo == nil {
		writeNotFound(w, "dispatch history not enabled")
		return
	}

	rec, err := s.dispatchRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, dispatch.ErrRecordNotFound) {
			writeNotFound(w, "dispatch record not found")
			return
		}
		s.logger.Error("loading dispatch record failed", "error", err)
		writeInternalError(w, "loading dispatch record failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
