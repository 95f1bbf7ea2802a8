package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/showsync/showsync-core/internal/player"
	"github.com/showsync/showsync-core/internal/show"
)

// startRequest is the request body for POST /playback/start.
type startRequest struct {
	ShowID string `json:"show_id"`
}

// seekRequest is the request body for POST /playback/seek.
type seekRequest struct {
	PositionS float64 `json:"position_s"`
}

// handlePlaybackStatus returns the current transport state.
func (s *Server) handlePlaybackStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Status())
}

// handlePlaybackStart begins playback of a show from the top.
func (s *Server) handlePlaybackStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ShowID == "" {
		writeBadRequest(w, "show_id is required")
		return
	}

	if err := s.player.Start(req.ShowID); err != nil {
		if errors.Is(err, show.ErrShowNotFound) {
			writeNotFound(w, "show not found")
			return
		}
		s.logger.Error("starting show failed", "show", req.ShowID, "error", err)
		writeInternalError(w, "starting show failed")
		return
	}
	writeJSON(w, http.StatusOK, s.player.Status())
}

// handlePlaybackPause freezes the active show.
func (s *Server) handlePlaybackPause(w http.ResponseWriter, _ *http.Request) {
	s.transportOp(w, s.player.Pause)
}

// handlePlaybackResume continues a paused show.
func (s *Server) handlePlaybackResume(w http.ResponseWriter, _ *http.Request) {
	s.transportOp(w, s.player.Resume)
}

// handlePlaybackStop ends the active show.
func (s *Server) handlePlaybackStop(w http.ResponseWriter, _ *http.Request) {
	s.transportOp(w, s.player.Stop)
}

// handlePlaybackSeek jumps the active show to an absolute position.
func (s *Server) handlePlaybackSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	s.transportOp(w, func() error { return s.player.Seek(req.PositionS) })
}

// transportOp runs one transport operation and writes the resulting status.
func (s *Server) transportOp(w http.ResponseWriter, op func() error) {
	if err := op(); err != nil {
		if errors.Is(err, player.ErrNoActiveShow) {
			writeConflict(w, "no active show")
			return
		}
		s.logger.Error("transport operation failed", "error", err)
		writeInternalError(w, "transport operation failed")
		return
	}
	writeJSON(w, http.StatusOK, s.player.Status())
}
