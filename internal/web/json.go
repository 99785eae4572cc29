package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sweeney/gesture-button/internal/button"
	"github.com/sweeney/gesture-button/internal/status"
)

// handleButton serves GET /buttons/{id}.json and POST /buttons/{id}/reset.
func (s *Server) handleButton(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/buttons/")

	if id, ok := strings.CutSuffix(rest, "/reset"); ok && id != "" {
		s.handleReset(w, r, id)
		return
	}

	id, ok := strings.CutSuffix(rest, ".json")
	if !ok || id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	b, found := s.tracker.Snapshot().Button(id)
	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatButtonJSON(b))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, id string) {
	if s.ctl == nil {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.ctl.Reset(id); err != nil {
		if errors.Is(err, button.ErrInvalidHandle) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
