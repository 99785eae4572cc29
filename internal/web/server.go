// Package web provides an HTTP status server for the gesture-button daemon.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/sweeney/gesture-button/internal/status"
)

// Controller performs actions on live buttons.
type Controller interface {
	// Reset returns the button with the given id to its idle state.
	Reset(id string) error
}

// ControllerFunc adapts a reset function to Controller.
type ControllerFunc func(id string) error

// Reset implements Controller.
func (f ControllerFunc) Reset(id string) error {
	return f(id)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	ctl        Controller
}

// New creates a Server that reads state from the given tracker. ctl may be
// nil, in which case the reset endpoint is not served.
func New(addr string, tracker *status.Tracker, ctl Controller) *Server {
	s := &Server{tracker: tracker, ctl: ctl}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/buttons/", s.handleButton)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
