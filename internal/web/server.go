// Package web provides an HTTP status server for the water-heater daemon.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/water-heater/internal/sensor"
	"github.com/sweeney/water-heater/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	tracker    *status.Tracker
	slider     *sensor.Slider
}

// New creates a Server that reads state from the given tracker. metrics may
// be nil. A non-nil slider enables the simulation page and reading endpoint.
func New(addr string, tracker *status.Tracker, metrics http.Handler, slider *sensor.Slider) *Server {
	s := &Server{tracker: tracker, slider: slider}

	r := mux.NewRouter()
	r.Use(logRequests)
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.html", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.json", s.handleJSON).Methods("GET")
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}
	if slider != nil {
		r.HandleFunc("/simulate", s.handleSimulate).Methods("GET")
		r.HandleFunc("/api/reading", s.handleReading).Methods("POST")
	}
	s.router = r

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.router
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
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderSimulate(w, s.slider)
}

// readingRequest is the body of POST /api/reading.
type readingRequest struct {
	TempC *float64 `json:"temp_c"`
}

func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	var req readingRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "malformed body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.TempC == nil {
		http.Error(w, "missing temp_c", http.StatusBadRequest)
		return
	}
	if err := s.slider.Set(*req.TempC); err != nil {
		if errors.Is(err, sensor.ErrOutOfRange) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.WithField("temp_c", *req.TempC).Debug("simulated reading set")
	w.WriteHeader(http.StatusNoContent)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("http request")
	})
}
