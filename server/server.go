package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/chords"
	"github.com/RyanBlaney/sonido-chords/logging"
)

// Feed is the read side of a running engine
type Feed interface {
	Latest() (chords.Result, bool)
	Stats() chords.Stats
}

// IdentifyRequest asks for the best chord over a set of note names
type IdentifyRequest struct {
	Notes []string `json:"notes"`
}

// IdentifyResponse is the stateless classification of an IdentifyRequest
type IdentifyResponse struct {
	Notes     []string              `json:"notes"`
	Candidate *tonal.ChordCandidate `json:"candidate,omitempty"`
	Label     string                `json:"label"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Server exposes the latest chord over HTTP
type Server struct {
	feed    Feed
	router  *mux.Router
	handler http.Handler
	logger  logging.Logger
}

// New creates a server reading from feed. Browser clients on any origin
// may issue GET and POST requests.
func New(feed Feed) *Server {
	s := &Server{
		feed:   feed,
		router: mux.NewRouter().StrictSlash(true),
		logger: logging.WithFields(logging.Fields{
			"component": "http_server",
		}),
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/chord", s.handleChord).Methods("GET")
	s.router.HandleFunc("/api/stats", s.handleStats).Methods("GET")
	s.router.HandleFunc("/api/qualities", s.handleQualities).Methods("GET")
	s.router.HandleFunc("/api/identify", s.handleIdentify).Methods("POST")

	s.handler = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(s.router)

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP feed listening", logging.Fields{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"session_id": s.feed.Stats().SessionID,
	})
}

func (s *Server) handleChord(w http.ResponseWriter, r *http.Request) {
	latest, ok := s.feed.Latest()
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: "no audio analyzed yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.feed.Stats())
}

func (s *Server) handleQualities(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, tonal.ChordQualities())
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "could not read request body"})
		return
	}

	var req IdentifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON: " + err.Error()})
		return
	}

	classes := make([]chroma.PitchClass, 0, len(req.Notes))
	for _, n := range req.Notes {
		pc, err := chroma.ParsePitchClass(n)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		classes = append(classes, pc)
	}

	distinct := chroma.SortChromatic(classes)
	resp := IdentifyResponse{
		Notes: chroma.Names(distinct),
		Label: tonal.LabelInsufficientData,
	}
	if best, ok := tonal.BestCandidate(distinct); ok {
		resp.Candidate = &best
		resp.Label = best.Label()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", logging.Fields{"error": err.Error()})
	}
}
