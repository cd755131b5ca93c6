// Package web exposes the JSON API consumed by the browser frontend.
// Authentication is handled upstream; the caller's identity arrives in the
// X-User-ID header.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/recallforge/recallforge/internal/domain"
	"github.com/recallforge/recallforge/internal/fsrs"
	"github.com/recallforge/recallforge/internal/importer"
	"github.com/recallforge/recallforge/internal/progress"
	"github.com/recallforge/recallforge/internal/review"
	"github.com/recallforge/recallforge/internal/storage"
)

// Server holds the dependencies for the HTTP API.
type Server struct {
	db       *storage.DB
	reviews  *review.Service
	progress *progress.Service
	importer *importer.Importer
	validate *validator.Validate
	router   *http.ServeMux
	handler  http.Handler
}

// NewServer creates and configures a new server. corsOrigins lists the
// frontend origins allowed to call the API.
func NewServer(db *storage.DB, reviews *review.Service, prog *progress.Service, imp *importer.Importer, corsOrigins []string) *Server {
	s := &Server{
		db:       db,
		reviews:  reviews,
		progress: prog,
		importer: imp,
		validate: validator.New(),
		router:   http.NewServeMux(),
	}
	s.routes()
	s.handler = cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-User-ID"},
	}).Handler(s.router)
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	// Review surface.
	s.router.HandleFunc("GET /api/reviews/due", s.handleGetDue())
	s.router.HandleFunc("GET /api/reviews/due/count", s.handleGetDueCount())
	s.router.HandleFunc("POST /api/reviews/{questionID}", s.handlePostReview())
	s.router.HandleFunc("GET /api/reviews/{questionID}/preview", s.handleGetPreview())

	// Study sessions.
	s.router.HandleFunc("POST /api/sessions", s.handlePostSession())
	s.router.HandleFunc("POST /api/sessions/{sessionID}/answers", s.handlePostAnswer())
	s.router.HandleFunc("POST /api/sessions/{sessionID}/complete", s.handlePostComplete())

	// Question bank.
	s.router.HandleFunc("GET /api/objectives", s.handleGetObjectives())
	s.router.HandleFunc("POST /api/objectives", s.handlePostObjective())
	s.router.HandleFunc("GET /api/objectives/{objectiveID}/questions", s.handleGetObjectiveQuestions())
	s.router.HandleFunc("GET /api/objectives/{objectiveID}/mastery", s.handleGetObjectiveMastery())
	s.router.HandleFunc("POST /api/questions", s.handlePostQuestion())
	s.router.HandleFunc("DELETE /api/questions/{questionID}", s.handleDeleteQuestion())

	// Progress dashboard.
	s.router.HandleFunc("GET /api/progress", s.handleGetProgress())

	// Deck source management.
	s.router.HandleFunc("GET /api/sources", s.handleGetSources())
	s.router.HandleFunc("POST /api/sources", s.handlePostSource())
	s.router.HandleFunc("DELETE /api/sources/{sourceID}", s.handleDeleteSource())
	s.router.HandleFunc("POST /api/sync", s.handlePostSync())
}

// userID extracts the caller's identity from the X-User-ID header.
func userID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return uuid.Nil, errors.New("missing X-User-ID header")
	}
	return uuid.Parse(raw)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps domain and storage errors onto HTTP statuses. Unexpected
// errors are logged and hidden behind a generic 500.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidGrade):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, fsrs.ErrOutOfOrderReview):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrStaleWrite):
		respondJSON(w, http.StatusConflict, errorResponse{Error: "please retry: a concurrent review was recorded"})
	case errors.Is(err, review.ErrSessionCompleted):
		respondJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrDuplicate):
		respondJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func respondBadRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
