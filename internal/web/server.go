// Package web exposes a study session and source management as a JSON API.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/conorfennell/memora/internal/domain"
	"github.com/conorfennell/memora/internal/fsrs"
	"github.com/conorfennell/memora/internal/queue"
	"github.com/conorfennell/memora/internal/scheduler"
	"github.com/conorfennell/memora/internal/storage"
	"github.com/conorfennell/memora/internal/study"
	"github.com/conorfennell/memora/internal/sync"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	db       *storage.DB
	session  *study.Session
	syncer   *sync.Syncer
	settings queue.Settings
	logger   *slog.Logger
	router   *http.ServeMux
	now      func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, session *study.Session, syncer *sync.Syncer, settings queue.Settings, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		db:       db,
		session:  session,
		syncer:   syncer,
		settings: settings,
		logger:   logger,
		router:   http.NewServeMux(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /deck", s.handleGetDeck)
	s.router.HandleFunc("GET /review/next", s.handleGetNextReview)
	s.router.HandleFunc("POST /review/more", s.handlePostStudyMore)
	s.router.HandleFunc("POST /review/{id}", s.handlePostReview)
	s.router.HandleFunc("GET /cards/{id}", s.handleGetCard)

	s.router.HandleFunc("GET /sources", s.handleGetSources)
	s.router.HandleFunc("POST /sources", s.handlePostSource)
	s.router.HandleFunc("DELETE /sources/{id}", s.handleDeleteSource)
	s.router.HandleFunc("POST /sync", s.handlePostSync)
}

type progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Remaining int `json:"remaining"`
}

type deckResponse struct {
	study.Overview
	Session progress `json:"session"`
}

type reviewResponse struct {
	Card     domain.Card        `json:"card"`
	Options  []scheduler.Option `json:"options"`
	Progress progress           `json:"progress"`
}

type cardResponse struct {
	Card    domain.Card        `json:"card"`
	DueNow  bool               `json:"due_now"`
	History []domain.ReviewLog `json:"history"`
}

type answerResponse struct {
	Card domain.Card     `json:"card"`
	Next *reviewResponse `json:"next,omitempty"`
}

// ensureSession (re)builds the study queue when it is missing, drained or
// from an earlier day.
func (s *Server) ensureSession(now time.Time) error {
	if !s.session.Stale(now) {
		return nil
	}
	return s.session.Start(now)
}

func (s *Server) progress() progress {
	completed, total := s.session.Progress()
	return progress{Completed: completed, Total: total, Remaining: s.session.Remaining()}
}

// nextReview returns the head card with its rating preview, or nil when the
// session is done.
func (s *Server) nextReview(now time.Time) *reviewResponse {
	head, ok := s.session.Current()
	if !ok {
		return nil
	}
	options, _ := s.session.Preview(now)
	return &reviewResponse{Card: head, Options: options, Progress: s.progress()}
}

// handleGetDeck reports due counts, today's usage and session progress.
func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	if err := s.ensureSession(now); err != nil {
		s.serverError(w, "Error starting study session", err)
		return
	}

	cards, err := s.db.GetAll()
	if err != nil {
		s.serverError(w, "Error getting cards for deck view", err)
		return
	}
	today, err := s.db.DailyLog(now)
	if err != nil {
		s.serverError(w, "Error getting daily log", err)
		return
	}

	overview := study.Summarize(cards, s.settings, today, now)
	overview.LimitReached = s.session.LimitReached()
	writeJSON(w, http.StatusOK, deckResponse{Overview: overview, Session: s.progress()})
}

// handleGetNextReview returns the card at the head of the queue.
func (s *Server) handleGetNextReview(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	if err := s.ensureSession(now); err != nil {
		s.serverError(w, "Error starting study session", err)
		return
	}

	next := s.nextReview(now)
	if next == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

// handlePostReview rates the head card and returns it with the next one.
func (s *Server) handlePostReview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rating, err := fsrs.ParseRating(r.FormValue("rating"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var spent time.Duration
	if raw := r.FormValue("elapsed_ms"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			writeError(w, http.StatusBadRequest, "Invalid elapsed_ms")
			return
		}
		spent = time.Duration(ms) * time.Millisecond
	}

	now := s.now()
	if err := s.ensureSession(now); err != nil {
		s.serverError(w, "Error starting study session", err)
		return
	}

	updated, err := s.session.Answer(id, rating, now, spent)
	switch {
	case errors.Is(err, study.ErrNoCurrentCard), errors.Is(err, study.ErrCardMismatch):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.serverError(w, "Error recording review", err)
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{Card: updated, Next: s.nextReview(now)})
}

// handleGetCard returns one card with its review history.
func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	card, err := s.db.FindCardByID(id)
	switch {
	case errors.Is(err, storage.ErrCardNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.serverError(w, "Error getting card", err)
		return
	}

	history, err := s.db.ReviewLogsForCard(id)
	if err != nil {
		s.serverError(w, "Error getting review history", err)
		return
	}
	if history == nil {
		history = []domain.ReviewLog{}
	}
	writeJSON(w, http.StatusOK, cardResponse{
		Card:    *card,
		DueNow:  scheduler.IsDue(*card, s.now()),
		History: history,
	})
}

// handlePostStudyMore adds extra new cards beyond today's quota.
func (s *Server) handlePostStudyMore(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	if err := s.ensureSession(now); err != nil {
		s.serverError(w, "Error starting study session", err)
		return
	}

	added, err := s.session.StudyMore(now)
	if err != nil {
		s.serverError(w, "Error adding extra cards", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"added":    added,
		"progress": s.progress(),
	})
}

func (s *Server) handleGetSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.db.GetAllSources()
	if err != nil {
		s.serverError(w, "Error getting sources", err)
		return
	}
	if sources == nil {
		sources = []storage.Source{}
	}
	writeJSON(w, http.StatusOK, sources)
}

// handlePostSource registers a local directory or git URL.
func (s *Server) handlePostSource(w http.ResponseWriter, r *http.Request) {
	path := r.FormValue("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "Path cannot be empty")
		return
	}

	_, err := s.db.FindSourceByPath(path)
	switch {
	case err == nil:
		writeError(w, http.StatusConflict, "Source already exists")
		return
	case !errors.Is(err, storage.ErrSourceNotFound):
		s.serverError(w, "Error checking source", err)
		return
	}

	sourceType := sync.DetectType(path)
	id, err := s.db.InsertSource(path, sourceType, time.Time{})
	if err != nil {
		s.serverError(w, "Error inserting new source", err)
		return
	}
	s.logger.Info("Source added", "id", id, "type", sourceType, "path", path)
	writeJSON(w, http.StatusCreated, storage.Source{ID: id, Path: path, Type: sourceType})
}

// handleDeleteSource removes a source with its cards.
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid source ID")
		return
	}

	err = s.db.DeleteSource(id)
	switch {
	case errors.Is(err, storage.ErrSourceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.serverError(w, "Error deleting source", err)
		return
	}

	// The queue may still hold the deleted cards.
	s.session.Abandon()
	w.WriteHeader(http.StatusNoContent)
}

// handlePostSync reconciles every source in the foreground.
func (s *Server) handlePostSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.syncer.Run(r.Context(), s.now())
	if err != nil {
		s.serverError(w, "Error running sync", err)
		return
	}
	s.session.Abandon()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
