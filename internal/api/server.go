package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/philoflow/philoflow/internal/library"
	"github.com/philoflow/philoflow/internal/queue"
)

// maxRequestBody is the maximum allowed request body size (4 MB; saved
// sessions carry base64 images).
const maxRequestBody int64 = 4 << 20

// Importer yields raw text for the input box from an external source.
type Importer interface {
	Import(ctx context.Context, url string) (string, error)
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	scheduler *queue.Scheduler
	store     *queue.Store
	monitor   *queue.Monitor
	library   *library.Library
	importer  Importer

	// runCtx outlives individual requests; generation runs launched from a
	// handler are bound to it, not to the request context.
	runCtx context.Context

	corsOrigin string
	mux        *http.ServeMux
}

// New creates a new API server. runCtx should be the server's lifetime
// context.
func New(runCtx context.Context, sched *queue.Scheduler, store *queue.Store, mon *queue.Monitor, lib *library.Library, imp Importer, corsOrigin string) *Server {
	srv := &Server{
		scheduler:  sched,
		store:      store,
		monitor:    mon,
		library:    lib,
		importer:   imp,
		runCtx:     runCtx,
		corsOrigin: corsOrigin,
		mux:        http.NewServeMux(),
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(limitBody(jsonContent(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/generate", s.handleGenerate)
	s.mux.HandleFunc("GET /api/results", s.handleResults)
	s.mux.HandleFunc("GET /api/export", s.handleExport)
	s.mux.HandleFunc("POST /api/queue/pause", s.handlePause)
	s.mux.HandleFunc("POST /api/queue/resume", s.handleResume)
	s.mux.HandleFunc("POST /api/queue/clear", s.handleClear)
	s.mux.HandleFunc("DELETE /api/results/{id}", s.handleDeleteResult)
	s.mux.HandleFunc("PUT /api/results/{id}/prompt", s.handleEditPrompt)
	s.mux.HandleFunc("POST /api/results/{id}/regenerate", s.handleRegenerate)
	s.mux.HandleFunc("GET /api/rate", s.handleRate)
	s.mux.HandleFunc("POST /api/import", s.handleImport)
	s.mux.HandleFunc("GET /api/library", s.handleLibraryTree)
	s.mux.HandleFunc("POST /api/library/folders", s.handleCreateFolder)
	s.mux.HandleFunc("POST /api/library/folders/{id}/sessions", s.handleSaveSession)
	s.mux.HandleFunc("POST /api/library/sessions/{id}/load", s.handleLoadSession)
	s.mux.HandleFunc("PATCH /api/library/{id}", s.handleRenameNode)
	s.mux.HandleFunc("DELETE /api/library/{id}", s.handleDeleteNode)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origin := s.corsOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func trimName(s string) string {
	return strings.TrimSpace(s)
}
