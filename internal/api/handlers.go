package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/philoflow/philoflow/internal/library"
	"github.com/philoflow/philoflow/internal/model"
	"github.com/philoflow/philoflow/internal/queue"
)

// ---------------------------------------------------------------------------
// POST /api/generate
// ---------------------------------------------------------------------------

type generateRequest struct {
	Text           string `json:"text"`
	Mode           string `json:"mode"`
	Language       string `json:"language"`
	OCRClean       bool   `json:"ocr_clean"`
	SkipHeaders    bool   `json:"skip_headers"`
	HD             bool   `json:"hd"`
	AspectRatio    string `json:"aspect_ratio"`
	DirectTemplate string `json:"direct_template"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Mode == "" {
		req.Mode = model.ModeClassic
	}
	if !model.ValidMode(req.Mode) {
		writeError(w, http.StatusBadRequest, "mode must be CLASSIC or MODERN")
		return
	}
	if req.Language == "" {
		req.Language = model.LangZH
	}
	if !model.ValidLanguage(req.Language) {
		writeError(w, http.StatusBadRequest, "language must be ZH or EN")
		return
	}

	err := s.scheduler.Start(s.runCtx, req.Text, queue.RunOptions{
		Mode:           req.Mode,
		Language:       req.Language,
		OCRClean:       req.OCRClean,
		SkipHeaders:    req.SkipHeaders,
		HD:             req.HD,
		AspectRatio:    req.AspectRatio,
		DirectTemplate: req.DirectTemplate,
	})
	switch {
	case errors.Is(err, queue.ErrBusy):
		writeError(w, http.StatusConflict, "a generation run is already processing")
		return
	case errors.Is(err, queue.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "input contains no processable segments")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	writeJSON(w, http.StatusAccepted, s.scheduler.Snapshot())
}

// ---------------------------------------------------------------------------
// GET /api/results  |  GET /api/export
// ---------------------------------------------------------------------------

func (s *Server) handleResults(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Snapshot())
}

// handleExport returns only completed records (concept and image both
// present) for the external ZIP/DOCX collaborators.
func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	all := s.store.List()
	out := make([]model.ResultRecord, 0, len(all))
	for _, rec := range all {
		if rec.Status == model.StatusSuccess && rec.Concept != nil && rec.Image != "" {
			out = append(out, rec)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ---------------------------------------------------------------------------
// Queue controls
// ---------------------------------------------------------------------------

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.scheduler.SetPaused(true)
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.scheduler.SetPaused(false)
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	if err := s.scheduler.Clear(); err != nil {
		writeError(w, http.StatusConflict, "cannot clear while processing")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": model.RunIdle})
}

// ---------------------------------------------------------------------------
// Per-record operations
// ---------------------------------------------------------------------------

func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.Remove(id) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

type editPromptRequest struct {
	VisualPrompt string `json:"visual_prompt"`
}

func (s *Server) handleEditPrompt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req editPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if trimName(req.VisualPrompt) == "" {
		writeError(w, http.StatusBadRequest, "visual_prompt is required")
		return
	}

	if !s.store.UpdateVisualPrompt(id, req.VisualPrompt) {
		writeError(w, http.StatusNotFound, "record not found or not yet analyzed")
		return
	}
	rec, _ := s.store.Get(id)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := s.scheduler.Regenerate(r.Context(), id)
	switch {
	case errors.Is(err, queue.ErrNotFound):
		writeError(w, http.StatusNotFound, "record not found")
		return
	case errors.Is(err, queue.ErrNoConcept):
		writeError(w, http.StatusConflict, "record has no concept to regenerate from")
		return
	}
	// A provider failure is already recorded on the record; return it.
	rec, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ---------------------------------------------------------------------------
// GET /api/rate
// ---------------------------------------------------------------------------

func (s *Server) handleRate(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"rpm":   s.monitor.Rate(),
		"total": s.monitor.Total(),
	})
}

// ---------------------------------------------------------------------------
// POST /api/import
// ---------------------------------------------------------------------------

type importRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	text, err := s.importer.Import(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusBadGateway, "import failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// ---------------------------------------------------------------------------
// Library
// ---------------------------------------------------------------------------

func (s *Server) handleLibraryTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.library.Tree(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load library")
		return
	}
	if tree == nil {
		tree = []model.LibraryNode{}
	}
	writeJSON(w, http.StatusOK, tree)
}

type folderRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req folderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if trimName(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	node, err := s.library.CreateFolder(r.Context(), trimName(req.Name))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create folder")
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

type saveSessionRequest struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
}

// handleSaveSession stores the current Result Store snapshot as a session
// inside the target folder.
func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	folderID := r.PathValue("id")

	var req saveSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if trimName(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	results := s.store.List()
	if len(results) == 0 {
		writeError(w, http.StatusConflict, "no results to save")
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = results[0].Mode
	}

	sess := model.SavedSession{
		Name:      trimName(req.Name),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Mode:      mode,
		Results:   results,
	}

	node, err := s.library.SaveSession(r.Context(), folderID, sess.Name, sess)
	switch {
	case errors.Is(err, library.ErrNotFound):
		writeError(w, http.StatusNotFound, "folder not found")
		return
	case errors.Is(err, library.ErrNotAFolder):
		writeError(w, http.StatusConflict, "target is not a folder")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to save session")
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (s *Server) handleLoadSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sess, err := s.library.GetSession(r.Context(), id)
	if errors.Is(err, library.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	if err := s.scheduler.LoadSession(sess.Results); err != nil {
		writeError(w, http.StatusConflict, "cannot load session while processing")
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.Snapshot())
}

type renameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRenameNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if trimName(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	err := s.library.Rename(r.Context(), id, trimName(req.Name))
	if errors.Is(err, library.ErrNotFound) {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to rename node")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "name": trimName(req.Name)})
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := s.library.Delete(r.Context(), id)
	if errors.Is(err, library.ErrNotFound) {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete node")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}
