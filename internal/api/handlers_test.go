package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/philoflow/philoflow/internal/engine"
	"github.com/philoflow/philoflow/internal/library"
	"github.com/philoflow/philoflow/internal/model"
	"github.com/philoflow/philoflow/internal/queue"
)

type fakeImporter struct {
	text string
	err  error
}

func (f *fakeImporter) Import(_ context.Context, _ string) (string, error) {
	return f.text, f.err
}

func newTestServer(t *testing.T) (*Server, *queue.Store) {
	return newTestServerWithImporter(t, &fakeImporter{text: "imported text"})
}

func newTestServerWithImporter(t *testing.T, imp Importer) (*Server, *queue.Store) {
	t.Helper()
	db, err := library.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	lib, err := library.New(db)
	if err != nil {
		t.Fatalf("new library: %v", err)
	}

	store := queue.NewStore()
	monitor := queue.NewMonitor()
	retry := engine.RetryPolicy{
		BaseDelay:    time.Millisecond,
		MaxDelay:     time.Millisecond,
		PollInterval: time.Millisecond,
	}
	sched := queue.NewScheduler(store, &engine.StubAnalyzer{}, &engine.StubIllustrator{}, monitor, retry, time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := New(ctx, sched, store, monitor, lib, imp, "")
	return srv, store
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode JSON: %v\nbody: %s", err, rr.Body.String())
	}
	return result
}

// waitComplete polls the results endpoint until the background run finishes.
func waitComplete(t *testing.T, h http.Handler) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rr := doRequest(t, h, "GET", "/api/results", "")
		result := decodeJSON(t, rr)
		state, _ := result["state"].(string)
		if state == model.RunComplete || state == model.RunError {
			return result
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never finished, last state %q", state)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestGenerate(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "POST", "/api/generate", `{"text":"First thought.\nSecond thought.","mode":"CLASSIC","language":"EN"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d, body: %s", rr.Code, http.StatusAccepted, rr.Body.String())
	}
	result := decodeJSON(t, rr)
	if result["state"] != model.RunProcessing {
		t.Errorf("state = %v, want PROCESSING", result["state"])
	}

	final := waitComplete(t, h)
	if final["state"] != model.RunComplete {
		t.Fatalf("state = %v, want COMPLETE", final["state"])
	}
	results, _ := final["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	first, _ := results[0].(map[string]any)
	if first["status"] != model.StatusSuccess {
		t.Errorf("record status = %v, want SUCCESS", first["status"])
	}
	if first["source_text"] != "First thought." {
		t.Errorf("source_text = %v", first["source_text"])
	}
}

func TestGenerate_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"bad mode", `{"text":"hello","mode":"CUBIST"}`, http.StatusBadRequest},
		{"bad language", `{"text":"hello","language":"FR"}`, http.StatusBadRequest},
		{"empty text", `{"text":"   "}`, http.StatusBadRequest},
		{"invalid json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, h, "POST", "/api/generate", tt.body)
			if rr.Code != tt.code {
				t.Errorf("status = %d, want %d, body: %s", rr.Code, tt.code, rr.Body.String())
			}
		})
	}
}

func TestGenerate_BusyConflict(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	// Pause first so the run stays PROCESSING.
	doRequest(t, h, "POST", "/api/queue/pause", "")
	rr := doRequest(t, h, "POST", "/api/generate", `{"text":"one"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("first generate = %d, body: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, h, "POST", "/api/generate", `{"text":"two"}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("second generate = %d, want %d", rr.Code, http.StatusConflict)
	}

	rr = doRequest(t, h, "POST", "/api/queue/clear", "")
	if rr.Code != http.StatusConflict {
		t.Errorf("clear during run = %d, want %d", rr.Code, http.StatusConflict)
	}

	doRequest(t, h, "POST", "/api/queue/resume", "")
	waitComplete(t, h)
}

func TestClear(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	doRequest(t, h, "POST", "/api/generate", `{"text":"one"}`)
	waitComplete(t, h)

	rr := doRequest(t, h, "POST", "/api/queue/clear", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("clear = %d, body: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, h, "GET", "/api/results", "")
	result := decodeJSON(t, rr)
	if result["state"] != model.RunIdle {
		t.Errorf("state = %v, want IDLE", result["state"])
	}
	results, _ := result["results"].([]any)
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}

func TestDeleteResult(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Handler()

	doRequest(t, h, "POST", "/api/generate", `{"text":"one\ntwo"}`)
	waitComplete(t, h)

	id := store.List()[0].ID
	rr := doRequest(t, h, "DELETE", "/api/results/"+id, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete = %d, body: %s", rr.Code, rr.Body.String())
	}
	if store.Len() != 1 {
		t.Errorf("records = %d, want 1", store.Len())
	}

	rr = doRequest(t, h, "DELETE", "/api/results/"+id, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("double delete = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestEditPromptAndRegenerate(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Handler()

	doRequest(t, h, "POST", "/api/generate", `{"text":"one"}`)
	waitComplete(t, h)
	id := store.List()[0].ID

	rr := doRequest(t, h, "PUT", "/api/results/"+id+"/prompt", `{"visual_prompt":"a new scene"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("edit prompt = %d, body: %s", rr.Code, rr.Body.String())
	}
	rec, _ := store.Get(id)
	if rec.Concept.VisualPrompt != "a new scene" {
		t.Errorf("visual prompt = %q, want the edit", rec.Concept.VisualPrompt)
	}

	rr = doRequest(t, h, "POST", "/api/results/"+id+"/regenerate", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("regenerate = %d, body: %s", rr.Code, rr.Body.String())
	}
	result := decodeJSON(t, rr)
	if result["status"] != model.StatusSuccess {
		t.Errorf("status = %v, want SUCCESS", result["status"])
	}

	rr = doRequest(t, h, "PUT", "/api/results/res-missing/prompt", `{"visual_prompt":"x"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("edit missing = %d, want %d", rr.Code, http.StatusNotFound)
	}
	rr = doRequest(t, h, "POST", "/api/results/res-missing/regenerate", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("regenerate missing = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestExportOnlyCompleted(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Handler()

	doRequest(t, h, "POST", "/api/generate", `{"text":"one\ntwo"}`)
	waitComplete(t, h)

	// Knock one record back to a non-exportable state.
	id := store.List()[0].ID
	failed := model.StatusError
	msg := "boom"
	store.Patch(id, queue.Patch{Status: &failed, Error: &msg})

	rr := doRequest(t, h, "GET", "/api/export", "")
	var out []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("exported = %d, want 1", len(out))
	}
	if out[0]["status"] != model.StatusSuccess {
		t.Errorf("exported status = %v, want SUCCESS", out[0]["status"])
	}
}

func TestRate(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	doRequest(t, h, "POST", "/api/generate", `{"text":"one"}`)
	waitComplete(t, h)

	rr := doRequest(t, h, "GET", "/api/rate", "")
	result := decodeJSON(t, rr)
	// One analysis and one illustration call.
	if result["total"].(float64) != 2 {
		t.Errorf("total = %v, want 2", result["total"])
	}
}

func TestImport(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "POST", "/api/import", `{"url":"https://example.com/essay"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("import = %d, body: %s", rr.Code, rr.Body.String())
	}
	result := decodeJSON(t, rr)
	if result["text"] != "imported text" {
		t.Errorf("text = %v, want imported text", result["text"])
	}

	rr = doRequest(t, h, "POST", "/api/import", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing url = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestImport_UpstreamFailure(t *testing.T) {
	srv, _ := newTestServerWithImporter(t, &fakeImporter{err: errors.New("fetch failed")})
	h := srv.Handler()

	rr := doRequest(t, h, "POST", "/api/import", `{"url":"https://example.com"}`)
	if rr.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadGateway)
	}
}

func TestLibraryFlow(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Handler()

	// Saving with no results is refused.
	rr := doRequest(t, h, "POST", "/api/library/folders", `{"name":"Essays"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create folder = %d, body: %s", rr.Code, rr.Body.String())
	}
	folderID := decodeJSON(t, rr)["id"].(string)

	rr = doRequest(t, h, "POST", "/api/library/folders/"+folderID+"/sessions", `{"name":"empty"}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("save empty session = %d, want %d", rr.Code, http.StatusConflict)
	}

	doRequest(t, h, "POST", "/api/generate", `{"text":"one\ntwo"}`)
	waitComplete(t, h)

	rr = doRequest(t, h, "POST", "/api/library/folders/"+folderID+"/sessions", `{"name":"My Session"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("save session = %d, body: %s", rr.Code, rr.Body.String())
	}
	sessionID := decodeJSON(t, rr)["id"].(string)

	rr = doRequest(t, h, "GET", "/api/library", "")
	var tree []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &tree); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if len(tree) != 1 || tree[0]["id"] != folderID {
		t.Fatalf("tree = %+v, want the one folder", tree)
	}

	// Mutate the live store, then load the session back.
	doRequest(t, h, "POST", "/api/queue/clear", "")
	rr = doRequest(t, h, "POST", "/api/library/sessions/"+sessionID+"/load", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("load session = %d, body: %s", rr.Code, rr.Body.String())
	}
	result := decodeJSON(t, rr)
	if result["state"] != model.RunIdle {
		t.Errorf("state after load = %v, want IDLE", result["state"])
	}
	if store.Len() != 2 {
		t.Errorf("records after load = %d, want 2", store.Len())
	}

	rr = doRequest(t, h, "PATCH", "/api/library/"+folderID, `{"name":"Renamed"}`)
	if rr.Code != http.StatusOK {
		t.Errorf("rename = %d, body: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, h, "DELETE", "/api/library/"+folderID, "")
	if rr.Code != http.StatusOK {
		t.Errorf("delete folder = %d, body: %s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, h, "POST", "/api/library/sessions/"+sessionID+"/load", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("load deleted session = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "OPTIONS", "/api/results", "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q, want *", got)
	}
}
