package queue

import (
	"testing"

	"github.com/philoflow/philoflow/internal/model"
)

func seedStore(t *testing.T, n int) (*Store, []model.ResultRecord) {
	t.Helper()
	records := make([]model.ResultRecord, n)
	for i := range records {
		records[i] = model.NewResultRecord(model.ModeClassic, "segment")
	}
	s := NewStore()
	s.Reset(records)
	return s, records
}

func TestStorePatchMergesFields(t *testing.T) {
	s, records := seedStore(t, 1)
	id := records[0].ID

	s.Patch(id, Patch{Status: str(model.StatusAnalyzing)})
	rec, ok := s.Get(id)
	if !ok {
		t.Fatal("record missing after patch")
	}
	if rec.Status != model.StatusAnalyzing {
		t.Errorf("Status = %q, want ANALYZING", rec.Status)
	}
	if rec.SourceText != "segment" {
		t.Errorf("SourceText changed: %q", rec.SourceText)
	}

	concept := &model.Concept{Title: "t", Explanation: "e", VisualPrompt: "v"}
	s.Patch(id, Patch{Status: str(model.StatusGenerating), Concept: concept})
	rec, _ = s.Get(id)
	if rec.Concept == nil || rec.Concept.Title != "t" {
		t.Fatalf("concept not applied: %+v", rec.Concept)
	}

	s.Patch(id, Patch{Status: str(model.StatusError), Error: str("boom")})
	rec, _ = s.Get(id)
	if rec.Error != "boom" || rec.Concept == nil {
		t.Errorf("error patch disturbed other fields: %+v", rec)
	}

	// Error pointing at "" clears the text.
	s.Patch(id, Patch{Status: str(model.StatusSuccess), Image: str("data:image/png;base64,x"), Error: str("")})
	rec, _ = s.Get(id)
	if rec.Error != "" || rec.Image == "" || rec.Status != model.StatusSuccess {
		t.Errorf("success patch wrong: %+v", rec)
	}
}

func TestStorePatchMissingIDIsNoOp(t *testing.T) {
	s, records := seedStore(t, 1)
	s.Patch("res-unknown", Patch{Status: str(model.StatusError), Error: str("boom")})
	rec, _ := s.Get(records[0].ID)
	if rec.Status != model.StatusWaiting || rec.Error != "" {
		t.Errorf("patch to unknown id leaked into existing record: %+v", rec)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestStoreRemovePreservesOrder(t *testing.T) {
	s, records := seedStore(t, 3)
	if !s.Remove(records[1].ID) {
		t.Fatal("Remove returned false for a known id")
	}
	if s.Remove(records[1].ID) {
		t.Error("Remove returned true for an already-removed id")
	}

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != records[0].ID || list[1].ID != records[2].ID {
		t.Errorf("order disturbed after remove: %v, %v", list[0].ID, list[1].ID)
	}

	// The index must still resolve the survivors.
	s.Patch(records[2].ID, Patch{Status: str(model.StatusSuccess)})
	rec, ok := s.Get(records[2].ID)
	if !ok || rec.Status != model.StatusSuccess {
		t.Errorf("index stale after remove: %+v ok=%v", rec, ok)
	}
}

func TestStoreUpdateVisualPrompt(t *testing.T) {
	s, records := seedStore(t, 1)
	id := records[0].ID

	if s.UpdateVisualPrompt(id, "new prompt") {
		t.Error("UpdateVisualPrompt succeeded before analysis")
	}

	s.Patch(id, Patch{Concept: &model.Concept{Title: "t", VisualPrompt: "old"}})
	if !s.UpdateVisualPrompt(id, "new prompt") {
		t.Fatal("UpdateVisualPrompt failed on analyzed record")
	}
	rec, _ := s.Get(id)
	if rec.Concept.VisualPrompt != "new prompt" || rec.Concept.Title != "t" {
		t.Errorf("prompt update wrong: %+v", rec.Concept)
	}
}

func TestStoreSnapshotsAreIsolated(t *testing.T) {
	s, records := seedStore(t, 1)
	id := records[0].ID
	s.Patch(id, Patch{Concept: &model.Concept{VisualPrompt: "original"}})

	rec, _ := s.Get(id)
	rec.Concept.VisualPrompt = "mutated by caller"

	again, _ := s.Get(id)
	if again.Concept.VisualPrompt != "original" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestStoreClear(t *testing.T) {
	s, _ := seedStore(t, 2)
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", s.Len())
	}
	if got := s.List(); len(got) != 0 {
		t.Errorf("List after Clear = %v, want empty", got)
	}
}
