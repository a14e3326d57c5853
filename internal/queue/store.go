// Package queue holds the generation pipeline core: the mutable result
// store observed by the UI, the sequential scheduler that drives records
// through the analyze→illustrate state machine, and the request-rate
// monitor.
package queue

import (
	"sync"

	"github.com/philoflow/philoflow/internal/model"
)

// Patch is a partial update to one result record. Nil fields are left
// untouched; a non-nil Error pointing at "" clears the error text.
type Patch struct {
	Status  *string
	Concept *model.Concept
	Image   *string
	Error   *string
}

// Store is the ordered, in-memory collection of result records shared
// between the scheduler and observing readers. Every mutation goes through
// its methods; reads always see full-record snapshots, never torn state.
type Store struct {
	mu      sync.RWMutex
	records []model.ResultRecord
	index   map[string]int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Reset replaces the store contents with the given records, in order.
func (s *Store) Reset(records []model.ResultRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]model.ResultRecord, len(records))
	s.index = make(map[string]int, len(records))
	for i, r := range records {
		s.records[i] = copyRecord(r)
		s.index[r.ID] = i
	}
}

// Clear removes all records.
func (s *Store) Clear() {
	s.Reset(nil)
}

// List returns an ordered snapshot of all records.
func (s *Store) List() []model.ResultRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ResultRecord, len(s.records))
	for i, r := range s.records {
		out[i] = copyRecord(r)
	}
	return out
}

// Get returns a snapshot of one record.
func (s *Store) Get(id string) (model.ResultRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.ResultRecord{}, false
	}
	return copyRecord(s.records[i]), true
}

// Patch applies the supplied fields to the record with the given id,
// leaving all others untouched. Patching an id that no longer exists is a
// silent no-op: an in-flight call may legitimately outlive its record.
func (s *Store) Patch(id string, p Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return
	}
	rec := &s.records[i]
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.Concept != nil {
		c := *p.Concept
		rec.Concept = &c
	}
	if p.Image != nil {
		rec.Image = *p.Image
	}
	if p.Error != nil {
		rec.Error = *p.Error
	}
}

// UpdateVisualPrompt rewrites the concept's visual prompt, the one field
// an external actor may edit after analysis. Returns false when the record
// is missing or has no concept yet.
func (s *Store) UpdateVisualPrompt(id, prompt string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok || s.records[i].Concept == nil {
		return false
	}
	c := *s.records[i].Concept
	c.VisualPrompt = prompt
	s.records[i].Concept = &c
	return true
}

// Remove deletes one record, preserving the order of the rest. Returns
// false when the id is unknown.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.records); j++ {
		s.index[s.records[j].ID] = j
	}
	return true
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// copyRecord deep-copies a record so callers never share the concept
// pointer with the store.
func copyRecord(r model.ResultRecord) model.ResultRecord {
	if r.Concept != nil {
		c := *r.Concept
		r.Concept = &c
	}
	return r
}
