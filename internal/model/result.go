package model

import (
	"time"

	"github.com/google/uuid"
)

// Result status constants
const (
	StatusWaiting    = "WAITING"
	StatusAnalyzing  = "ANALYZING"
	StatusGenerating = "GENERATING"
	StatusSuccess    = "SUCCESS"
	StatusError      = "ERROR"
)

// Run-level state constants
const (
	RunIdle       = "IDLE"
	RunProcessing = "PROCESSING"
	RunComplete   = "COMPLETE"
	RunError      = "ERROR"
)

// Presentation mode constants
const (
	ModeClassic = "CLASSIC"
	ModeModern  = "MODERN"
)

// Language constants
const (
	LangZH = "ZH"
	LangEN = "EN"
)

// Concept is the structured output of text analysis for one segment.
// VisualPrompt is the only field that may be edited after creation,
// ahead of a re-illustration request.
type Concept struct {
	Title        string `json:"title"`
	Explanation  string `json:"explanation"`
	VisualPrompt string `json:"visual_prompt"`
}

// ResultRecord is one segment's progress through the analyze→illustrate
// pipeline. Status mutations go through the queue store's Patch API only.
type ResultRecord struct {
	ID         string   `json:"id"`
	Mode       string   `json:"mode"`
	SourceText string   `json:"source_text"`
	Status     string   `json:"status"`
	Concept    *Concept `json:"concept,omitempty"`
	Image      string   `json:"image,omitempty"` // base64 data URL
	Error      string   `json:"error,omitempty"`
	CreatedAt  string   `json:"created_at"`
}

// NewResultRecord creates a WAITING record for one text segment.
func NewResultRecord(mode, sourceText string) ResultRecord {
	return ResultRecord{
		ID:         "res-" + uuid.New().String(),
		Mode:       mode,
		SourceText: sourceText,
		Status:     StatusWaiting,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
}

// Terminal reports whether the record reached a terminal status for this pass.
func (r ResultRecord) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusError
}

// ValidMode reports whether m is a known presentation mode.
func ValidMode(m string) bool {
	return m == ModeClassic || m == ModeModern
}

// ValidLanguage reports whether l is a known analysis language.
func ValidLanguage(l string) bool {
	return l == LangZH || l == LangEN
}
