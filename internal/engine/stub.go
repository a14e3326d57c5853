package engine

import (
	"context"
	"fmt"

	"github.com/philoflow/philoflow/internal/model"
)

// onePixelPNG is a 1x1 transparent PNG, base64-encoded.
const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

// StubAnalyzer returns deterministic concepts (for keyless development and
// testing).
type StubAnalyzer struct{}

func (s *StubAnalyzer) Analyze(_ context.Context, req AnalysisRequest) (*model.Concept, error) {
	short := req.Segment
	if len([]rune(short)) > 24 {
		short = string([]rune(short)[:24])
	}
	return &model.Concept{
		Title:        "[Stub] " + short,
		Explanation:  fmt.Sprintf("Stub analysis of the segment in %s mode (%s).", req.Mode, req.Language),
		VisualPrompt: "A simple diagram of interconnected nodes representing: " + short,
	}, nil
}

// StubIllustrator returns a fixed placeholder image.
type StubIllustrator struct{}

func (s *StubIllustrator) Illustrate(_ context.Context, _ IllustrationRequest) (string, error) {
	return "data:image/png;base64," + onePixelPNG, nil
}
