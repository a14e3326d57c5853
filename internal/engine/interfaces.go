package engine

import (
	"context"

	"github.com/philoflow/philoflow/internal/model"
)

// ProviderConfig carries the credentials and endpoint for one remote port.
// It is owned by the caller and passed in explicitly at construction time;
// nothing in this package reads ambient/global configuration.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional; OpenAI-compatible endpoints only
}

// AnalysisRequest is one analyze call: a single text segment plus the
// presentation mode and language that select the system instruction.
type AnalysisRequest struct {
	Segment  string
	Mode     string
	Language string
}

// IllustrationRequest is one illustrate call. Prompt is the (possibly
// user-edited) visual prompt; the mode selects the style prefix injected
// ahead of it. HD switches to the high-quality model and 2K output.
type IllustrationRequest struct {
	Prompt         string
	Mode           string
	HD             bool
	AspectRatio    string // defaults to "16:9"
	DirectTemplate string // optional override: replaces the style prefix
}

// Analyzer is the remote analysis port: segment in, structured concept out.
// Failures are *RemoteError values carrying retryable/quota classification.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*model.Concept, error)
}

// Illustrator is the remote illustration port: visual prompt in, encoded
// image (base64 data URL) out. Same failure classification as Analyzer;
// a 403 response is always fatal.
type Illustrator interface {
	Illustrate(ctx context.Context, req IllustrationRequest) (string, error)
}

// finalPrompt assembles the prompt actually sent to the image model:
// the direct template when set, otherwise the mode's style prefix
// prepended to the base prompt.
func finalPrompt(req IllustrationRequest) string {
	if req.DirectTemplate != "" {
		return req.DirectTemplate + req.Prompt
	}
	return stylePrefix(req.Mode) + req.Prompt
}

func aspectRatio(req IllustrationRequest) string {
	if req.AspectRatio != "" {
		return req.AspectRatio
	}
	return "16:9"
}
