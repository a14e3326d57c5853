package engine

import "testing"

func TestStripFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare json", `{"title":"t"}`, `{"title":"t"}`},
		{"json fence", "```json\n{\"title\":\"t\"}\n```", `{"title":"t"}`},
		{"plain fence", "```\n{\"title\":\"t\"}\n```", `{"title":"t"}`},
		{"surrounding whitespace", "  {\"title\":\"t\"}\n", `{"title":"t"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFence(tt.input); got != tt.want {
				t.Errorf("stripFence(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFirstText(t *testing.T) {
	resp := &geminiResponse{}
	if got := firstText(resp); got != "" {
		t.Errorf("firstText(empty) = %q, want empty", got)
	}

	resp = &geminiResponse{Candidates: []struct {
		Content geminiContent `json:"content"`
	}{
		{Content: geminiContent{Parts: []geminiPart{
			{InlineData: &geminiInlineData{MimeType: "image/png", Data: "abc"}},
			{Text: "hello"},
		}}},
	}}
	if got := firstText(resp); got != "hello" {
		t.Errorf("firstText = %q, want hello", got)
	}
}
