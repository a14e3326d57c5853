package text

import "strings"

// Chunk splits text into ordered non-empty segments, one per line.
// Windows line endings are normalized first; empty and whitespace-only
// lines are discarded. An all-whitespace input yields an empty slice,
// which the scheduler treats as "nothing to do".
func Chunk(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
