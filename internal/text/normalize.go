// Package text provides pure text preparation for the generation queue:
// OCR-style noise cleanup and line-based chunking. No I/O.
package text

import (
	"regexp"
	"strings"
)

// terminalPunct matches a sentence-ending mark, optionally followed by one
// closing quote or bracket, at the end of a line. OCR output breaks lines
// mid-sentence; a line that does NOT end like this is a candidate for
// rejoining with the next line.
var terminalPunct = regexp.MustCompile(`[.!?。！？]["'”’）)\]】』」]?$`)

// IsHeader reports whether a line is a markdown-style header. Headers are
// kept isolated by Normalize and may be suppressed by the scheduler when a
// run treats them as noise rather than content.
func IsHeader(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

// Normalize repairs OCR-damaged multi-line text. Hard-wrapped sentences are
// rejoined with their continuation lines, while header lines (#) are kept
// isolated in both directions: a header never absorbs surrounding prose and
// prose never absorbs a header. The result is a newline-joined sequence of
// repaired paragraphs and headers. Empty input yields empty output.
func Normalize(raw string) string {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return ""
	}

	var out []string
	buf := lines[0]
	for _, line := range lines[1:] {
		switch {
		case IsHeader(buf) || IsHeader(line):
			out = append(out, buf)
			buf = line
		case terminalPunct.MatchString(buf):
			// Sentence already complete; the incoming line starts a new unit.
			out = append(out, buf)
			buf = line
		default:
			// OCR repair: the buffer was hard-wrapped mid-sentence.
			buf += " " + line
		}
	}
	out = append(out, buf)
	return strings.Join(out, "\n")
}
