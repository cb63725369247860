// Package normalize turns raw terminal output into plain text lines.
package normalize

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Clean removes ANSI escape sequences (CSI, OSC, DCS, ...) and stray
// control characters from raw. Line structure is preserved: CRLF and lone
// CR both become LF, and tabs are kept. Truncated or malformed sequences
// are dropped as far as the escape parser can tell where they end.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	s := ansi.Strip(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(keepRune, s)
}

func keepRune(r rune) rune {
	switch {
	case r == '\r':
		return '\n'
	case r == '\n' || r == '\t':
		return r
	case r < 0x20 || r == 0x7f:
		return -1
	case r >= 0x80 && r < 0xa0:
		return -1
	default:
		return r
	}
}

// Lines splits cleaned text into trimmed, non-empty lines.
func Lines(text string) []string {
	parts := strings.Split(text, "\n")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsUserInput reports whether a trimmed line echoes the user's own prompt
// ("> ..."). Such lines are excluded before classification.
func IsUserInput(line string) bool {
	return line == ">" || strings.HasPrefix(line, "> ")
}
