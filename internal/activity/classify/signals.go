package classify

import "regexp"

// EndSignalPatterns match free-text announcements that some unit finished
// without naming it.
var EndSignalPatterns = []string{
	`Done \(\d+ tool uses?`,  // Task summary: "Done (3 tool uses · 12k tokens)"
	`\bFinished\b`,           // Generic completion line
	`(?i)\bcomplete(?:d)?\b`, // "Complete", "completed", "Task complete"
	`⎿\s*Done`,               // Result marker
}

// SignalMatcher detects end-of-execution lines.
type SignalMatcher struct {
	patterns []*regexp.Regexp
}

// NewSignalMatcher compiles EndSignalPatterns.
func NewSignalMatcher() *SignalMatcher {
	return &SignalMatcher{patterns: compilePatterns(EndSignalPatterns)}
}

// IsEndSignal reports whether line announces that execution ended.
func (m *SignalMatcher) IsEndSignal(line string) bool {
	return matchesAny(line, m.patterns)
}

// compilePatterns compiles a slice of regex pattern strings.
// Patterns are constants, so a compile failure panics at init.
func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
