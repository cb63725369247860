package util

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestPrefix(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"shorter than n", "abc", 10, "abc"},
		{"exact length", "abcde", 5, "abcde"},
		{"cut", "abcdef", 3, "abc"},
		{"multibyte not split", "●●●●", 2, "●●"},
		{"mixed", "⏺ Task(go)", 3, "⏺ T"},
		{"zero", "abc", 0, ""},
		{"negative", "abc", -1, ""},
		{"empty", "", 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Prefix(tt.in, tt.n))
		})
	}
}

func TestTruncateANSI(t *testing.T) {
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	assert.Equal(t, "hello", TruncateANSI("hello", 10))
	assert.Equal(t, "hello...", TruncateANSI("hello world", 8))
	assert.Equal(t, "...", TruncateANSI("hello", 3))
	assert.Equal(t, "...", TruncateANSI("hello", 2))

	styled := red.Render("hi")
	assert.Equal(t, styled, TruncateANSI(styled, 10), "short styled text is untouched")

	long := red.Render("skill_call commit Create a git commit")
	got := TruncateANSI(long, 12)
	assert.LessOrEqual(t, lipgloss.Width(got), 12)

	wide := "日本語のテキスト"
	assert.LessOrEqual(t, lipgloss.Width(TruncateANSI(wide, 7)), 7)
}
