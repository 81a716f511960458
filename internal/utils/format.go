package utils

import (
	"strings"
	"unicode/utf8"
)

// TruncateText shortens text to at most maxLen runes for single-line display,
// adding an ellipsis when something was cut. Newlines become spaces.
func TruncateText(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxLen-3])) + "..."
}
