package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// SanitizationResult contains the sanitized text and any warnings
type SanitizationResult struct {
	Text     string
	Warnings []string
	Modified bool
}

var (
	// Control characters (except common whitespace)
	controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

	// Markup is shown verbatim in the web UI and in Slack, so tags are dropped
	scriptBlockPattern = regexp.MustCompile(`(?is)<script[^>]*>.*?</script\s*>`)
	htmlTagPattern     = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
	spaceRunPattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// SanitizeText cleans free text submitted by users (issue descriptions,
// remarks, notices). It strips control characters and markup, collapses
// runs of blank lines and spaces, and cuts the result to maxLen runes.
func SanitizeText(text string, maxLen int) *SanitizationResult {
	result := &SanitizationResult{
		Text:     text,
		Warnings: []string{},
	}
	if text == "" {
		return result
	}

	clean := strings.ReplaceAll(text, "\r\n", "\n")

	if controlCharPattern.MatchString(clean) {
		clean = controlCharPattern.ReplaceAllString(clean, "")
		result.Warnings = append(result.Warnings, "Removed control characters")
	}
	if scriptBlockPattern.MatchString(clean) {
		clean = scriptBlockPattern.ReplaceAllString(clean, "")
		result.Warnings = append(result.Warnings, "Removed script block")
	}
	if htmlTagPattern.MatchString(clean) {
		clean = htmlTagPattern.ReplaceAllString(clean, "")
		result.Warnings = append(result.Warnings, "Removed markup")
	}

	clean = blankLinesPattern.ReplaceAllString(clean, "\n\n")
	clean = spaceRunPattern.ReplaceAllString(clean, " ")
	clean = strings.TrimSpace(clean)

	if maxLen > 0 && utf8.RuneCountInString(clean) > maxLen {
		clean = string([]rune(clean)[:maxLen])
		result.Warnings = append(result.Warnings, "Text truncated")
	}

	result.Modified = clean != text
	result.Text = clean
	return result
}

// EscapeForLogging escapes user-supplied content for safe logging
func EscapeForLogging(text string, maxLen int) string {
	if utf8.RuneCountInString(text) > maxLen {
		text = string([]rune(text)[:maxLen]) + "..."
	}

	// Remove newlines for single-line logging
	text = strings.ReplaceAll(text, "\n", "\\n")
	text = strings.ReplaceAll(text, "\r", "\\r")
	text = strings.ReplaceAll(text, "\t", "\\t")

	return text
}
