package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	scriptRegex = regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`)
	styleRegex  = regexp.MustCompile(`(?i)<style[^>]*>.*?</style>`)
	htmlRegex   = regexp.MustCompile(`<[^>]*>`)
)

// StripHTML removes script blocks, style blocks, and any remaining HTML tags
func StripHTML(input string) string {
	input = scriptRegex.ReplaceAllString(input, "")
	input = styleRegex.ReplaceAllString(input, "")
	input = htmlRegex.ReplaceAllString(input, "")
	return input
}

// SanitizeText neutralizes markup in untrusted guest input before it is
// persisted or echoed back: tags are stripped first, then whatever remains is
// HTML-escaped. Persistence itself always goes through parameterized
// statements; this only guards rendering.
func SanitizeText(input string) string {
	input = StripHTML(input)
	input = html.EscapeString(input)
	return strings.TrimSpace(input)
}

// SanitizeDisplayName sanitizes a guest display name: markup neutralized and
// control characters dropped
func SanitizeDisplayName(name string) string {
	return StripControlCharacters(SanitizeText(name))
}

// StripControlCharacters removes control characters from string
func StripControlCharacters(input string) string {
	var result strings.Builder
	for _, r := range input {
		if !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ValidateStringLength checks if string length is within bounds. Length is
// counted in characters, not bytes, so multibyte names are not over-penalized.
func ValidateStringLength(input string, minLen, maxLen int) bool {
	length := utf8.RuneCountInString(input)
	if length < minLen {
		return false
	}
	if length > maxLen {
		return false
	}
	return true
}
