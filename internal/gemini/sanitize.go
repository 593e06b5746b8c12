package gemini

import (
	"strings"

	"gitlab.com/yelinaung/ledger-core/internal/models"
)

// SanitizeForPrompt strips characters that could break the prompt structure,
// collapses whitespace and truncates to maxLength runes.
func SanitizeForPrompt(input string, maxLength int) string {
	input = strings.ReplaceAll(input, `"`, `'`)
	input = strings.ReplaceAll(input, "`", "'")
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.Join(strings.Fields(input), " ")

	if runes := []rune(input); len(runes) > maxLength {
		input = strings.TrimSpace(string(runes[:maxLength]))
	}
	return input
}

// SanitizeCategoryName prepares a category name for embedding in a prompt.
func SanitizeCategoryName(name string) string {
	return SanitizeForPrompt(name, models.MaxCategoryNameLength)
}

// extractJSON returns the outermost JSON object in text. Gemini sometimes
// wraps it in markdown fences or a preamble even in JSON mode.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(text, "}")
	if end <= start {
		return ""
	}
	return text[start : end+1]
}
