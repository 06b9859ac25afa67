package summarizer

import (
	"strings"
	"unicode"
)

// Token accounting is word-based: close enough for budgeting prompt
// sizes without shipping a model-specific tokenizer.

// TokenCount returns the number of whitespace-separated tokens in s.
func TokenCount(s string) int {
	return len(strings.Fields(s))
}

// TruncateTokens returns a prefix of s containing at most budget
// tokens. The original text, including its whitespace, is preserved
// up to the cut.
func TruncateTokens(s string, budget int) string {
	if budget <= 0 {
		return ""
	}
	inField := false
	count := 0
	for i, r := range s {
		if unicode.IsSpace(r) {
			inField = false
			continue
		}
		if !inField {
			inField = true
			count++
			if count > budget {
				return strings.TrimRightFunc(s[:i], unicode.IsSpace)
			}
		}
	}
	return s
}
