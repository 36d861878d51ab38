package content

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var sentenceEnd = regexp.MustCompile(`[.!?]`)

// firstSentence returns the first sentence of s when it is longer than min
// characters, else "".
func firstSentence(s string, min int) string {
	parts := sentenceEnd.Split(s, 2)
	if len(parts) == 0 {
		return ""
	}
	first := strings.TrimSpace(parts[0])
	if utf8.RuneCountInString(first) <= min {
		return ""
	}
	return first + "."
}

// truncate cuts s to at most n runes, preferring a word boundary and adding an
// ellipsis when anything was dropped.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	cut := string([]rune(s)[:n-3])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:-") + "..."
}

// clip cuts s to n runes and marks the cut like the label excerpts do.
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n])) + "..."
}

func uniqueLower(limit int, values ...string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, limit)
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
