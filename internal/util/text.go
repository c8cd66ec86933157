package util

import (
	"regexp"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeWhitespace trims and collapses whitespace to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// SplitAndTrim splits s on commas, dropping empty items.
func SplitAndTrim(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = NormalizeWhitespace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
