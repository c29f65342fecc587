package parse

import (
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```[ \\t]*([A-Za-z0-9_+#.-]*)[^\\n]*\\n(.*?)```")

// ExtractFenced returns the interior of the first fenced code block. With
// langs, the first block tagged with one of them wins, then the first
// untagged block.
func ExtractFenced(raw string, langs ...string) (string, bool) {
	matches := fenceRe.FindAllStringSubmatch(normalizeLineEndings(raw), -1)
	if len(matches) == 0 {
		return "", false
	}
	if len(langs) == 0 {
		return strings.TrimRight(matches[0][2], "\n"), true
	}
	for _, m := range matches {
		for _, l := range langs {
			if strings.EqualFold(m[1], l) {
				return strings.TrimRight(m[2], "\n"), true
			}
		}
	}
	for _, m := range matches {
		if m[1] == "" {
			return strings.TrimRight(m[2], "\n"), true
		}
	}
	return "", false
}

// StripFences returns the first fenced block of any language, or raw trimmed
// when there is none.
func StripFences(raw string) string {
	if inner, ok := ExtractFenced(raw); ok {
		return strings.TrimSpace(inner)
	}
	return strings.TrimSpace(raw)
}
