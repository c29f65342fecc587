package parse

import (
	"regexp"
	"strings"
)

// Record is one group of KEY: value lines. Keys are upper case.
type Record map[string]string

func (r Record) Get(key string) string { return r[strings.ToUpper(key)] }

var listPrefixRe = regexp.MustCompile(`^(?:[-*•]\s+|\d+[.)]\s+)`)

// ScanKeyValues reads lines of the form `KEY: value` for the given keys.
// keys[0] opens a new record; lines before the first opener, and lines with
// unknown keys, are skipped. It never fails.
func ScanKeyValues(raw string, keys ...string) []Record {
	if len(keys) == 0 {
		return nil
	}
	known := make([]string, 0, len(keys))
	for _, k := range keys {
		known = append(known, strings.ToUpper(strings.TrimSpace(k)))
	}
	opener := known[0]

	var out []Record
	var cur Record
	for _, line := range strings.Split(normalizeLineEndings(raw), "\n") {
		key, val, ok := splitKeyLine(line, known)
		if !ok {
			continue
		}
		if key == opener {
			cur = Record{}
			out = append(out, cur)
		}
		if cur == nil {
			continue
		}
		cur[key] = val
	}
	return out
}

func splitKeyLine(line string, keys []string) (string, string, bool) {
	s := strings.TrimSpace(line)
	s = listPrefixRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "**", "")
	s = strings.TrimSpace(s)
	colon := strings.IndexByte(s, ':')
	if colon <= 0 {
		return "", "", false
	}
	head := strings.ToUpper(strings.TrimSpace(s[:colon]))
	for _, k := range keys {
		if head == k {
			return k, strings.TrimSpace(s[colon+1:]), true
		}
	}
	return "", "", false
}
