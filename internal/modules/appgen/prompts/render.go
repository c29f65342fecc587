package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Format substitutes every {key} in tmpl with its binding. Strings are
// inserted as-is; any other value is inserted as indented JSON. Placeholders
// without a binding are left untouched.
func Format(tmpl string, bindings map[string]any) string {
	if len(bindings) == 0 {
		return tmpl
	}
	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := tmpl
	for _, k := range keys {
		ph := "{" + k + "}"
		if !strings.Contains(out, ph) {
			continue
		}
		out = strings.ReplaceAll(out, ph, stringify(bindings[k]))
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Unresolved returns the distinct placeholder names still present in text.
func Unresolved(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		out = append(out, m[1])
	}
	return out
}
