// Package parse turns raw model output into structured values. JSON is tried
// first with progressively lossier cleanup; delimited sections, fenced code
// blocks and KEY: value lines are the fallbacks.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	StageWhole         = "whole"
	StageSlice         = "slice"
	StageLineEndings   = "line_endings"
	StageAttrQuotes    = "attr_quotes"
	StageTemplateTags  = "template_tags"
	StageStringEscapes = "string_escapes"
	StageWhitespace    = "whitespace"
	StageDecode        = "decode"
)

type cleanup struct {
	name string
	fn   func(string) string
}

// Order matters: every stage sees the output of the one before it.
var cleanups = []cleanup{
	{StageLineEndings, normalizeLineEndings},
	{StageAttrQuotes, escapeAttrQuotes},
	{StageTemplateTags, escapeTemplateTags},
	{StageStringEscapes, escapeStringControls},
	{StageWhitespace, collapseWhitespace},
}

var ErrNoJSON = errors.New("no JSON value found")

// ExtractStructured decodes the JSON value carried by raw. It never returns
// an empty structure in place of an error.
func ExtractStructured(raw string) (any, error) {
	_, v, err := extract(raw)
	return v, err
}

// ExtractObject is ExtractStructured restricted to JSON objects.
func ExtractObject(raw string) (map[string]any, error) {
	v, err := ExtractStructured(raw)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Raw: raw, Stage: StageDecode, Err: fmt.Errorf("expected object, got %T", v)}
	}
	return m, nil
}

// ExtractInto decodes the recovered JSON text into out.
func ExtractInto(raw string, out any) error {
	candidate, _, err := extract(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(candidate), out); err != nil {
		return &ParseError{Raw: raw, Stage: StageDecode, Err: err}
	}
	return nil
}

func extract(raw string) (string, any, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", nil, &ParseError{Raw: raw, Stage: StageWhole, Err: ErrNoJSON}
	}
	if v, err := decode(text); err == nil {
		return text, v, nil
	}
	if inner, ok := ExtractFenced(text, "json", "javascript", "js"); ok && strings.TrimSpace(inner) != "" {
		text = strings.TrimSpace(inner)
	}

	candidate, v, lastErr := attempt(text)
	if lastErr == nil {
		return candidate, v, nil
	}
	stage := StageSlice
	for _, c := range cleanups {
		text = c.fn(text)
		stage = c.name
		candidate, v, lastErr = attempt(text)
		if lastErr == nil {
			return candidate, v, nil
		}
	}
	return "", nil, &ParseError{Raw: raw, Stage: stage, Err: lastErr}
}

// attempt parses text whole, then the slice between the first opening
// bracket and its last matching closer.
func attempt(text string) (string, any, error) {
	v, err := decode(text)
	if err == nil {
		return text, v, nil
	}
	sliced, ok := slice(text)
	if !ok {
		return "", nil, ErrNoJSON
	}
	v, err = decode(sliced)
	if err != nil {
		return "", nil, err
	}
	return sliced, v, nil
}

func decode(text string) (any, error) {
	var v any
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

func slice(text string) (string, bool) {
	obj := strings.IndexByte(text, '{')
	arr := strings.IndexByte(text, '[')
	start, closer := obj, byte('}')
	if obj < 0 || (arr >= 0 && arr < obj) {
		start, closer = arr, ']'
	}
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

var attrQuoteRe = regexp.MustCompile(`(\s[A-Za-z_:@][-A-Za-z0-9_:.@]*)="([^"\n\\]*)"`)

// escapeAttrQuotes rewrites attr="x" to attr=\"x\" for HTML embedded in
// JSON strings by a model that forgot to escape it.
func escapeAttrQuotes(s string) string {
	return attrQuoteRe.ReplaceAllString(s, `$1=\"$2\"`)
}

var templateTagRe = regexp.MustCompile(`\{\{.*?\}\}|\{%.*?%\}`)

// escapeTemplateTags escapes bare quotes inside {{ ... }} and {% ... %} so
// tags like {% url "home" %} do not terminate the enclosing JSON string.
func escapeTemplateTags(s string) string {
	return templateTagRe.ReplaceAllStringFunc(s, func(tag string) string {
		var b strings.Builder
		b.Grow(len(tag) + 8)
		escaped := false
		for i := 0; i < len(tag); i++ {
			c := tag[i]
			if c == '"' && !escaped {
				b.WriteString(`\"`)
				continue
			}
			escaped = c == '\\' && !escaped
			b.WriteByte(c)
		}
		return b.String()
	})
}

// escapeStringControls escapes raw control characters that sit inside JSON
// string literals. Text outside strings is left alone.
func escapeStringControls(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}
		if escaped {
			escaped = false
			b.WriteByte(c)
			continue
		}
		switch c {
		case '\\':
			escaped = true
			b.WriteByte(c)
		case '"':
			inString = false
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if c < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, c)
				continue
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

var interLineSpaceRe = regexp.MustCompile(`[ \t]*\n[ \t\n]*`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(interLineSpaceRe.ReplaceAllString(s, "\n"))
}
