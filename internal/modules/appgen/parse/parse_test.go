package parse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStructuredProseWrapped(t *testing.T) {
	raw := "Sure! Here is the app:\n{\"name\": \"Contacts\", \"pages\": [\"home\"]}\nLet me know if you need changes."
	v, err := ExtractObject(raw)
	require.NoError(t, err)
	assert.Equal(t, "Contacts", v["name"])
	assert.Equal(t, []any{"home"}, v["pages"])
}

func TestExtractStructuredFenced(t *testing.T) {
	raw := "Here you go:\n```json\n{\"count\": 3}\n```\n"
	v, err := ExtractObject(raw)
	require.NoError(t, err)
	assert.Equal(t, float64(3), v["count"])
}

func TestExtractStructuredRawNewlineInString(t *testing.T) {
	raw := "{\"template\": \"<div>\n  <h1>Hi</h1>\n</div>\"}"
	v, err := ExtractObject(raw)
	require.NoError(t, err)
	assert.Contains(t, v["template"], "<h1>Hi</h1>")
}

func TestExtractStructuredUnescapedAttributes(t *testing.T) {
	raw := `{"template": "<div class="card" id="main">x</div>"}`
	v, err := ExtractObject(raw)
	require.NoError(t, err)
	assert.Equal(t, `<div class="card" id="main">x</div>`, v["template"])
}

func TestExtractStructuredTemplateTagQuotes(t *testing.T) {
	raw := `{"template": "<a href='{% url "home" %}'>home</a>"}`
	v, err := ExtractObject(raw)
	require.NoError(t, err)
	assert.Equal(t, `<a href='{% url "home" %}'>home</a>`, v["template"])
}

func TestExtractStructuredIdempotent(t *testing.T) {
	raw := `{"a": [1, 2, {"b": "c"}], "d": null, "e": true}`
	first, err := ExtractStructured(raw)
	require.NoError(t, err)
	second, err := ExtractStructured(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtractStructuredFailures(t *testing.T) {
	for _, raw := range []string{"", "   ", "no json here at all", "{\"a\": "} {
		v, err := ExtractStructured(raw)
		require.Error(t, err, raw)
		assert.Nil(t, v)
		var pe *ParseError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, raw, pe.Raw)
	}
}

func TestExtractObjectRejectsArray(t *testing.T) {
	_, err := ExtractObject(`[1, 2]`)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageDecode, pe.Stage)
}

func TestExtractInto(t *testing.T) {
	var out struct {
		Name  string   `json:"name"`
		Pages []string `json:"pages"`
	}
	require.NoError(t, ExtractInto("result: {\"name\": \"x\", \"pages\": [\"a\", \"b\"]} done", &out))
	assert.Equal(t, "x", out.Name)
	assert.Equal(t, []string{"a", "b"}, out.Pages)
}

func TestExtractFenced(t *testing.T) {
	raw := "intro\n```html\n<p>x</p>\n```\nand\n```json\n{}\n```"
	got, ok := ExtractFenced(raw, "json")
	require.True(t, ok)
	assert.Equal(t, "{}", got)

	got, ok = ExtractFenced(raw)
	require.True(t, ok)
	assert.Equal(t, "<p>x</p>", got)

	_, ok = ExtractFenced(raw, "yaml")
	assert.False(t, ok)

	_, ok = ExtractFenced("nothing fenced")
	assert.False(t, ok)
}

func TestParseSections(t *testing.T) {
	raw := "preamble ignored\n" +
		"--- TEMPLATE ---\n" +
		"<h1>((title))</h1>\n" +
		"(% for item in items %)<li class=|row|>((item.name))</li>(% endfor %)\n" +
		"--- METADATA ---\n" +
		"{\"title\": \"Contacts\"}\n" +
		"--- notes ---\n" +
		"free text\n"
	s, err := ParseSections(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"TEMPLATE", "METADATA", "NOTES"}, s.Order)

	tpl, ok := s.Get("template")
	require.True(t, ok)
	assert.Equal(t, "<h1>{{ title }}</h1>\n{% for item in items %}<li class=\"row\">{{ item.name }}</li>{% endfor %}", tpl)

	notes, _ := s.Get("NOTES")
	assert.Equal(t, "free text", notes)
	assert.Equal(t, map[string]any{"title": "Contacts"}, s.Metadata)
}

func TestParseSectionsBadMetadata(t *testing.T) {
	_, err := ParseSections("--- METADATA ---\nnot json\n")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestParseSectionsNoMarkers(t *testing.T) {
	s, err := ParseSections("just text")
	require.NoError(t, err)
	assert.Empty(t, s.Order)
	assert.Nil(t, s.Metadata)
}

func TestScanKeyValues(t *testing.T) {
	raw := "Here are the queries:\n" +
		"QUERY: ignored before opener\n" +
		"- **KEY:** contacts\n" +
		"  QUERY: select contacts\n" +
		"  QUERY NAME: all contacts\n" +
		"  COLOR: blue\n" +
		"2. KEY: total\n" +
		"QUERY: count contacts\n"
	recs := ScanKeyValues(raw, "KEY", "QUERY", "QUERY NAME")
	require.Len(t, recs, 2)
	assert.Equal(t, "contacts", recs[0].Get("key"))
	assert.Equal(t, "select contacts", recs[0].Get("QUERY"))
	assert.Equal(t, "all contacts", recs[0].Get("QUERY NAME"))
	assert.Empty(t, recs[0].Get("COLOR"))
	assert.Equal(t, "total", recs[1].Get("KEY"))
	assert.Equal(t, "count contacts", recs[1].Get("QUERY"))

	assert.Empty(t, ScanKeyValues("nothing", "KEY"))
	assert.Nil(t, ScanKeyValues("KEY: x"))
}
