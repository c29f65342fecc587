package logger

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeValueRedactsCredentials(t *testing.T) {
	assert.Equal(t, "[REDACTED]", sanitizeValue("anthropic_api_key", "sk-123"))
	assert.Equal(t, "[REDACTED]", sanitizeValue("refresh_token", "abc"))
	assert.Equal(t, "[REDACTED]", sanitizeValue("email", "a@b.c"))
}

func TestSanitizeValueKeepsTokenCounters(t *testing.T) {
	assert.Equal(t, 42, sanitizeValue("tokens_used", 42))
	assert.Equal(t, 7, sanitizeValue("output_tokens", 7))
	assert.Equal(t, int64(100), sanitizeValue("token_balance", int64(100)))
}

func TestSanitizeValueHashesUserIDs(t *testing.T) {
	got := sanitizeValue("user_id", "7b0c3c7e-0000-0000-0000-000000000001")
	s, ok := got.(string)
	assert.True(t, ok)
	assert.Contains(t, s, "hash:")
	assert.Equal(t, "", hashValue(""))
}

func TestSanitizeMapRecurses(t *testing.T) {
	out := sanitizeMap(map[string]interface{}{
		"password": "hunter2",
		"nested":   map[string]interface{}{"secret": "x", "slug": "home"},
	})
	assert.Equal(t, "[REDACTED]", out["password"])
	nested := out["nested"].(map[string]interface{})
	assert.Equal(t, "[REDACTED]", nested["secret"])
	assert.Equal(t, "home", nested["slug"])
}

func TestClipValueBoundsBulkText(t *testing.T) {
	long := strings.Repeat("é", maxValueChars)
	got, ok := clipValue("raw", long).(string)
	assert.True(t, ok)
	assert.Less(t, len(got), len(long))
	assert.True(t, utf8.ValidString(got))
	assert.Contains(t, got, "...(+")

	assert.Equal(t, long, clipValue("slug", long))
	assert.Equal(t, "short", clipValue("prompt", "short"))
	assert.Equal(t, 12, clipValue("text", 12))
}
