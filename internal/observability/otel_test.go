package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHeaders(t *testing.T) {
	assert.Equal(t, map[string]string{"api-key": "abc", "tenant": "x=y"}, parseHeaders(" api-key = abc ,bad,=v,tenant=x=y"))
	assert.Nil(t, parseHeaders(""))
	assert.Nil(t, parseHeaders("novalue="))
}

func TestLoadOtelSettings(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "yes")
	t.Setenv("OTEL_SAMPLER_RATIO", "7")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")

	s := loadOtelSettings()
	assert.True(t, s.Enabled)
	assert.Equal(t, 1.0, s.SampleRatio)
	assert.Equal(t, "collector:4318", s.Endpoint)
	assert.Nil(t, s.Headers)
	assert.False(t, s.Insecure)

	t.Setenv("OTEL_SAMPLER_RATIO", "-1")
	assert.Equal(t, 0.0, loadOtelSettings().SampleRatio)
}
