package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePrometheusIncludesObservedSeries(t *testing.T) {
	m := newMetrics()
	m.ObserveAPI("POST", "/api/apps/generate", "202", 30*time.Millisecond)
	m.ObserveAPI("GET", "/api/apps/:id", "500", time.Second)
	m.ObserveLLMRequest("anthropic", "identity", "ok", 2*time.Second, 120, 40)
	m.ObserveGenerationStage("generate", "schema", "ok", 3*time.Second)
	m.AddTokensCharged("deduct", 100)

	var buf bytes.Buffer
	require.NoError(t, m.WritePrometheus(&buf))
	out := buf.String()

	assert.Contains(t, out, `anything_api_requests_total{method="POST",route="/api/apps/generate",status="202"} 1.000000`)
	assert.Contains(t, out, "anything_api_requests_error_total 1.000000")
	assert.Contains(t, out, `anything_llm_tokens_total{provider="anthropic",direction="output"} 40.000000`)
	assert.Contains(t, out, `anything_generation_stage_total{pipeline="generate",stage="schema",status="ok"} 1.000000`)
	assert.Contains(t, out, `anything_tokens_charged_total{kind="deduct"} 100.000000`)
	assert.Contains(t, out, `anything_generation_stage_duration_seconds_bucket{pipeline="generate",stage="schema",status="ok",le="5"} 1`)
}

func TestCounterVecOutputIsSorted(t *testing.T) {
	c := NewCounterVec("x_total", "x", []string{"k"})
	c.Inc("b")
	c.Inc("a")
	var buf bytes.Buffer
	require.NoError(t, c.WritePrometheus(&buf))
	out := buf.String()
	assert.Less(t, strings.Index(out, `k="a"`), strings.Index(out, `k="b"`))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/", "200", time.Millisecond)
	m.ObserveLLMRequest("p", "s", "ok", time.Millisecond, 1, 1)
	m.ObserveGenerationStage("g", "s", "ok", time.Millisecond)
	m.ObserveActivity("a", "j", "failed", time.Millisecond)
	assert.NoError(t, m.WritePrometheus(&bytes.Buffer{}))
}
