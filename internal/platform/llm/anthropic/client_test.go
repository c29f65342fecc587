package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/anything-backend/internal/platform/llm"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestCompleteSendsMessagesRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var body messagesRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "m1", body.Model)
		assert.Equal(t, 1000, body.MaxTokens)
		assert.Equal(t, "sys", body.System)
		if assert.Len(t, body.Messages, 1) {
			assert.Equal(t, llm.RoleUser, body.Messages[0].Role)
		}
		if assert.NotNil(t, body.Temperature) {
			assert.InDelta(t, 0.7, *body.Temperature, 1e-9)
		}

		_, _ = w.Write([]byte(`{"model":"m1","content":[{"type":"text","text":"NAME: Contacts"}],"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":7}}`))
	})

	resp, err := c.Complete(context.Background(), llm.Request{
		Stage:       "identity",
		Model:       "m1",
		System:      "sys",
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		MaxTokens:   1000,
		Temperature: llm.Float64(0.7),
	})
	require.NoError(t, err)
	assert.Equal(t, "NAME: Contacts", resp.Text())
	assert.Equal(t, int64(7), resp.Usage.OutputTokens)
	assert.Equal(t, int64(12), resp.Usage.InputTokens)
}

func TestCompleteClassifiesHTTPErrors(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{529, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"some_error","message":"nope"}}`))
		})
		_, err := c.Complete(context.Background(), llm.Request{
			Stage:    "schema",
			Messages: []llm.Message{{Role: llm.RoleUser, Content: "describe the schema"}},
		})
		var be *llm.BackendError
		require.True(t, errors.As(err, &be), "status %d", tc.status)
		assert.Equal(t, tc.status, be.StatusCode)
		assert.Equal(t, tc.retryable, be.Retryable, "status %d", tc.status)
		assert.Equal(t, "schema", be.Stage)
		assert.Equal(t, "describe the schema", be.PromptFragment)
		assert.Contains(t, be.Error(), "nope")
	}
}

func TestCompleteEmptyContentIsPermanent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"m","content":[],"usage":{"output_tokens":0}}`))
	})
	_, err := c.Complete(context.Background(), llm.Request{Stage: "pages"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrEmptyResponse))
	assert.False(t, llm.IsRetryable(err))
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
