package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Client performs exactly one request/response round trip against a model
// provider. Implementations never retry; retry policy belongs to callers.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Provider() string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	// Stage names the pipeline step issuing the call. It is carried into
	// errors and logs and never sent to the provider.
	Stage       string
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

// UserPrompt returns the text of the last user message.
func (r Request) UserPrompt() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

type Block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type Response struct {
	Model      string
	Content    []Block
	Usage      Usage
	StopReason string
}

// Text returns the first content block's text.
func (r *Response) Text() string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	return r.Content[0].Text
}

const promptFragmentLen = 200

// BackendError is the single failure type surfaced by every Client.
type BackendError struct {
	Stage          string
	Provider       string
	StatusCode     int
	PromptFragment string
	Retryable      bool
	Err            error
}

func (e *BackendError) Error() string {
	var b strings.Builder
	b.WriteString("llm backend error")
	if e.Provider != "" {
		b.WriteString(" (" + e.Provider + ")")
	}
	if e.Stage != "" {
		b.WriteString(" at stage " + e.Stage)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": http %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *BackendError) Unwrap() error { return e.Err }

// ErrEmptyResponse is wrapped by BackendError when a provider answers
// without any text content.
var ErrEmptyResponse = errors.New("empty response content")

// NewBackendError builds a BackendError for req, classifying retryability
// from the status code when one is known.
func NewBackendError(provider string, req Request, status int, err error) *BackendError {
	return &BackendError{
		Stage:          req.Stage,
		Provider:       provider,
		StatusCode:     status,
		PromptFragment: Fragment(req.UserPrompt(), promptFragmentLen),
		Retryable:      retryableStatus(status, err),
		Err:            err,
	}
}

func retryableStatus(status int, err error) bool {
	if errors.Is(err, ErrEmptyResponse) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch {
	case status == 0:
		// transport failure, no response
		return true
	case status == 408 || status == 409 || status == 429:
		return true
	case status >= 500:
		return true
	}
	return false
}

// IsRetryable reports whether err is a BackendError marked retryable.
func IsRetryable(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// Fragment trims s to at most n runes for diagnostics.
func Fragment(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Float64 is a small helper for Request.Temperature.
func Float64(v float64) *float64 { return &v }
