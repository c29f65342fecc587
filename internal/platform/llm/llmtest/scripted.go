// Package llmtest provides a deterministic llm.Client for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/anything-backend/internal/platform/llm"
)

// Reply is one scripted answer. When Err is set it is returned instead of
// a response.
type Reply struct {
	Text         string
	OutputTokens int64
	Err          error
}

// Scripted answers calls by stage. Each stage holds a queue of replies;
// the last reply of a queue repeats once the queue is drained.
type Scripted struct {
	mu      sync.Mutex
	replies map[string][]Reply
	calls   []llm.Request

	// Match, when set, picks the reply key for a request instead of the stage.
	Match func(req llm.Request) string
}

func NewScripted() *Scripted {
	return &Scripted{replies: map[string][]Reply{}}
}

// On queues replies for key (normally the stage name).
func (s *Scripted) On(key string, replies ...Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[key] = append(s.replies[key], replies...)
	return s
}

// Text is shorthand for a successful reply.
func Text(text string, outputTokens int64) Reply {
	return Reply{Text: text, OutputTokens: outputTokens}
}

// Fail is shorthand for a failing reply.
func Fail(err error) Reply {
	return Reply{Err: err}
}

func (s *Scripted) Provider() string { return "scripted" }

func (s *Scripted) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, llm.NewBackendError("scripted", req, 0, err)
	}
	key := req.Stage
	if s.Match != nil {
		key = s.Match(req)
	}

	s.mu.Lock()
	s.calls = append(s.calls, req)
	queue := s.replies[key]
	if len(queue) == 0 {
		s.mu.Unlock()
		return nil, llm.NewBackendError("scripted", req, 400, fmt.Errorf("no scripted reply for %q", key))
	}
	r := queue[0]
	if len(queue) > 1 {
		s.replies[key] = queue[1:]
	}
	s.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	if r.Text == "" {
		return nil, llm.NewBackendError("scripted", req, 200, llm.ErrEmptyResponse)
	}
	return &llm.Response{
		Model:   req.Model,
		Content: []llm.Block{{Type: "text", Text: r.Text}},
		Usage:   llm.Usage{OutputTokens: r.OutputTokens},
	}, nil
}

// Calls returns a copy of every request seen so far.
func (s *Scripted) Calls() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// Stages lists the stage of every call in order.
func (s *Scripted) Stages() []string {
	calls := s.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Stage)
	}
	return out
}
