package llm

import (
	"context"
	"errors"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/anything-backend/internal/platform/logger"
)

// Middleware decorates a Client with a cross-cutting concern.
type Middleware func(Client) Client

// Wrap applies middlewares left to right: Wrap(c, A, B) == A(B(c)).
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			out = mws[i](out)
		}
	}
	return out
}

// WithRateLimit throttles calls to rps requests per second. rps <= 0
// disables the limiter.
func WithRateLimit(rps float64, burst int) Middleware {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next Client) Client {
		return &rateLimited{next: next, lim: lim}
	}
}

type rateLimited struct {
	next Client
	lim  *rate.Limiter
}

func (c *rateLimited) Provider() string { return c.next.Provider() }

func (c *rateLimited) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := c.lim.Wait(ctx); err != nil {
		return nil, NewBackendError(c.next.Provider(), req, 0, err)
	}
	return c.next.Complete(ctx, req)
}

// WithLogging logs one line per call. When verbose is set, the full prompt
// and response text are logged at debug level.
func WithLogging(log *logger.Logger, verbose bool) Middleware {
	if log == nil {
		return nil
	}
	return func(next Client) Client {
		return &logging{next: next, log: log.With("component", "LLMClient", "provider", next.Provider()), verbose: verbose}
	}
}

type logging struct {
	next    Client
	log     *logger.Logger
	verbose bool
}

func (l *logging) Provider() string { return l.next.Provider() }

func (l *logging) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	if l.verbose {
		l.log.Debug("LLM request", "stage", req.Stage, "model", req.Model, "system", req.System, "prompt", req.UserPrompt())
	}
	resp, err := l.next.Complete(ctx, req)
	took := time.Since(start).Milliseconds()
	if err != nil {
		l.log.Warn("LLM call failed", "stage", req.Stage, "model", req.Model, "duration_ms", took, "retryable", IsRetryable(err), "error", err)
		return nil, err
	}
	l.log.Info("LLM call finished",
		"stage", req.Stage,
		"model", resp.Model,
		"duration_ms", took,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	if l.verbose {
		l.log.Debug("LLM response", "stage", req.Stage, "text", resp.Text())
	}
	return resp, nil
}

// Observer receives one observation per call.
type Observer interface {
	ObserveLLMRequest(provider, stage, status string, dur time.Duration, inputTokens, outputTokens int64)
}

// WithMetrics reports every call to obs. A nil observer disables it.
func WithMetrics(obs Observer) Middleware {
	if obs == nil {
		return nil
	}
	return func(next Client) Client {
		return &metered{next: next, obs: obs}
	}
}

type metered struct {
	next Client
	obs  Observer
}

func (m *metered) Provider() string { return m.next.Provider() }

func (m *metered) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := m.next.Complete(ctx, req)
	if err != nil {
		status := "error"
		var be *BackendError
		if errors.As(err, &be) && be.StatusCode != 0 {
			status = strconv.Itoa(be.StatusCode)
		}
		m.obs.ObserveLLMRequest(m.next.Provider(), req.Stage, status, time.Since(start), 0, 0)
		return nil, err
	}
	m.obs.ObserveLLMRequest(m.next.Provider(), req.Stage, "ok", time.Since(start), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp, nil
}
