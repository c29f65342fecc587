package appgen

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/anything-backend/internal/modules/appgen/prompts"
	"github.com/yungbote/anything-backend/internal/observability"
	"github.com/yungbote/anything-backend/internal/platform/llm"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

const (
	pipelineGenerate = "generate"
	pipelineUpdate   = "update"
)

// usageSink persists the output tokens of one completed call.
type usageSink func(ctx context.Context, delta int64) error

// run is one execution of a pipeline. It owns the running token total.
type run struct {
	g        *Generator
	log      *logger.Logger
	pipeline string
	sink     usageSink

	mu        sync.Mutex
	tokens    int64
	persisted []string
}

func (g *Generator) newRun(pipeline string, log *logger.Logger, sink usageSink) *run {
	return &run{g: g, log: log, pipeline: pipeline, sink: sink}
}

func (r *run) total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens
}

func (r *run) markPersisted(slug string) {
	r.mu.Lock()
	r.persisted = append(r.persisted, slug)
	r.mu.Unlock()
}

// record adds delta to the total and persists it before the next call
// starts, so a failed run still reports what it spent.
func (r *run) record(ctx context.Context, delta int64) error {
	if delta <= 0 {
		return nil
	}
	r.mu.Lock()
	r.tokens += delta
	r.mu.Unlock()
	if r.sink == nil {
		return nil
	}
	return r.sink(context.WithoutCancel(ctx), delta)
}

// call renders the named prompt, issues it with retry, records usage and
// returns the first content block's text.
func (r *run) call(ctx context.Context, name prompts.PromptName, bindings map[string]any) (text string, err error) {
	stage := string(name)
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "appgen.stage",
		attribute.String("appgen.pipeline", r.pipeline),
		attribute.String("appgen.stage", stage),
	)
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		observability.Current().ObserveGenerationStage(r.pipeline, stage, status, time.Since(start))
		observability.EndSpan(span, err)
	}()

	tpl, err := r.g.prompts.Get(name)
	if err != nil {
		return "", err
	}
	system, user, unresolved := tpl.Render(bindings)
	if len(unresolved) > 0 {
		r.log.Warn("Prompt has unresolved placeholders", "stage", stage, "placeholders", unresolved)
	}

	req := llm.Request{
		Stage:     stage,
		Model:     r.g.cfg.Model,
		System:    system,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: user}},
		MaxTokens: r.g.cfg.MaxTokens,
	}
	if tpl.MaxTokens > 0 {
		req.MaxTokens = tpl.MaxTokens
	}
	if tpl.Temperature != nil {
		req.Temperature = llm.Float64(*tpl.Temperature)
	} else {
		req.Temperature = llm.Float64(r.g.cfg.Temperature)
	}
	if r.g.cfg.Verbose {
		r.log.Debug("Prompt", "stage", stage, "system", system, "user", user)
	}

	resp, err := r.g.complete(ctx, r.log, req)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.Int64("llm.output_tokens", resp.Usage.OutputTokens))
	if err := r.record(ctx, resp.Usage.OutputTokens); err != nil {
		return "", err
	}
	text = resp.Text()
	if r.g.cfg.Verbose {
		r.log.Debug("Model output", "stage", stage, "text", text)
	}
	return text, nil
}

// complete retries retryable backend errors with exponential backoff.
// Everything else fails on the first attempt.
func (g *Generator) complete(ctx context.Context, log *logger.Logger, req llm.Request) (*llm.Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.cfg.RetryInitial
	b.MaxInterval = g.cfg.RetryMax

	return backoff.Retry(ctx, func() (*llm.Response, error) {
		resp, err := g.llm.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !llm.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(g.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn("Retrying LLM call", "stage", req.Stage, "wait", wait.String(), "error", err)
		}),
	)
}
