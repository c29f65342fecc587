package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/anything-backend/internal/observability"
	"github.com/yungbote/anything-backend/internal/platform/applock"
	"github.com/yungbote/anything-backend/internal/platform/llm"
	"github.com/yungbote/anything-backend/internal/platform/llm/anthropic"
	"github.com/yungbote/anything-backend/internal/platform/llm/gemini"
	"github.com/yungbote/anything-backend/internal/platform/logger"
	"github.com/yungbote/anything-backend/internal/temporalx"
)

type Clients struct {
	LLM      llm.Client
	Redis    *goredis.Client
	Temporal temporalsdkclient.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")

	// LLM
	base, err := newLLM(ctx, cfg)
	if err != nil {
		return Clients{}, fmt.Errorf("init llm client: %w", err)
	}
	mws := []llm.Middleware{
		llm.WithRateLimit(cfg.LLMRPS, cfg.LLMBurst),
		llm.WithLogging(log, cfg.AppGen.Verbose),
	}
	if metrics != nil {
		mws = append(mws, llm.WithMetrics(metrics))
	}
	out := Clients{LLM: llm.Wrap(base, mws...)}
	log.Info("LLM client ready", "provider", base.Provider())

	// Redis
	if cfg.RedisAddr != "" {
		rdb, err := applock.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
	}

	// Temporal
	tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}
	out.Temporal = tc
	return out, nil
}

func newLLM(ctx context.Context, cfg Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case ProviderAnthropic:
		return anthropic.New(cfg.Anthropic)
	case ProviderGemini:
		return gemini.New(ctx, cfg.Gemini)
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func (c Clients) Close() {
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
