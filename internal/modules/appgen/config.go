package appgen

import (
	"time"

	"github.com/yungbote/anything-backend/internal/platform/envutil"
)

// Config carries every tunable of the pipeline. Nothing in the package reads
// the environment after construction.
type Config struct {
	// Model overrides the provider's default model when set.
	Model       string
	MaxTokens   int
	Temperature float64

	// MaxAttempts bounds calls per stage, including the first. Only
	// retryable backend errors are retried.
	MaxAttempts  int
	RetryInitial time.Duration
	RetryMax     time.Duration

	// PageConcurrency > 1 generates page content in parallel. Pages are
	// still persisted in page-list order.
	PageConcurrency int

	// Verbose logs full prompts and raw model output.
	Verbose bool
}

func DefaultConfig() Config {
	return Config{
		MaxTokens:       4096,
		Temperature:     0.7,
		MaxAttempts:     3,
		RetryInitial:    500 * time.Millisecond,
		RetryMax:        10 * time.Second,
		PageConcurrency: 1,
	}
}

// ConfigFromEnv overlays LLM_* environment variables on DefaultConfig.
func ConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		Model:           envutil.String("LLM_MODEL", def.Model),
		MaxTokens:       envutil.Int("LLM_MAX_TOKENS", def.MaxTokens),
		Temperature:     envutil.Float("LLM_TEMPERATURE", def.Temperature),
		MaxAttempts:     envutil.Int("LLM_MAX_ATTEMPTS", def.MaxAttempts),
		RetryInitial:    time.Duration(envutil.Int("LLM_RETRY_INITIAL_MS", int(def.RetryInitial/time.Millisecond))) * time.Millisecond,
		RetryMax:        envutil.Seconds("LLM_RETRY_MAX_SECONDS", int(def.RetryMax/time.Second)),
		PageConcurrency: envutil.Int("APPGEN_PAGE_CONCURRENCY", def.PageConcurrency),
		Verbose:         envutil.Bool("APPGEN_VERBOSE", def.Verbose),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = def.RetryInitial
	}
	if c.RetryMax < c.RetryInitial {
		c.RetryMax = c.RetryInitial
	}
	if c.PageConcurrency <= 0 {
		c.PageConcurrency = 1
	}
	return c
}
