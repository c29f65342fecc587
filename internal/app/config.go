package app

import (
	"strings"

	"github.com/joho/godotenv"

	"github.com/yungbote/anything-backend/internal/data/db"
	"github.com/yungbote/anything-backend/internal/jobs/worker"
	"github.com/yungbote/anything-backend/internal/modules/appgen"
	"github.com/yungbote/anything-backend/internal/platform/envutil"
	"github.com/yungbote/anything-backend/internal/platform/llm/anthropic"
	"github.com/yungbote/anything-backend/internal/platform/llm/gemini"
	"github.com/yungbote/anything-backend/internal/services"
	"github.com/yungbote/anything-backend/internal/temporalx"
)

const (
	ProviderAnthropic = anthropic.ProviderName
	ProviderGemini    = gemini.ProviderName
)

// Config is read once at startup. Nothing below the app package reads the
// environment for settings carried here.
type Config struct {
	LogMode     string
	Addr        string
	ServiceName string
	Environment string
	Version     string
	CORSOrigins []string

	PostgresDSN string
	RedisAddr   string
	MetricsAddr string

	LLMProvider string
	LLMRPS      float64
	LLMBurst    int
	Anthropic   anthropic.Config
	Gemini      gemini.Config

	PromptOverrideDir string
	AppGen            appgen.Config
	TokenCost         services.TokenCostConfig

	// RunWorker starts the polling job worker (or the Temporal worker when
	// Temporal is configured) inside serve.
	RunWorker bool
	Worker    worker.Config
	Temporal  temporalx.Config
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig() Config {
	_ = godotenv.Load()

	addr := envutil.String("PORT", "8080")
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	return Config{
		LogMode:     envutil.String("LOG_MODE", "development"),
		Addr:        addr,
		ServiceName: envutil.String("SERVICE_NAME", "anything-api"),
		Environment: envutil.String("ENVIRONMENT", "development"),
		Version:     envutil.String("VERSION", "dev"),
		CORSOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),

		PostgresDSN: db.DSNFromEnv(),
		RedisAddr:   envutil.String("REDIS_ADDR", ""),
		MetricsAddr: envutil.String("METRICS_ADDR", ":9090"),

		LLMProvider: strings.ToLower(envutil.String("LLM_PROVIDER", ProviderAnthropic)),
		LLMRPS:      envutil.Float("LLM_RATE_LIMIT_RPS", 2),
		LLMBurst:    envutil.Int("LLM_RATE_LIMIT_BURST", 4),
		Anthropic:   anthropic.ConfigFromEnv(),
		Gemini:      gemini.ConfigFromEnv(),

		PromptOverrideDir: envutil.String("PROMPT_OVERRIDE_DIR", ""),
		AppGen:            appgen.ConfigFromEnv(),
		TokenCost:         services.TokenCostConfigFromEnv(),

		RunWorker: envutil.Bool("WORKER_ENABLED", true),
		Worker:    worker.ConfigFromEnv(),
		Temporal:  temporalx.LoadConfig(),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
