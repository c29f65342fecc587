// Package anthropic implements llm.Client against the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/anything-backend/internal/platform/envutil"
	"github.com/yungbote/anything-backend/internal/platform/llm"
)

const (
	ProviderName   = "anthropic"
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	DefaultModel   = "claude-3-opus-20240229"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ConfigFromEnv reads ANTHROPIC_* variables.
func ConfigFromEnv() Config {
	return Config{
		APIKey:  envutil.String("ANTHROPIC_API_KEY", ""),
		BaseURL: envutil.String("ANTHROPIC_BASE_URL", defaultBaseURL),
		Model:   envutil.String("ANTHROPIC_MODEL", DefaultModel),
		Timeout: envutil.Seconds("ANTHROPIC_TIMEOUT_SECONDS", 180),
	}
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *Client) Provider() string { return ProviderName }

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []llm.Message `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type messagesResponse struct {
	Model      string      `json:"model"`
	Content    []llm.Block `json:"content"`
	StopReason string      `json:"stop_reason"`
	Usage      llm.Usage   `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type httpError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *httpError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("anthropic http %d %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("anthropic http %d: %s", e.StatusCode, e.Message)
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	body := messagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, llm.NewBackendError(ProviderName, req, 0, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", &buf)
	if err != nil {
		return nil, llm.NewBackendError(ProviderName, req, 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			err = errors.Join(err, ctx.Err())
		}
		return nil, llm.NewBackendError(ProviderName, req, 0, err)
	}
	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, llm.NewBackendError(ProviderName, req, 0, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		he := &httpError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
			he.Type = er.Error.Type
			he.Message = er.Error.Message
		}
		return nil, llm.NewBackendError(ProviderName, req, resp.StatusCode, he)
	}

	var out messagesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, llm.NewBackendError(ProviderName, req, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Content) == 0 || strings.TrimSpace(out.Content[0].Text) == "" {
		return nil, llm.NewBackendError(ProviderName, req, resp.StatusCode, llm.ErrEmptyResponse)
	}
	return &llm.Response{
		Model:      out.Model,
		Content:    out.Content,
		Usage:      out.Usage,
		StopReason: out.StopReason,
	}, nil
}
