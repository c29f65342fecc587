// Package gemini implements llm.Client on top of google.golang.org/genai.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"github.com/yungbote/anything-backend/internal/platform/envutil"
	"github.com/yungbote/anything-backend/internal/platform/llm"
)

const (
	ProviderName = "gemini"
	DefaultModel = "gemini-2.5-flash"
)

type Config struct {
	APIKey string
	Model  string
}

func ConfigFromEnv() Config {
	return Config{
		APIKey: envutil.String("GEMINI_API_KEY", ""),
		Model:  envutil.String("GEMINI_MODEL", DefaultModel),
	}
}

// Client is a thin wrapper around the genai client. Rate limiting, logging
// and retries are layered on by the caller.
type Client struct {
	cli   *genai.Client
	model string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{cli: cli, model: model}, nil
}

func (c *Client) Provider() string { return ProviderName }

func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	model := req.Model
	if model == "" || strings.HasPrefix(model, "claude") {
		model = c.model
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}

	resp, err := c.cli.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, llm.NewBackendError(ProviderName, req, statusOf(err), err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, llm.NewBackendError(ProviderName, req, 200, llm.ErrEmptyResponse)
	}

	out := &llm.Response{Model: model}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Text == "" {
			continue
		}
		out.Content = append(out.Content, llm.Block{Type: "text", Text: p.Text})
	}
	if len(out.Content) == 0 {
		return nil, llm.NewBackendError(ProviderName, req, 200, llm.ErrEmptyResponse)
	}
	if resp.Candidates[0].FinishReason != "" {
		out.StopReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			InputTokens:  int64(u.PromptTokenCount),
			OutputTokens: int64(u.CandidatesTokenCount),
		}
	}
	return out, nil
}

func statusOf(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}
