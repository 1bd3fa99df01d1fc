package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"github.com/ggonzalez94/yieldsensei/internal/httpx"
	"github.com/ggonzalez94/yieldsensei/internal/pipeline"
	"github.com/ggonzalez94/yieldsensei/internal/registry"
)

const (
	DefaultChatBaseURL = registry.OpenAIBaseURL
	DefaultChatModel   = "gpt-4o-mini"
)

type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Chat talks to any OpenAI-compatible chat completions endpoint.
type Chat struct {
	http      *httpx.Client
	apiKey    string
	baseURL   string
	model     string
	maxTokens int64
	temp      float64
}

func NewChat(httpClient *httpx.Client, cfg ChatConfig) (*Chat, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, clierr.New(clierr.CodeAuth, "chat executor requires an api key")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultChatBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultChatModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Chat{http: httpClient, apiKey: key, baseURL: base, model: model, maxTokens: maxTokens, temp: cfg.Temperature}, nil
}

func (c *Chat) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int64         `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Chat) Execute(ctx context.Context, req pipeline.Request) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(req.Agent)},
			{Role: "user", Content: userPrompt(req)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temp,
	})
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "encode chat request", err)
	}

	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+"/chat/completions", body, headers, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", clierr.New(clierr.CodeParse, "chat response has no choices")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", clierr.New(clierr.CodeParse, "chat response content is empty")
	}
	return out, nil
}
