package agent

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"github.com/ggonzalez94/yieldsensei/internal/pipeline"
)

const (
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultMaxTokens      = 4096
)

type AnthropicConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int64
}

type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	log       *zap.Logger
}

func NewAnthropic(cfg AnthropicConfig, log *zap.Logger) (*Anthropic, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, clierr.New(clierr.CodeAuth, "anthropic executor requires an api key")
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		log:       log,
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Execute(ctx context.Context, req pipeline.Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(req.Agent)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt(req))),
		},
	}
	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", mapAnthropicError(err)
	}
	a.log.Debug("anthropic response",
		zap.String("stage", string(req.Stage)),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", clierr.New(clierr.CodeParse, "anthropic response has no text content")
	}
	return out, nil
}

func mapAnthropicError(err error) error {
	if errors.Is(err, context.Canceled) {
		return clierr.Wrap(clierr.CodeCancelled, "anthropic request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return clierr.Wrap(clierr.CodeTimeout, "anthropic request timed out", err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return clierr.Wrap(clierr.CodeAuth, "anthropic rejected credentials", err)
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return clierr.Wrap(clierr.CodeRateLimited, "anthropic rate limited", err)
		}
	}
	return clierr.Wrap(clierr.CodeUnavailable, "anthropic request failed", err)
}
