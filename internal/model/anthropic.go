package model

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

const (
	anthropicModel = "claude-sonnet-4-20250514"

	// oauthPrefix marks Anthropic OAuth access tokens as opposed to
	// plain API keys.
	oauthPrefix = "sk-ant-oat"

	oauthBetaFeatures = "oauth-2025-04-20,interleaved-thinking-2025-05-14"
	oauthIdentity     = "You are Claude Code, Anthropic's official CLI for Claude."
)

// anthropicProvider calls the Anthropic Messages API through the
// official SDK, in either API-key or OAuth mode.
type anthropicProvider struct {
	api   *anthropic.Client
	model string
	oauth bool
}

// IsOAuthKey reports whether key is an OAuth access token.
func IsOAuthKey(key string) bool {
	return strings.HasPrefix(key, oauthPrefix)
}

func newAnthropicProvider(key string) *anthropicProvider {
	oauth := IsOAuthKey(key)

	var opts []option.RequestOption
	if oauth {
		opts = append(opts,
			option.WithAuthToken(key),
			option.WithHeader("anthropic-beta", oauthBetaFeatures),
		)
	} else {
		opts = append(opts, option.WithAPIKey(key))
	}

	client := anthropic.NewClient(opts...)
	return &anthropicProvider{
		api:   &client,
		model: anthropicModel,
		oauth: oauth,
	}
}

func (p *anthropicProvider) name() string {
	if p.oauth {
		return "anthropic-oauth"
	}
	return "anthropic"
}

func (p *anthropicProvider) complete(ctx context.Context, prompt string, opts Options) (completion, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(opts.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	var system []anthropic.TextBlockParam
	if p.oauth {
		// OAuth sessions require the Claude Code identity block first.
		system = append(system, anthropic.TextBlockParam{Text: oauthIdentity})
	}
	if opts.SystemPrompt != "" {
		system = append(system, anthropic.TextBlockParam{Text: opts.SystemPrompt})
	}
	if len(system) > 0 {
		params.System = system
	}

	msg, err := p.api.Messages.New(ctx, params)
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			return completion{}, &Error{
				Kind:    classifyStatus(apierr.StatusCode),
				Message: "anthropic API error",
				Err:     err,
			}
		}
		return completion{}, wrapCallError(ctx, "anthropic", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return completion{}, &Error{Kind: ErrInvalidResponse, Message: "no text content in anthropic response"}
	}

	return completion{
		text: text.String(),
		usage: types.TokenUsage{
			PromptTokens:     msg.Usage.InputTokens,
			CompletionTokens: msg.Usage.OutputTokens,
		},
		exact: true,
	}, nil
}
