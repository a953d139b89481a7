package model

import (
	"context"
	"net/http"
	"strings"
)

const (
	openCodeDefaultEndpoint = "http://localhost:8000/v1/chat/completions"
	openCodeModel           = "default"
)

// openCodeProvider calls an OpenCode gateway, which speaks the
// OpenAI-compatible chat protocol at a configurable base URL.
type openCodeProvider struct {
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

func newOpenCodeProvider(baseURL, apiKey string) *openCodeProvider {
	endpoint := openCodeDefaultEndpoint
	if baseURL != "" {
		endpoint = strings.TrimSuffix(baseURL, "/") + "/v1/chat/completions"
	}
	return &openCodeProvider{
		apiKey:   apiKey,
		endpoint: endpoint,
		model:    openCodeModel,
		client:   http.DefaultClient,
	}
}

func (p *openCodeProvider) name() string { return "opencode" }

func (p *openCodeProvider) complete(ctx context.Context, prompt string, opts Options) (completion, error) {
	req := chatRequest{
		Model:       p.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if opts.SystemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}
	return doChatRequest(ctx, p.client, p.name(), p.endpoint, headers, req)
}
