package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

const (
	openAIEndpoint = "https://api.openai.com/v1/chat/completions"
	openAIModel    = "gpt-4o"
)

// chatMessage is the OpenAI-style chat message shared by the OpenAI
// and OpenCode adapters.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Temperature    float64        `json:"temperature,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// openAIProvider calls the OpenAI chat completions API.
type openAIProvider struct {
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

func newOpenAIProvider(apiKey string) *openAIProvider {
	return &openAIProvider{
		apiKey:   apiKey,
		endpoint: openAIEndpoint,
		model:    openAIModel,
		client:   http.DefaultClient,
	}
}

func (p *openAIProvider) name() string { return "openai" }

func (p *openAIProvider) complete(ctx context.Context, prompt string, opts Options) (completion, error) {
	req := chatRequest{
		Model:       p.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if opts.SystemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})
	if opts.ResponseFormat == FormatJSONObject {
		req.ResponseFormat = map[string]any{"type": "json_object"}
	}

	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	return doChatRequest(ctx, p.client, p.name(), p.endpoint, headers, req)
}

// doChatRequest posts an OpenAI-style chat request and decodes the
// first choice, mapping HTTP failures onto the model error taxonomy.
func doChatRequest(ctx context.Context, client *http.Client, providerName, endpoint string, headers map[string]string, req chatRequest) (completion, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return completion{}, &Error{Kind: ErrInvalidResponse, Message: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return completion{}, &Error{Kind: ErrTransport, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return completion{}, wrapCallError(ctx, providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := classifyStatus(resp.StatusCode)
		e := &Error{
			Kind:    kind,
			Message: fmt.Sprintf("%s API error (%s): %s", providerName, resp.Status, snippet(string(slurp), 200)),
		}
		if kind == ErrRateLimited {
			e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return completion{}, e
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return completion{}, &Error{Kind: ErrInvalidResponse, Message: providerName + " response decode failed", Err: err}
	}
	if len(chat.Choices) == 0 {
		return completion{}, &Error{Kind: ErrInvalidResponse, Message: providerName + " response has no choices"}
	}

	return completion{
		text: chat.Choices[0].Message.Content,
		usage: types.TokenUsage{
			PromptTokens:     chat.Usage.PromptTokens,
			CompletionTokens: chat.Usage.CompletionTokens,
		},
		exact: chat.Usage.PromptTokens > 0 || chat.Usage.CompletionTokens > 0,
	}, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
