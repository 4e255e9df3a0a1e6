package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompatible talks to any endpoint that implements the OpenAI chat
// completions API: hosted gateways, OpenAI itself and local Ollama.
type OpenAICompatible struct {
	id     string
	client *openai.Client
}

// NewOpenAICompatible creates an adapter. An empty baseURL keeps the OpenAI
// default. httpClient may be nil.
func NewOpenAICompatible(id, baseURL, apiKey string, httpClient *http.Client) *OpenAICompatible {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAICompatible{id: id, client: openai.NewClientWithConfig(cfg)}
}

// ID returns the configured provider id.
func (p *OpenAICompatible) ID() string { return p.id }

// Attempt sends a single chat completion.
func (p *OpenAICompatible) Attempt(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", NewError(p.id, KindMalformedResponse, fmt.Errorf("no choices: %w", ErrEmptyResponse))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", NewError(p.id, KindMalformedResponse, ErrEmptyResponse)
	}
	return text, nil
}

// Health lists models, which every compatible endpoint serves cheaply.
func (p *OpenAICompatible) Health(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return p.classify(err)
	}
	return nil
}

func (p *OpenAICompatible) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(p.id, KindTimeout, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := kindForStatus(apiErr.HTTPStatusCode)
		if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
			kind = KindQuotaExceeded
		}
		return &Error{Provider: p.id, Kind: kind, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		kind := kindForStatus(reqErr.HTTPStatusCode)
		if reqErr.HTTPStatusCode >= 200 && reqErr.HTTPStatusCode < 300 {
			kind = KindMalformedResponse
		}
		return &Error{Provider: p.id, Kind: kind, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return NewError(p.id, KindMalformedResponse, err)
	}

	return NewError(p.id, KindTransportError, err)
}
