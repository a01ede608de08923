// Package llm provides a client for OpenAI-compatible chat-completion gateways.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"healthtrack-go/internal/config"

	"github.com/sashabaranov/go-openai"
)

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Role constants accepted by the gateway.
const (
	RoleSystem = openai.ChatMessageRoleSystem
	RoleUser   = openai.ChatMessageRoleUser
)

// Client defines the interface for an LLM client.
type Client interface {
	// Complete 发送一组消息并返回模型回复的原始文本。
	Complete(ctx context.Context, messages []Message) (string, error)
}

type openaiClient struct {
	cfg    config.LLMConfig
	client *openai.Client
}

// NewClient creates a chat-completion client from config.
// The API key is captured here; an empty key makes every call fail with ErrNoAPIKey.
func NewClient(cfg config.LLMConfig) Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &openaiClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

func (c *openaiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNoAPIKey
	}

	req := openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if c.cfg.Generation.Temperature != 0 {
		req.Temperature = float32(c.cfg.Generation.Temperature)
	}
	if c.cfg.Generation.MaxTokens != 0 {
		req.MaxTokens = c.cfg.Generation.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err, c.cfg.Model)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Type: ErrorTypeUpstream, Message: "empty response from gateway", Model: c.cfg.Model}
	}
	return resp.Choices[0].Message.Content, nil
}

// classify converts a go-openai error into *Error carrying the upstream HTTP status.
func classify(err error, model string) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return FromStatus(apiErr.HTTPStatusCode, apiErr.Message, err, model)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return FromStatus(reqErr.HTTPStatusCode, string(reqErr.Body), err, model)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Type: ErrorTypeTimeout, Message: "request timeout", Cause: err, Model: model}
	}
	return &Error{Type: ErrorTypeNetwork, Message: "gateway request failed", Cause: err, Model: model}
}
