// Package llm работает с OpenAI-совместимыми API chat completions (Groq, OpenAI).
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"homelab-agent/internal/service"

	openai "github.com/sashabaranov/go-openai"
)

const (
	GroqBaseURL        = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "llama-3.1-8b-instant"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultTimeout     = 30 * time.Second

	temperature = 0.1
	maxTokens   = 4096
)

// Config задает провайдеров. Пустой ключ отключает провайдера.
type Config struct {
	GroqAPIKey    string
	GroqModel     string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	Timeout       time.Duration
}

// Provider - один OpenAI-совместимый endpoint.
type Provider struct {
	Name   string
	Model  string
	client *openai.Client
}

// NewProvider создает провайдера. Пустой baseURL означает api.openai.com.
func NewProvider(name, apiKey, baseURL, model string, timeout time.Duration) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Provider{Name: name, Model: model, client: openai.NewClientWithConfig(cfg)}
}

func (p *Provider) chat(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.Model,
		Messages:    messages,
		Tools:       tools,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("%s: %w", p.Name, err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, fmt.Errorf("%s: empty choices", p.Name)
	}
	return resp.Choices[0].Message, nil
}

// Client перебирает провайдеров по порядку до первого успешного ответа.
// Client без провайдеров всегда возвращает service.ErrModelUnavailable.
type Client struct {
	providers []*Provider
	logger    *slog.Logger
}

var _ service.ModelClient = (*Client)(nil)

// New собирает цепочку Groq -> OpenAI из настроенных ключей.
func New(cfg Config, logger *slog.Logger) *Client {
	var providers []*Provider
	if cfg.GroqAPIKey != "" {
		model := cfg.GroqModel
		if model == "" {
			model = DefaultGroqModel
		}
		providers = append(providers, NewProvider("groq", cfg.GroqAPIKey, GroqBaseURL, model, cfg.Timeout))
	}
	if cfg.OpenAIAPIKey != "" {
		model := cfg.OpenAIModel
		if model == "" {
			model = DefaultOpenAIModel
		}
		providers = append(providers, NewProvider("openai", cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, model, cfg.Timeout))
	}
	return NewWithProviders(logger, providers...)
}

func NewWithProviders(logger *slog.Logger, providers ...*Provider) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{providers: providers, logger: logger}
}

// Available сообщает, настроен ли хотя бы один провайдер.
func (c *Client) Available() bool {
	return len(c.providers) > 0
}

// Complete отправляет один пользовательский запрос.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.chat(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}, nil)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (c *Client) chat(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	if len(c.providers) == 0 {
		return openai.ChatCompletionMessage{}, service.ErrModelUnavailable
	}
	var errs []error
	for _, p := range c.providers {
		msg, err := p.chat(ctx, messages, tools)
		if err == nil {
			return msg, nil
		}
		c.logger.Warn("llm provider failed", "provider", p.Name, "error", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return openai.ChatCompletionMessage{}, errors.Join(errs...)
}
