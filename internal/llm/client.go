package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/errors"
)

// Client completes prompts against a language model. Complete returns
// free-form text; CompleteJSON constrains the model to a JSON object.
type Client interface {
	Complete(ctx context.Context, system, prompt string, history []Message) (string, error)
	CompleteJSON(ctx context.Context, system, prompt string) (string, error)
}

// NewClient builds a client for the configured provider
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		return NewOpenAIClient(cfg)
	case "gemini":
		return NewGeminiClient(cfg)
	default:
		return nil, errors.ConfigErrorf("unknown llm provider: %s", cfg.Provider)
	}
}

// OpenAIClient implements Client on the OpenAI chat completion API
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewOpenAIClient creates an OpenAI-backed client from configuration
func NewOpenAIClient(cfg config.LLMConfig) (*OpenAIClient, error) {
	if cfg.OpenAIKey == "" {
		return nil, errors.ConfigError("openai api key not configured")
	}

	model := cfg.OpenAIModel
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIClient{
		client:      openai.NewClient(cfg.OpenAIKey),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		limiter:     newLimiter(cfg.RequestsPerSec),
		logger:      slog.Default().With("component", "llm", "provider", "openai"),
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string, history []Message) (string, error) {
	return c.complete(ctx, system, prompt, history, false)
}

func (c *OpenAIClient) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	return c.complete(ctx, system, prompt, nil, true)
}

func (c *OpenAIClient) complete(ctx context.Context, system, prompt string, history []Message, jsonMode bool) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.LLMService(err, "rate limit wait interrupted")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.LLMService(err, fmt.Sprintf("chat completion failed (model %s)", c.model))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(errors.TypeLLMService, errors.SeverityMedium, "chat completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("completion received",
		"model", c.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return content, nil
}
