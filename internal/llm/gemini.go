package llm

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/errors"
)

// GeminiClient implements Client on Google's Generative AI SDK
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewGeminiClient creates a Gemini-backed client from configuration
func NewGeminiClient(cfg config.LLMConfig) (*GeminiClient, error) {
	if cfg.GeminiKey == "" {
		return nil, errors.ConfigError("gemini api key not configured")
	}

	model := cfg.GeminiModel
	if model == "" {
		model = "gemini-2.0-flash"
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.GeminiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, errors.LLMService(err, "failed to create gemini client")
	}

	logger := slog.Default().With("component", "llm", "provider", "gemini", "model", model)
	logger.Info("gemini client initialized")

	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		limiter:     newLimiter(cfg.RequestsPerSec),
		logger:      logger,
	}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, system, prompt string, history []Message) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.LLMService(err, "rate limit wait interrupted")
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: systemContent(system),
		Temperature:       ptrFloat32(c.temperature),
	}

	contents := historyContents(history)
	contents = append(contents, genai.Text(prompt)...)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genConfig)
	if err != nil {
		return "", errors.LLMService(err, fmt.Sprintf("gemini completion failed (model %s)", c.model))
	}

	return extractText(resp)
}

func (c *GeminiClient) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.LLMService(err, "rate limit wait interrupted")
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: systemContent(system),
		Temperature:       ptrFloat32(c.temperature),
		ResponseMIMEType:  "application/json",
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genConfig)
	if err != nil {
		return "", errors.LLMService(err, fmt.Sprintf("gemini json completion failed (model %s)", c.model))
	}

	return extractText(resp)
}

func systemContent(system string) *genai.Content {
	if system == "" {
		return nil
	}
	return genai.Text(system)[0]
}

func historyContents(history []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}
	return contents
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", errors.New(errors.TypeLLMService, errors.SeverityMedium, "gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New(errors.TypeLLMService, errors.SeverityMedium, "gemini returned no content parts")
	}

	var text string
	for _, part := range candidate.Content.Parts {
		text += part.Text
	}
	return text, nil
}

func ptrFloat32(v float32) *float32 {
	return &v
}
