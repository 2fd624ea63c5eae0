package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/config"
)

// ollamaClient implements Client using the native Ollama API.
type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOllamaClient(cfg *config.Config, logger *zap.Logger) (Client, error) {
	httpClient := &http.Client{Timeout: cfg.AITimeout}

	// api.NewClient wants the base URL without a /v1 suffix.
	ollamaBaseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
	ollamaBaseURL = strings.TrimSuffix(ollamaBaseURL, "/")

	parsedURL, err := url.Parse(ollamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Ollama base URL '%s': %w", ollamaBaseURL, err)
	}

	client := api.NewClient(parsedURL, httpClient)
	logger.Info("Ollama client created",
		zap.String("baseURL", ollamaBaseURL),
		zap.String("model", cfg.AIModel),
		zap.Duration("timeout", cfg.AITimeout))

	return &ollamaClient{
		client:  client,
		model:   cfg.AIModel,
		timeout: cfg.AITimeout,
		logger:  logger.Named("OllamaClient"),
	}, nil
}

// GenerateText sends a non-streaming chat request to Ollama.
func (c *ollamaClient) GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}

	if strings.TrimSpace(systemPrompt) == "" {
		observeError(c.model, "error")
		return "", usageInfo, fmt.Errorf("%w: system prompt is empty", ErrAIGenerationFailed)
	}

	messages := []api.Message{
		{Role: "system", Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": float32Val(params.Temperature),
			"top_p":       float32Val(params.TopP),
			"num_predict": intVal(params.MaxTokens),
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	c.logger.Debug("Sending request to Ollama",
		zap.String("model", c.model),
		zap.Int("systemPromptBytes", len(systemPrompt)),
		zap.Int("userInputBytes", len(userInput)))

	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})

	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Ollama API request failed", zap.Duration("duration", duration), zap.Error(err))
		observeError(c.model, "error")
		return "", usageInfo, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}

	if resp.Message.Content == "" {
		c.logger.Error("Ollama API returned an empty response", zap.Duration("duration", duration))
		observeError(c.model, "error")
		return "", usageInfo, fmt.Errorf("%w: empty response received", ErrAIGenerationFailed)
	}

	generatedText := resp.Message.Content
	usageInfo.PromptTokens = resp.PromptEvalCount
	usageInfo.CompletionTokens = resp.EvalCount
	usageInfo.TotalTokens = resp.PromptEvalCount + resp.EvalCount

	observeSuccess(c.model, duration.Seconds(), usageInfo)
	c.logger.Debug("Ollama API response received",
		zap.Duration("duration", duration),
		zap.Int("responseChars", len(generatedText)),
		zap.Int("totalTokens", usageInfo.TotalTokens))

	return generatedText, usageInfo, nil
}

// CheckAvailability reports whether the configured model is present on the
// Ollama instance. Used at startup before a provider is selected.
func (c *ollamaClient) CheckAvailability(ctx context.Context) bool {
	requestCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.client.List(requestCtx)
	if err != nil {
		c.logger.Warn("Ollama availability check failed", zap.Error(err))
		return false
	}
	for _, m := range resp.Models {
		if strings.Contains(m.Name, c.model) {
			return true
		}
	}
	c.logger.Warn("Configured model not found on Ollama instance", zap.String("model", c.model))
	return false
}
