package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/config"
)

// openAIClient implements Client using go-openai. It also serves any
// OpenAI-compatible endpoint (LM Studio, vLLM) via AI_BASE_URL.
type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func newOpenAIClient(cfg *config.Config, logger *zap.Logger) Client {
	openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
	if cfg.AIBaseURL != "" {
		openaiConfig.BaseURL = cfg.AIBaseURL
	}
	openaiConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}
	client := openaigo.NewClientWithConfig(openaiConfig)
	logger.Info("OpenAI client created",
		zap.String("baseURL", openaiConfig.BaseURL),
		zap.String("model", cfg.AIModel),
		zap.Duration("timeout", cfg.AITimeout))
	return &openAIClient{
		client: client,
		model:  cfg.AIModel,
		logger: logger.Named("OpenAIClient"),
	}
}

// GenerateText sends a chat completion request and returns the reply text.
func (c *openAIClient) GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}

	if strings.TrimSpace(systemPrompt) == "" {
		observeError(c.model, "error")
		return "", usageInfo, fmt.Errorf("%w: system prompt is empty", ErrAIGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{
			Role:    openaigo.ChatMessageRoleSystem,
			Content: systemPrompt,
		},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: userInput,
		})
	}

	startTime := time.Now()
	c.logger.Debug("Sending request to AI API",
		zap.String("model", c.model),
		zap.Int("systemPromptBytes", len(systemPrompt)),
		zap.Int("userInputBytes", len(userInput)))

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openaigo.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: float32Val(params.Temperature),
			MaxTokens:   intVal(params.MaxTokens),
			TopP:        float32Val(params.TopP),
		},
	)

	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("AI API request failed", zap.Duration("duration", duration), zap.Error(err))
		observeError(c.model, "error")
		return "", usageInfo, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.logger.Error("AI API returned an empty response", zap.Duration("duration", duration))
		observeError(c.model, "error_empty_response")
		return "", usageInfo, fmt.Errorf("%w: empty response received", ErrAIGenerationFailed)
	}

	generatedText := resp.Choices[0].Message.Content

	if resp.Usage.TotalTokens > 0 {
		usageInfo.PromptTokens = resp.Usage.PromptTokens
		usageInfo.CompletionTokens = resp.Usage.CompletionTokens
		usageInfo.TotalTokens = resp.Usage.TotalTokens
	} else {
		// Some OpenAI-compatible servers omit usage; estimate with tiktoken.
		usageInfo = estimateUsage(c.model, systemPrompt+userInput, generatedText)
	}

	observeSuccess(c.model, duration.Seconds(), usageInfo)
	c.logger.Debug("AI API response received",
		zap.Duration("duration", duration),
		zap.Int("responseChars", len(generatedText)),
		zap.Int("totalTokens", usageInfo.TotalTokens))

	return generatedText, usageInfo, nil
}

// estimateUsage approximates token counts when the API reports none.
func estimateUsage(model, prompt, completion string) UsageInfo {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Unknown model name for tiktoken, fall back to a generic encoding.
		tke, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return UsageInfo{}
		}
	}
	promptTokens := len(tke.Encode(prompt, nil, nil))
	completionTokens := len(tke.Encode(completion, nil, nil))
	return UsageInfo{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}
