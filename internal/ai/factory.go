package ai

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/config"
)

// NewClient builds the AI client selected by cfg.AIClientType.
// "openai" also covers LM Studio and other OpenAI-compatible servers;
// "ollama" uses the native Ollama API.
func NewClient(cfg *config.Config, logger *zap.Logger) (Client, error) {
	switch strings.ToLower(cfg.AIClientType) {
	case "openai", "lmstudio":
		logger.Info("Using AI client implementation: OpenAI-compatible")
		return newOpenAIClient(cfg, logger), nil
	case "ollama":
		logger.Info("Using AI client implementation: Ollama")
		return newOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI client type: '%s'", cfg.AIClientType)
	}
}

// Params converts the configured defaults into per-call parameters.
func Params(cfg *config.Config) GenerationParams {
	temperature := cfg.AITemperature
	topP := cfg.AITopP
	maxTokens := cfg.AIMaxTokens
	return GenerationParams{
		Temperature: &temperature,
		TopP:        &topP,
		MaxTokens:   &maxTokens,
	}
}
