package ai

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/models"
)

// GenerationParams carries per-call sampling parameters. Pointers
// distinguish "not set" from zero values.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// UsageInfo holds token accounting for one generation call.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client is the boundary to the text-generation service. Implementations
// wrap models.ErrAIGenerationFailed so callers can match with errors.Is.
type Client interface {
	// GenerateText produces a completion for the given system prompt and
	// user input. The call is synchronous and blocking.
	GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error)
}

// AvailabilityChecker is implemented by clients that can probe whether
// the configured model is reachable before the game starts.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context) bool
}

// ErrAIGenerationFailed re-exported for call sites that only import ai.
var ErrAIGenerationFailed = models.ErrAIGenerationFailed

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_game_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_game_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_game_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_game_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model"},
	)
)

func observeSuccess(model string, durationSeconds float64, usage UsageInfo) {
	aiRequestsTotal.With(prometheus.Labels{"model": model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": model}).Observe(durationSeconds)
	if usage.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": model}).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": model}).Observe(float64(usage.CompletionTokens))
	}
}

func observeError(model, status string) {
	aiRequestsTotal.With(prometheus.Labels{"model": model, "status": status}).Inc()
}

// float32Val converts an optional float64 into the float32 the OpenAI API
// expects, falling back to the API default of 1.0.
func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 1.0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
