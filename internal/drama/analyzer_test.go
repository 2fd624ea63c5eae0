package drama_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/ai"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/drama"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/mocks"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/models"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/prompts"
)

func newTestAnalyzer(t *testing.T, client ai.Client) *drama.Analyzer {
	t.Helper()
	provider := prompts.NewProvider(nil, zap.NewNop())
	return drama.NewAnalyzer(client, provider, ai.GenerationParams{}, zap.NewNop())
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()
	responses := map[string]string{"Sarah": "Put the gun down.", "Marcus": "You first."}

	t.Run("parses a flat JSON reply", func(t *testing.T) {
		client := mocks.NewMockAIClient(t)
		client.On("GenerateText", mock.Anything, mock.Anything, "", mock.Anything).
			Return(`Here is the analysis:
{"conflicts":["standoff"],"emotions":{"Sarah":"steely","Marcus":"cornered"},"plot_opportunities":["someone blinks"],"themes":["trust"]}
Hope that helps.`, ai.UsageInfo{}, nil)

		analysis := newTestAnalyzer(t, client).Analyze(ctx, responses, "warehouse standoff")

		assert.Equal(t, []string{"standoff"}, analysis.Conflicts)
		assert.Equal(t, "cornered", analysis.Emotions["Marcus"])
		assert.Equal(t, []string{"someone blinks"}, analysis.PlotOpportunities)
		assert.Equal(t, []string{"trust"}, analysis.Themes)
	})

	t.Run("accepts the wrapped form", func(t *testing.T) {
		client := mocks.NewMockAIClient(t)
		client.On("GenerateText", mock.Anything, mock.Anything, "", mock.Anything).
			Return(`{"analysis":{"conflicts":["debt"],"emotions":{},"plot_opportunities":[],"themes":["greed"]}}`, ai.UsageInfo{}, nil)

		analysis := newTestAnalyzer(t, client).Analyze(ctx, responses, "state")

		assert.Equal(t, []string{"debt"}, analysis.Conflicts)
		assert.Equal(t, []string{"greed"}, analysis.Themes)
	})

	t.Run("falls back to neutral on generation error", func(t *testing.T) {
		client := mocks.NewMockAIClient(t)
		client.On("GenerateText", mock.Anything, mock.Anything, "", mock.Anything).
			Return("", ai.UsageInfo{}, errors.New("connection refused"))

		analysis := newTestAnalyzer(t, client).Analyze(ctx, responses, "state")

		assert.Equal(t, drama.NeutralAnalysis(), analysis)
	})

	t.Run("falls back to neutral when no JSON is found", func(t *testing.T) {
		client := mocks.NewMockAIClient(t)
		client.On("GenerateText", mock.Anything, mock.Anything, "", mock.Anything).
			Return("I cannot produce JSON today.", ai.UsageInfo{}, nil)

		analysis := newTestAnalyzer(t, client).Analyze(ctx, responses, "state")

		assert.Equal(t, drama.NeutralAnalysis(), analysis)
	})
}

func TestEnhance(t *testing.T) {
	ctx := context.Background()
	analysis := models.DramaticAnalysis{Conflicts: []string{"standoff"}}

	t.Run("returns the enhanced text", func(t *testing.T) {
		client := mocks.NewMockAIClient(t)
		client.On("GenerateText", mock.Anything, mock.Anything, "", mock.Anything).
			Return("  Put the gun down, she said, her hand steady despite everything.  ", ai.UsageInfo{}, nil)

		enhanced := newTestAnalyzer(t, client).Enhance(ctx, "Put the gun down.", "Sarah", analysis)

		assert.Equal(t, "Put the gun down, she said, her hand steady despite everything.", enhanced)
	})

	t.Run("keeps the original on error", func(t *testing.T) {
		client := mocks.NewMockAIClient(t)
		client.On("GenerateText", mock.Anything, mock.Anything, "", mock.Anything).
			Return("", ai.UsageInfo{}, ai.ErrAIGenerationFailed)

		enhanced := newTestAnalyzer(t, client).Enhance(ctx, "Put the gun down.", "Sarah", analysis)

		assert.Equal(t, "Put the gun down.", enhanced)
	})

	t.Run("keeps the original on empty reply", func(t *testing.T) {
		client := mocks.NewMockAIClient(t)
		client.On("GenerateText", mock.Anything, mock.Anything, "", mock.Anything).
			Return("   \n  ", ai.UsageInfo{}, nil)

		enhanced := newTestAnalyzer(t, client).Enhance(ctx, "Put the gun down.", "Sarah", analysis)

		assert.Equal(t, "Put the gun down.", enhanced)
	})
}
