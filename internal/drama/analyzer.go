package drama

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/ai"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/models"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/prompts"
)

// NeutralAnalysis is the fixed fallback returned when analysis generation
// or parsing fails.
func NeutralAnalysis() models.DramaticAnalysis {
	return models.DramaticAnalysis{
		Conflicts:         []string{"Unresolved tension"},
		Emotions:          map[string]string{"default": "uncertain"},
		PlotOpportunities: []string{"Continue current arc"},
		Themes:            []string{"Mystery"},
	}
}

// Analyzer derives dramatic structure from character utterances and can
// rewrite a single utterance to amplify its dramatic tone. Both operations
// are total: they degrade to safe values instead of returning errors.
type Analyzer struct {
	client  ai.Client
	prompts *prompts.Provider
	params  ai.GenerationParams
	logger  *zap.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(client ai.Client, provider *prompts.Provider, params ai.GenerationParams, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		client:  client,
		prompts: provider,
		params:  params,
		logger:  logger.Named("DramaAnalyzer"),
	}
}

// Analyze summarizes the conflicts, emotions, plot opportunities and
// themes of a batch of character responses. It never fails: any call or
// parse error yields the neutral fallback.
func (a *Analyzer) Analyze(ctx context.Context, responses map[string]string, currentState string) models.DramaticAnalysis {
	prompt, err := a.prompts.Render(prompts.KeyDramaAnalysis, map[string]string{
		"RESPONSES":     formatResponses(responses),
		"CURRENT_STATE": currentState,
	})
	if err != nil {
		a.logger.Warn("Analysis template unavailable, using neutral analysis", zap.Error(err))
		return NeutralAnalysis()
	}

	reply, _, err := a.client.GenerateText(ctx, prompt, "", a.params)
	if err != nil {
		a.logger.Warn("Dramatic analysis generation failed, using neutral analysis", zap.Error(err))
		return NeutralAnalysis()
	}

	analysis, err := parseAnalysis(reply)
	if err != nil {
		a.logger.Warn("Failed to parse dramatic analysis, using neutral analysis", zap.Error(err))
		return NeutralAnalysis()
	}
	return analysis
}

// Enhance rewrites one utterance to foreground emotional subtext, hidden
// motive hints, gesture and tension. On any error the original response is
// returned unchanged; the utterance is never dropped.
func (a *Analyzer) Enhance(ctx context.Context, response string, character string, analysis models.DramaticAnalysis) string {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return response
	}

	prompt, err := a.prompts.Render(prompts.KeyDramaEnhancement, map[string]string{
		"RESPONSE":  response,
		"CHARACTER": character,
		"ANALYSIS":  string(analysisJSON),
	})
	if err != nil {
		a.logger.Warn("Enhancement template unavailable, keeping original response", zap.Error(err))
		return response
	}

	enhanced, _, err := a.client.GenerateText(ctx, prompt, "", a.params)
	if err != nil {
		a.logger.Warn("Response enhancement failed, keeping original response", zap.Error(err))
		return response
	}

	enhanced = strings.TrimSpace(enhanced)
	if enhanced == "" {
		return response
	}
	return enhanced
}

// formatResponses renders the response map as "Name: text" lines in a
// stable character order.
func formatResponses(responses map[string]string) string {
	names := make([]string, 0, len(responses))
	for name := range responses {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %s", name, responses[name]))
	}
	return strings.Join(lines, "\n")
}

// parseAnalysis extracts the first JSON object from the reply and decodes
// it. Both the flat form and the {"analysis": {...}} wrapper the models
// sometimes produce are accepted.
func parseAnalysis(reply string) (models.DramaticAnalysis, error) {
	raw, err := extractJSONObject(reply)
	if err != nil {
		return models.DramaticAnalysis{}, err
	}

	var wrapped struct {
		Analysis *models.DramaticAnalysis `json:"analysis"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Analysis != nil {
		return *wrapped.Analysis, nil
	}

	var analysis models.DramaticAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return models.DramaticAnalysis{}, fmt.Errorf("failed to parse dramatic analysis: %w", err)
	}
	return analysis, nil
}

// extractJSONObject returns the outermost {...} span of the text.
func extractJSONObject(text string) (json.RawMessage, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object found in reply")
	}
	return json.RawMessage(text[start : end+1]), nil
}
