package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/ai"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/drama"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/models"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/prompts"
)

// TagPlotTwist marks developments that carry a twist.
const TagPlotTwist = "plot_twist"

// historyWindow bounds how many recorded developments feed prompt context.
const historyWindow = 3

// Context carries the inputs of one generation turn.
type Context struct {
	CurrentState       string
	CharacterResponses map[string]string
	Theme              string
	// ChoicesMade is the player's recent choice-index history; when
	// present, the branching factor is updated from its last three entries.
	ChoicesMade []int
}

type historyEntry struct {
	Description string
	Choices     int
	Tags        []string
}

// Engine orchestrates story progression with branching narratives. It is
// not safe for concurrent use; callers serialize turns.
type Engine struct {
	client   ai.Client
	prompts  *prompts.Provider
	analyzer *drama.Analyzer
	params   ai.GenerationParams
	logger   *zap.Logger

	maxChoices int
	fallback   models.Development

	history         []historyEntry
	branchingFactor float64
}

// NewEngine creates an Engine with branching factor 1.0.
func NewEngine(client ai.Client, provider *prompts.Provider, analyzer *drama.Analyzer, params ai.GenerationParams, maxChoices int, fallback models.Development, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxChoices <= 0 {
		maxChoices = 3
	}
	return &Engine{
		client:          client,
		prompts:         provider,
		analyzer:        analyzer,
		params:          params,
		logger:          logger.Named("NarrativeEngine"),
		maxChoices:      maxChoices,
		fallback:        fallback,
		branchingFactor: 1.0,
	}
}

// BranchingFactor returns the current narrative divergence scalar.
func (e *Engine) BranchingFactor() float64 { return e.branchingFactor }

// GenerateDevelopments produces the turn's menu of candidate developments.
// The whole batch either succeeds or is replaced by the configured
// fallback development; this method never returns an error.
func (e *Engine) GenerateDevelopments(ctx context.Context, nc Context) models.DevelopmentBatch {
	analysis := e.analyzer.Analyze(ctx, nc.CharacterResponses, nc.CurrentState)
	analysisJSON, _ := json.Marshal(analysis)

	developments := make([]models.Development, 0, e.maxChoices)
	for i := 1; i <= e.maxChoices; i++ {
		prompt, err := e.prompts.Render(prompts.KeyDevelopment, map[string]string{
			"STORY_STATE":       nc.CurrentState,
			"CHARACTER_ACTIONS": formatCharacterActions(nc.CharacterResponses),
			"THEME":             nc.Theme,
			"NUMBER":            strconv.Itoa(i),
			"HISTORY":           e.formatHistory(),
			"ANALYSIS":          string(analysisJSON),
		})
		if err != nil {
			e.logger.Error("Development template unavailable, returning fallback batch", zap.Error(err))
			return e.fallbackBatch()
		}

		reply, _, err := e.client.GenerateText(ctx, prompt, "", e.params)
		if err != nil {
			// Partial results are discarded; the batch degrades as a whole.
			e.logger.Error("Development generation failed, returning fallback batch",
				zap.Int("sequence", i), zap.Error(err))
			return e.fallbackBatch()
		}

		developments = append(developments, e.parseDevelopment(ctx, reply, analysis))
	}

	if len(nc.ChoicesMade) > 0 {
		e.updateBranchingFactor(nc.ChoicesMade)
	}

	return models.DevelopmentBatch{Developments: developments}
}

// parseDevelopment turns one generation reply into a Development using the
// line-prefix grammar. Unrecognized lines are ignored; missing fields keep
// their defaults.
func (e *Engine) parseDevelopment(ctx context.Context, reply string, analysis models.DramaticAnalysis) models.Development {
	development := models.Development{
		Description:     "Default narrative progression",
		NewSituation:    "Continuing story",
		PossibleActions: []models.ActionImpact{},
		Tags:            []string{},
	}

	for _, line := range strings.Split(strings.TrimSpace(reply), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "DESCRIPTION:"):
			description := strings.TrimSpace(strings.TrimPrefix(line, "DESCRIPTION:"))
			development.Description = e.analyzer.Enhance(ctx, description, "Narrator", analysis)
		case strings.HasPrefix(line, "SITUATION:"):
			development.NewSituation = strings.TrimSpace(strings.TrimPrefix(line, "SITUATION:"))
		case strings.HasPrefix(line, "TWIST:"):
			development.Twist = strings.TrimSpace(strings.TrimPrefix(line, "TWIST:"))
			development.Tags = append(development.Tags, TagPlotTwist)
		case strings.HasPrefix(line, "ACTION"):
			if _, text, found := strings.Cut(line, ":"); found {
				development.PossibleActions = append(development.PossibleActions, models.ActionImpact{
					Text:   strings.TrimSpace(text),
					Impact: e.actionImpact(),
				})
			}
		}
	}

	return development
}

// actionImpact scales the reported impact by the branching factor at
// generation time, clamped to [0.2, 1.0].
func (e *Engine) actionImpact() float64 {
	impact := 0.2 + e.branchingFactor*0.3
	if impact > 1.0 {
		return 1.0
	}
	return impact
}

// updateBranchingFactor grows divergence with choice diversity: repeats of
// the same index push the multiplier toward 1.1, full diversity over the
// last three choices toward 1.3.
func (e *Engine) updateBranchingFactor(choices []int) {
	window := choices
	if len(window) > 3 {
		window = window[len(window)-3:]
	}
	unique := make(map[int]struct{}, len(window))
	for _, c := range window {
		unique[c] = struct{}{}
	}
	e.branchingFactor *= 1 + float64(len(unique))*0.1
	e.logger.Debug("Branching factor updated",
		zap.Int("uniqueChoices", len(unique)),
		zap.Float64("branchingFactor", e.branchingFactor))
}

// RecordDevelopment appends a condensed history entry used for future
// prompt context. Only the most recent entries are ever read back.
func (e *Engine) RecordDevelopment(d models.Development) {
	e.history = append(e.history, historyEntry{
		Description: d.Description,
		Choices:     len(d.PossibleActions),
		Tags:        d.Tags,
	})
}

func (e *Engine) formatHistory() string {
	start := 0
	if len(e.history) > historyWindow {
		start = len(e.history) - historyWindow
	}
	lines := make([]string, 0, historyWindow)
	for i, entry := range e.history[start:] {
		description := entry.Description
		// Truncate on a rune boundary so multi-byte text stays valid.
		if runes := []rune(description); len(runes) > 50 {
			description = string(runes[:50])
		}
		lines = append(lines, fmt.Sprintf("Chapter %d: %s...", start+i+1, description))
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) fallbackBatch() models.DevelopmentBatch {
	return models.DevelopmentBatch{Developments: []models.Development{e.fallback}}
}

func formatCharacterActions(responses map[string]string) string {
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
