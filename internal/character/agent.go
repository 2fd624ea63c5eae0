package character

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/ai"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/config"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/models"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/prompts"
)

// Agent is the per-character conversational unit. Traits are immutable
// after construction; memory accumulates (input, output) exchanges in
// order during play and is replaced wholesale on load.
type Agent struct {
	name        string
	personality string
	background  string
	conflict    string
	motivation  string
	secret      string

	// threadID keys any external stateful conversation context. It is
	// stable for the agent's lifetime and carries no other meaning.
	threadID uuid.UUID

	memory  []models.Exchange
	client  ai.Client
	prompts *prompts.Provider
	params  ai.GenerationParams
	logger  *zap.Logger
}

// NewAgent constructs an Agent from a roster entry.
func NewAgent(cfg config.CharacterConfig, client ai.Client, provider *prompts.Provider, params ai.GenerationParams, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		name:        cfg.Name,
		personality: cfg.Personality,
		background:  cfg.Background,
		conflict:    cfg.Conflict,
		motivation:  cfg.Motivation,
		secret:      cfg.Secret,
		threadID:    uuid.New(),
		client:      client,
		prompts:     provider,
		params:      params,
		logger:      logger.Named("Character").With(zap.String("character", cfg.Name)),
	}
}

// Name returns the character's display name.
func (a *Agent) Name() string { return a.name }

// Personality returns the personality trait.
func (a *Agent) Personality() string { return a.personality }

// Background returns the background trait.
func (a *Agent) Background() string { return a.background }

// ThreadID returns the stable conversation thread identifier.
func (a *Agent) ThreadID() uuid.UUID { return a.threadID }

// characterInfo renders the deterministic trait block. Absent traits
// render as empty values, the lines are never omitted.
func (a *Agent) characterInfo() string {
	return strings.Join([]string{
		fmt.Sprintf("Name: %s", a.name),
		fmt.Sprintf("Personality: %s", a.personality),
		fmt.Sprintf("Background: %s", a.background),
		fmt.Sprintf("Internal Conflict: %s", a.conflict),
		fmt.Sprintf("Primary Motivation: %s", a.motivation),
		fmt.Sprintf("Hidden Secret: %s", a.secret),
	}, "\n")
}

// Respond generates an in-character reply to inputText within the given
// situation and appends the exchange to memory. Generation failures
// propagate to the caller unmodified; fallback policy for dialogue lives
// with the caller, not here.
func (a *Agent) Respond(ctx context.Context, situation string, inputText string) (string, error) {
	prompt, err := a.prompts.Render(prompts.KeyCharacterResponse, map[string]string{
		"CHARACTER_INFO": a.characterInfo(),
		"SITUATION":      situation,
		"INPUT":          inputText,
	})
	if err != nil {
		return "", err
	}

	response, _, err := a.client.GenerateText(ctx, prompt, "", a.params)
	if err != nil {
		a.logger.Error("Character response generation failed", zap.Error(err))
		return "", err
	}

	response = strings.TrimSpace(response)
	a.memory = append(a.memory, models.Exchange{Input: inputText, Output: response})
	a.logger.Debug("Character responded", zap.Int("memoryLen", len(a.memory)))
	return response, nil
}

// Memory returns a copy of the accumulated exchanges.
func (a *Agent) Memory() []models.Exchange {
	out := make([]models.Exchange, len(a.memory))
	copy(out, a.memory)
	return out
}

// Restore replaces the agent's memory wholesale. Used only during load;
// it never merges with existing exchanges.
func (a *Agent) Restore(exchanges []models.Exchange) {
	a.memory = make([]models.Exchange, len(exchanges))
	copy(a.memory, exchanges)
	a.logger.Debug("Character memory restored", zap.Int("exchanges", len(exchanges)))
}
