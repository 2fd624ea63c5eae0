package game

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/ai"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/character"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/config"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/models"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/narrative"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/prompts"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/savestore"
)

// CharacterLine is one in-character utterance produced during a turn.
type CharacterLine struct {
	Character string `json:"character"`
	Text      string `json:"text"`
}

// TurnResult is the outcome of applying one development.
type TurnResult struct {
	Development models.Development `json:"development"`
	Responses   []CharacterLine    `json:"responses"`
	AutosaveID  string             `json:"autosave_id,omitempty"`
}

// Session is the aggregate root of one running story. It owns the current
// situation, the character roster, the pending development menu and the
// playtime clock. Sessions are not safe for concurrent use; callers
// serialize turns.
type Session struct {
	situation string

	// Roster keyed by stable character id (config slug), decoupled from
	// the mutable display name.
	characters map[string]*character.Agent
	order      []string

	pending       *models.DevelopmentBatch
	lastResponses map[string]string
	choiceHistory []int
	turnCount     int

	playtimeStart time.Time
	now           func() time.Time

	engine  *narrative.Engine
	store   *savestore.Store
	gameCfg *config.GameConfig
	client  ai.Client
	prompts *prompts.Provider
	params  ai.GenerationParams
	logger  *zap.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithShuffle derives the character response order from the given source
// instead of the configured character_order list. Supplying a fixed seed
// makes turn outcomes reproducible.
func WithShuffle(src rand.Source) Option {
	return func(s *Session) {
		r := rand.New(src)
		r.Shuffle(len(s.order), func(i, j int) {
			s.order[i], s.order[j] = s.order[j], s.order[i]
		})
	}
}

// NewSession builds a session from the game config: the opening situation,
// one agent per roster entry and the configured response order.
func NewSession(gameCfg *config.GameConfig, client ai.Client, provider *prompts.Provider, params ai.GenerationParams, engine *narrative.Engine, store *savestore.Store, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		situation:     gameCfg.FormatInitialState(),
		characters:    make(map[string]*character.Agent, len(gameCfg.Characters)),
		lastResponses: map[string]string{},
		playtimeStart: time.Now(),
		now:           time.Now,
		engine:        engine,
		store:         store,
		gameCfg:       gameCfg,
		client:        client,
		prompts:       provider,
		params:        params,
		logger:        logger.Named("GameSession"),
	}

	for id, charCfg := range gameCfg.Characters {
		s.characters[id] = character.NewAgent(charCfg, client, provider, params, logger)
	}
	s.order = s.resolveOrder(gameCfg.Settings.CharacterOrder)

	for _, opt := range opts {
		opt(s)
	}
	s.playtimeStart = s.now()
	return s
}

// resolveOrder returns the character response order: the configured list
// filtered to known ids, then any remaining ids in sorted order.
func (s *Session) resolveOrder(configured []string) []string {
	seen := make(map[string]bool, len(s.characters))
	order := make([]string, 0, len(s.characters))
	for _, id := range configured {
		if _, ok := s.characters[id]; ok && !seen[id] {
			order = append(order, id)
			seen[id] = true
		}
	}
	rest := make([]string, 0, len(s.characters))
	for id := range s.characters {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// Situation returns the current scene description.
func (s *Session) Situation() string { return s.situation }

// CharacterNames returns the display names in response order.
func (s *Session) CharacterNames() []string {
	names := make([]string, 0, len(s.order))
	for _, id := range s.order {
		names = append(names, s.characters[id].Name())
	}
	return names
}

// Developments returns the pending development menu, generating it lazily
// when absent. Generation never fails; a degraded batch falls back to the
// configured default development.
func (s *Session) Developments(ctx context.Context) models.DevelopmentBatch {
	if s.pending != nil {
		return *s.pending
	}

	responses := s.lastResponses
	if len(responses) == 0 && s.gameCfg.InitialState.CharacterActions != "" {
		responses = map[string]string{"Narrator": s.gameCfg.InitialState.CharacterActions}
	}

	batch := s.engine.GenerateDevelopments(ctx, narrative.Context{
		CurrentState:       s.situation,
		CharacterResponses: responses,
		Theme:              s.gameCfg.Settings.DefaultTheme,
		ChoicesMade:        s.choiceHistory,
	})
	s.pending = &batch
	return batch
}

// Choose applies the pending development at index: the situation advances,
// the choice is recorded, and each character responds in order, seeing the
// previous response as input. A character generation failure propagates
// after the situation has advanced; dialogue has no fallback by design.
func (s *Session) Choose(ctx context.Context, index int) (*TurnResult, error) {
	if s.pending == nil || len(s.pending.Developments) == 0 {
		return nil, models.ErrNoPendingDevelopments
	}
	if index < 0 || index >= len(s.pending.Developments) {
		return nil, fmt.Errorf("%w: index=%d", models.ErrInvalidDevelopmentPick, index)
	}

	development := s.pending.Developments[index]
	s.pending = nil
	s.choiceHistory = append(s.choiceHistory, index)

	if development.NewSituation != "" {
		s.situation = development.NewSituation
	}
	s.engine.RecordDevelopment(development)

	return s.runTurn(ctx, development)
}

// ChooseCustom advances the story with player-supplied text instead of a
// generated development. The situation is kept; characters react to the
// player's text directly.
func (s *Session) ChooseCustom(ctx context.Context, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: custom development text is empty", models.ErrInvalidInput)
	}
	s.pending = nil

	development := models.Development{
		Description:     text,
		NewSituation:    s.situation,
		PossibleActions: []models.ActionImpact{},
		Tags:            []string{"custom"},
	}
	s.engine.RecordDevelopment(development)

	return s.runTurn(ctx, development)
}

func (s *Session) runTurn(ctx context.Context, development models.Development) (*TurnResult, error) {
	result := &TurnResult{Development: development}
	responses := make(map[string]string, len(s.order))

	input := development.Description
	for _, id := range s.order {
		agent := s.characters[id]
		response, err := agent.Respond(ctx, s.situation, input)
		if err != nil {
			return nil, fmt.Errorf("character '%s' failed to respond: %w", agent.Name(), err)
		}
		result.Responses = append(result.Responses, CharacterLine{Character: agent.Name(), Text: response})
		responses[agent.Name()] = response
		input = response
	}

	s.lastResponses = responses
	s.turnCount++

	if interval := s.gameCfg.Settings.AutosaveInterval; interval > 0 && s.turnCount%interval == 0 {
		autosaveID, err := s.store.Autosave(ctx, s.PrepareSaveData())
		if err != nil {
			// Autosave failure never fails the turn.
			s.logger.Warn("Autosave failed", zap.Error(err))
		} else {
			result.AutosaveID = autosaveID
			s.logger.Info("Autosave created", zap.String("saveID", autosaveID))
		}
	}

	return result, nil
}

// Playtime renders elapsed session time as HH:MM:00. Seconds are pinned to
// 00 on purpose; the display granularity is minutes.
func (s *Session) Playtime() string {
	delta := s.now().Sub(s.playtimeStart)
	hours := int(delta.Hours())
	minutes := int(delta.Minutes()) % 60
	return fmt.Sprintf("%02d:%02d:00", hours, minutes)
}

// PrepareSaveData assembles the snapshot handed to the save store. The
// wire shape keys character states by display name.
func (s *Session) PrepareSaveData() models.Snapshot {
	characterStates := make(map[string]models.CharacterState, len(s.characters))
	for _, agent := range s.characters {
		characterStates[agent.Name()] = models.CharacterState{
			Personality: agent.Personality(),
			Background:  agent.Background(),
			Memory:      agent.Memory(),
		}
	}

	var developments []models.Development
	if s.pending != nil {
		developments = s.pending.Developments
	}

	return models.Snapshot{
		StoryState: models.StoryState{
			CurrentScene: s.situation,
			Timestamp:    s.now(),
		},
		CharacterStates: characterStates,
		NarrativeState:  models.NarrativeState{Developments: developments},
	}
}

// LoadSaveData restores the session from a snapshot. Characters missing
// from the roster are reconstructed from saved state merged with config
// defaults (saved values win); memory is restored wholesale for every
// named character. Pending developments are restored when present.
func (s *Session) LoadSaveData(snapshot models.Snapshot) {
	if snapshot.StoryState.CurrentScene != "" {
		s.situation = snapshot.StoryState.CurrentScene
	}

	for name, state := range snapshot.CharacterStates {
		id, agent := s.findByName(name)
		if agent == nil {
			id = s.characterID(name)
			charCfg := s.gameCfg.Characters[id]
			if charCfg.Name == "" {
				charCfg.Name = name
			}
			if state.Personality != "" {
				charCfg.Personality = state.Personality
			}
			if state.Background != "" {
				charCfg.Background = state.Background
			}
			agent = character.NewAgent(charCfg, s.client, s.prompts, s.params, s.logger)
			s.characters[id] = agent
			s.order = append(s.order, id)
			s.logger.Info("Reconstructed character from save", zap.String("character", name))
		}
		agent.Restore(state.Memory)
	}

	if len(snapshot.NarrativeState.Developments) > 0 {
		s.pending = &models.DevelopmentBatch{Developments: snapshot.NarrativeState.Developments}
	}
}

// SaveGame writes a manual save and returns its id.
func (s *Session) SaveGame(ctx context.Context, metadata map[string]any) (string, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	if _, ok := metadata["type"]; !ok {
		metadata["type"] = models.SaveTypeManual
	}
	metadata["playtime"] = s.Playtime()
	return s.store.Save(ctx, s.PrepareSaveData(), "", metadata)
}

// LoadGame loads a save record and restores the session from it. When the
// record is absent the session state is left untouched and
// models.ErrSaveNotFound is returned.
func (s *Session) LoadGame(ctx context.Context, saveID string) error {
	record, err := s.store.Load(ctx, saveID)
	if err != nil {
		return err
	}
	s.LoadSaveData(models.Snapshot{
		StoryState:      record.StoryState,
		CharacterStates: record.CharacterStates,
		NarrativeState:  record.NarrativeState,
	})
	return nil
}

// QuickSave writes the session to the fixed quicksave slot.
func (s *Session) QuickSave(ctx context.Context, slot int) (string, error) {
	return s.store.QuickSave(ctx, s.PrepareSaveData(), slot)
}

// QuickLoad restores the session from the fixed quicksave slot.
func (s *Session) QuickLoad(ctx context.Context, slot int) error {
	record, err := s.store.QuickLoad(ctx, slot)
	if err != nil {
		return err
	}
	s.LoadSaveData(models.Snapshot{
		StoryState:      record.StoryState,
		CharacterStates: record.CharacterStates,
		NarrativeState:  record.NarrativeState,
	})
	return nil
}

// Autosave writes an autosave immediately, outside the interval policy.
func (s *Session) Autosave(ctx context.Context) (string, error) {
	return s.store.Autosave(ctx, s.PrepareSaveData())
}

// ListSaves enumerates available save records.
func (s *Session) ListSaves(ctx context.Context) (map[string]models.SaveSummary, error) {
	return s.store.List(ctx)
}

// DeleteSave removes a save record, reporting whether it existed.
func (s *Session) DeleteSave(ctx context.Context, saveID string) (bool, error) {
	return s.store.Delete(ctx, saveID)
}

func (s *Session) findByName(name string) (string, *character.Agent) {
	for id, agent := range s.characters {
		if agent.Name() == name {
			return id, agent
		}
	}
	return "", nil
}

// characterID resolves a display name to its config id, falling back to a
// slug of the name for characters absent from config.
func (s *Session) characterID(name string) string {
	for id, charCfg := range s.gameCfg.Characters {
		if charCfg.Name == name {
			return id
		}
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
