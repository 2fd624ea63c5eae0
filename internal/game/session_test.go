package game_test

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/ai"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/config"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/drama"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/game"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/mocks"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/models"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/narrative"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/prompts"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/savestore"
)

func newGameConfig() *config.GameConfig {
	return &config.GameConfig{
		Characters: map[string]config.CharacterConfig{
			"detective": {
				Name:        "Sarah Chen",
				Personality: "Analytical",
				Background:  "Veteran detective",
			},
			"informant": {
				Name:        "Marcus Webb",
				Personality: "Evasive",
				Background:  "Former con artist",
			},
		},
		Settings: config.GameSettings{
			MaxChoices:       1,
			DefaultTheme:     "mystery",
			AutosaveInterval: 0,
			CharacterOrder:   []string{"detective", "informant"},
		},
		Fallback: config.FallbackDevelopment{
			Description:  "The story continues.",
			NewSituation: "Nothing changes.",
		},
		InitialState: config.InitialState{
			Location:         "Warehouse",
			Time:             "Midnight",
			Situation:        "An urgent meeting",
			CharacterActions: "Sarah checks her recorder",
		},
	}
}

// fixture wires a session over a mock AI client and a file-backed store.
type fixture struct {
	client  *mocks.MockAIClient
	session *game.Session
	store   *savestore.Store
	gameCfg *config.GameConfig
}

func newFixture(t *testing.T, opts ...game.Option) *fixture {
	t.Helper()
	client := mocks.NewMockAIClient(t)
	gameCfg := newGameConfig()
	provider := prompts.NewProvider(nil, zap.NewNop())
	analyzer := drama.NewAnalyzer(client, provider, ai.GenerationParams{}, zap.NewNop())
	engine := narrative.NewEngine(client, provider, analyzer, ai.GenerationParams{},
		gameCfg.Settings.MaxChoices, gameCfg.Fallback.Development(), zap.NewNop())

	backend, err := savestore.NewFileBackend(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	store := savestore.New(backend)

	session := game.NewSession(gameCfg, client, provider, ai.GenerationParams{}, engine, store, zap.NewNop(), opts...)
	return &fixture{client: client, session: session, store: store, gameCfg: gameCfg}
}

func promptContains(substr string) func(string) bool {
	return func(p string) bool { return strings.Contains(p, substr) }
}

// stubGeneration makes every narrative and drama call succeed with fixed
// replies.
func (f *fixture) stubGeneration() {
	f.client.On("GenerateText", mock.Anything, mock.MatchedBy(promptContains("Analyze character responses")), "", mock.Anything).
		Return("{}", ai.UsageInfo{}, nil)
	f.client.On("GenerateText", mock.Anything, mock.MatchedBy(promptContains("Generate story development")), "", mock.Anything).
		Return("SITUATION: The lights go out", ai.UsageInfo{}, nil)
}

// stubCharacters gives each character a recognizable reply.
func (f *fixture) stubCharacters() {
	f.client.On("GenerateText", mock.Anything, mock.MatchedBy(promptContains("Name: Sarah Chen")), "", mock.Anything).
		Return("Stay close to me.", ai.UsageInfo{}, nil)
	f.client.On("GenerateText", mock.Anything, mock.MatchedBy(promptContains("Name: Marcus Webb")), "", mock.Anything).
		Return("I know another way out.", ai.UsageInfo{}, nil)
}

func TestNewSession(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "Location: Warehouse\nTime: Midnight\nCurrent situation: An urgent meeting", f.session.Situation())
	assert.Equal(t, []string{"Sarah Chen", "Marcus Webb"}, f.session.CharacterNames())
}

func TestResolveOrder(t *testing.T) {
	t.Run("unlisted characters follow in sorted order", func(t *testing.T) {
		client := mocks.NewMockAIClient(t)
		gameCfg := newGameConfig()
		gameCfg.Characters["witness"] = config.CharacterConfig{Name: "Ada Quinn"}
		gameCfg.Characters["bartender"] = config.CharacterConfig{Name: "Lou Pratt"}
		gameCfg.Settings.CharacterOrder = []string{"informant", "ghost"}

		provider := prompts.NewProvider(nil, zap.NewNop())
		analyzer := drama.NewAnalyzer(client, provider, ai.GenerationParams{}, zap.NewNop())
		engine := narrative.NewEngine(client, provider, analyzer, ai.GenerationParams{}, 1, gameCfg.Fallback.Development(), zap.NewNop())
		backend, err := savestore.NewFileBackend(t.TempDir(), zap.NewNop())
		require.NoError(t, err)

		session := game.NewSession(gameCfg, client, provider, ai.GenerationParams{}, engine, savestore.New(backend), zap.NewNop())

		// Configured ids first (unknown "ghost" dropped), the rest sorted by id.
		assert.Equal(t, []string{"Marcus Webb", "Lou Pratt", "Sarah Chen", "Ada Quinn"}, session.CharacterNames())
	})
}

func TestWithShuffle(t *testing.T) {
	// A seeded shuffle makes the response order reproducible.
	first := newFixture(t, game.WithShuffle(rand.NewSource(42)))
	second := newFixture(t, game.WithShuffle(rand.NewSource(42)))
	assert.Equal(t, first.session.CharacterNames(), second.session.CharacterNames())
	assert.ElementsMatch(t, []string{"Sarah Chen", "Marcus Webb"}, first.session.CharacterNames())
}

func TestDevelopments(t *testing.T) {
	ctx := context.Background()

	t.Run("generates lazily and caches", func(t *testing.T) {
		f := newFixture(t)
		f.stubGeneration()

		first := f.session.Developments(ctx)
		require.Len(t, first.Developments, 1)
		second := f.session.Developments(ctx)
		assert.Equal(t, first, second)

		// One analysis call and one development call, despite two reads.
		f.client.AssertNumberOfCalls(t, "GenerateText", 2)
	})
}

func TestChoose(t *testing.T) {
	ctx := context.Background()

	t.Run("advances the situation and runs the character chain", func(t *testing.T) {
		f := newFixture(t)
		f.stubGeneration()

		// The chain is sequential: Sarah reacts to the development text,
		// Marcus reacts to Sarah's line.
		f.client.On("GenerateText", mock.Anything, mock.MatchedBy(func(p string) bool {
			return strings.Contains(p, "Name: Sarah Chen") &&
				strings.Contains(p, "Input: Default narrative progression")
		}), "", mock.Anything).Return("Stay close to me.", ai.UsageInfo{}, nil)
		f.client.On("GenerateText", mock.Anything, mock.MatchedBy(func(p string) bool {
			return strings.Contains(p, "Name: Marcus Webb") &&
				strings.Contains(p, "Input: Stay close to me.")
		}), "", mock.Anything).Return("I know another way out.", ai.UsageInfo{}, nil)

		f.session.Developments(ctx)
		result, err := f.session.Choose(ctx, 0)

		require.NoError(t, err)
		assert.Equal(t, "The lights go out", f.session.Situation())
		require.Len(t, result.Responses, 2)
		assert.Equal(t, game.CharacterLine{Character: "Sarah Chen", Text: "Stay close to me."}, result.Responses[0])
		assert.Equal(t, game.CharacterLine{Character: "Marcus Webb", Text: "I know another way out."}, result.Responses[1])
		assert.Empty(t, result.AutosaveID)
		f.client.AssertExpectations(t)
	})

	t.Run("rejects a choice with no pending developments", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.session.Choose(ctx, 0)
		assert.ErrorIs(t, err, models.ErrNoPendingDevelopments)
	})

	t.Run("rejects an out-of-range index", func(t *testing.T) {
		f := newFixture(t)
		f.stubGeneration()
		f.session.Developments(ctx)

		_, err := f.session.Choose(ctx, 5)
		assert.ErrorIs(t, err, models.ErrInvalidDevelopmentPick)
		_, err = f.session.Choose(ctx, -1)
		assert.ErrorIs(t, err, models.ErrInvalidDevelopmentPick)
	})

	t.Run("propagates character failures after the situation advanced", func(t *testing.T) {
		f := newFixture(t)
		f.stubGeneration()
		f.client.On("GenerateText", mock.Anything, mock.MatchedBy(promptContains("Name: Sarah Chen")), "", mock.Anything).
			Return("", ai.UsageInfo{}, ai.ErrAIGenerationFailed)

		f.session.Developments(ctx)
		_, err := f.session.Choose(ctx, 0)

		require.ErrorIs(t, err, ai.ErrAIGenerationFailed)
		assert.Contains(t, err.Error(), "Sarah Chen")
		assert.Equal(t, "The lights go out", f.session.Situation())
	})
}

func TestChooseCustom(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps the situation and tags the development", func(t *testing.T) {
		f := newFixture(t)
		f.stubCharacters()

		before := f.session.Situation()
		result, err := f.session.ChooseCustom(ctx, "I flip the table and run")

		require.NoError(t, err)
		assert.Equal(t, before, f.session.Situation())
		assert.Equal(t, "I flip the table and run", result.Development.Description)
		assert.Contains(t, result.Development.Tags, "custom")
		require.Len(t, result.Responses, 2)
	})

	t.Run("rejects empty text", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.session.ChooseCustom(ctx, "   ")
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})
}

func TestAutosaveInterval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gameCfg.Settings.AutosaveInterval = 2
	f.stubCharacters()

	first, err := f.session.ChooseCustom(ctx, "turn one")
	require.NoError(t, err)
	assert.Empty(t, first.AutosaveID)

	second, err := f.session.ChooseCustom(ctx, "turn two")
	require.NoError(t, err)
	require.NotEmpty(t, second.AutosaveID)
	assert.True(t, strings.HasPrefix(second.AutosaveID, "autosave_"))

	_, err = f.store.Load(ctx, second.AutosaveID)
	assert.NoError(t, err)
}

func TestPlaytime(t *testing.T) {
	current := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, game.WithClock(func() time.Time { return current }))

	assert.Equal(t, "00:00:00", f.session.Playtime())

	current = current.Add(65*time.Minute + 42*time.Second)
	// Seconds are pinned to 00, the display granularity is minutes.
	assert.Equal(t, "01:05:00", f.session.Playtime())
}

func TestSaveAndLoadGame(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips situation and memory", func(t *testing.T) {
		f := newFixture(t)
		f.stubCharacters()

		_, err := f.session.ChooseCustom(ctx, "something dramatic")
		require.NoError(t, err)

		saveID, err := f.session.SaveGame(ctx, map[string]any{"note": "before the reveal"})
		require.NoError(t, err)

		record, err := f.store.Load(ctx, saveID)
		require.NoError(t, err)
		assert.Equal(t, models.SaveTypeManual, record.Metadata["type"])
		assert.Equal(t, "before the reveal", record.Metadata["note"])
		assert.NotEmpty(t, record.Metadata["playtime"])

		// The turn left both roster characters with one exchange each.
		require.NotEmpty(t, record.CharacterStates["Sarah Chen"].Memory)
		require.NotEmpty(t, record.CharacterStates["Marcus Webb"].Memory)

		// A fresh session restores the saved state.
		restored := newFixture(t)
		restored.session.LoadSaveData(models.Snapshot{
			StoryState:      record.StoryState,
			CharacterStates: record.CharacterStates,
			NarrativeState:  record.NarrativeState,
		})

		assert.Equal(t, f.session.Situation(), restored.session.Situation())

		// Every existing character's memory comes back exactly.
		restoredStates := restored.session.PrepareSaveData().CharacterStates
		for name, state := range record.CharacterStates {
			assert.Equal(t, state.Memory, restoredStates[name].Memory, "memory for %s", name)
		}
	})

	t.Run("load failure leaves the session untouched", func(t *testing.T) {
		f := newFixture(t)
		before := f.session.Situation()

		err := f.session.LoadGame(ctx, "no_such_save")

		assert.ErrorIs(t, err, models.ErrSaveNotFound)
		assert.Equal(t, before, f.session.Situation())
	})

	t.Run("reconstructs characters missing from the roster", func(t *testing.T) {
		f := newFixture(t)

		f.session.LoadSaveData(models.Snapshot{
			StoryState: models.StoryState{CurrentScene: "a rooftop chase"},
			CharacterStates: map[string]models.CharacterState{
				"Nadia Volkov": {
					Personality: "Ruthless",
					Background:  "Contract fixer",
					Memory:      []models.Exchange{{Input: "who hired you", Output: "you did"}},
				},
			},
		})

		assert.Equal(t, "a rooftop chase", f.session.Situation())
		assert.Contains(t, f.session.CharacterNames(), "Nadia Volkov")
	})

	t.Run("restores pending developments", func(t *testing.T) {
		f := newFixture(t)
		pending := []models.Development{{Description: "saved branch", NewSituation: "after the branch"}}

		f.session.LoadSaveData(models.Snapshot{
			NarrativeState: models.NarrativeState{Developments: pending},
		})

		batch := f.session.Developments(ctx)
		assert.Equal(t, pending, batch.Developments)
		// No generation happened, the saved menu was used directly.
		f.client.AssertNumberOfCalls(t, "GenerateText", 0)
	})
}

func TestQuickSaveQuickLoad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stubCharacters()

	_, err := f.session.ChooseCustom(ctx, "mark this moment")
	require.NoError(t, err)

	saveID, err := f.session.QuickSave(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "quicksave_0", saveID)

	require.NoError(t, f.session.QuickLoad(ctx, 0))

	err = f.session.QuickLoad(ctx, 7)
	assert.ErrorIs(t, err, models.ErrSaveNotFound)
}
