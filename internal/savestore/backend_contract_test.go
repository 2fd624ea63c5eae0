package savestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/models"
	"github.com/SparxCinTech/InteractiveStoryGame/internal/savestore"
)

func testRecord(saveID, scene string) *models.SaveRecord {
	return &models.SaveRecord{
		SaveID:    saveID,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		StoryState: models.StoryState{
			CurrentScene: scene,
			Timestamp:    time.Now().UTC().Truncate(time.Second),
		},
		CharacterStates: map[string]models.CharacterState{
			"Sarah Chen": {
				Personality: "Analytical",
				Background:  "Veteran detective",
				Memory:      []models.Exchange{{Input: "hello", Output: "hi"}},
			},
		},
		NarrativeState: models.NarrativeState{
			Developments: []models.Development{{Description: "It began", NewSituation: "dark alley"}},
		},
		Metadata: map[string]any{"type": models.SaveTypeManual, "note": "contract"},
	}
}

// runBackendContract exercises the properties every Backend must satisfy,
// regardless of where it keeps its records. corrupt plants an unparseable
// record under the given id through the backend's own storage.
func runBackendContract(t *testing.T, backend savestore.Backend, corrupt func(t *testing.T, saveID string)) {
	ctx := context.Background()

	t.Run("round-trips a record", func(t *testing.T) {
		require.NoError(t, backend.Put(ctx, testRecord("contract_roundtrip", "warehouse")))

		record, err := backend.Get(ctx, "contract_roundtrip")
		require.NoError(t, err)
		assert.Equal(t, "warehouse", record.StoryState.CurrentScene)
		assert.Equal(t, "Veteran detective", record.CharacterStates["Sarah Chen"].Background)
		require.Len(t, record.CharacterStates["Sarah Chen"].Memory, 1)
		assert.Equal(t, models.Exchange{Input: "hello", Output: "hi"}, record.CharacterStates["Sarah Chen"].Memory[0])
		require.Len(t, record.NarrativeState.Developments, 1)
		assert.Equal(t, "dark alley", record.NarrativeState.Developments[0].NewSituation)
		assert.Equal(t, "contract", record.Metadata["note"])
	})

	t.Run("overwrites an existing id", func(t *testing.T) {
		require.NoError(t, backend.Put(ctx, testRecord("contract_overwrite", "first")))
		require.NoError(t, backend.Put(ctx, testRecord("contract_overwrite", "second")))

		record, err := backend.Get(ctx, "contract_overwrite")
		require.NoError(t, err)
		assert.Equal(t, "second", record.StoryState.CurrentScene)
	})

	t.Run("returns ErrSaveNotFound for unknown ids", func(t *testing.T) {
		_, err := backend.Get(ctx, "contract_missing")
		assert.ErrorIs(t, err, models.ErrSaveNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, backend.Put(ctx, testRecord("contract_doomed", "scene")))

		existed, err := backend.Delete(ctx, "contract_doomed")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = backend.Delete(ctx, "contract_doomed")
		require.NoError(t, err)
		assert.False(t, existed)

		_, err = backend.Get(ctx, "contract_doomed")
		assert.ErrorIs(t, err, models.ErrSaveNotFound)
	})

	t.Run("list skips corrupt records", func(t *testing.T) {
		require.NoError(t, backend.Put(ctx, testRecord("contract_keeper", "kept")))
		corrupt(t, "contract_mangled")

		saves, err := backend.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, saves, "contract_keeper")
		assert.NotContains(t, saves, "contract_mangled")
	})
}
