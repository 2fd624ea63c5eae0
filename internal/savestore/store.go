package savestore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/models"
)

// Backend persists complete save records keyed by save id. Implementations
// are single-writer per id; concurrent writes to the same id are
// last-write-wins with no merge.
type Backend interface {
	// Put writes a record, overwriting any record with the same id.
	Put(ctx context.Context, record *models.SaveRecord) error
	// Get returns the record or models.ErrSaveNotFound.
	Get(ctx context.Context, saveID string) (*models.SaveRecord, error)
	// List enumerates summaries of all records. Records that fail to
	// parse are skipped silently.
	List(ctx context.Context) (map[string]models.SaveSummary, error)
	// Delete removes a record, reporting whether it existed. Idempotent.
	Delete(ctx context.Context, saveID string) (bool, error)
}

// Store is the save/restore surface of the game. It layers save-id and
// metadata conventions (manual, quicksave, autosave) over a Backend.
type Store struct {
	backend Backend
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store over the given backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists a snapshot under saveID, generating a UUID when saveID is
// empty. An existing record with the same id is overwritten. Returns the
// save id used.
func (s *Store) Save(ctx context.Context, snapshot models.Snapshot, saveID string, metadata map[string]any) (string, error) {
	if saveID == "" {
		saveID = uuid.NewString()
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	record := &models.SaveRecord{
		SaveID:          saveID,
		Timestamp:       s.now(),
		StoryState:      snapshot.StoryState,
		CharacterStates: snapshot.CharacterStates,
		NarrativeState:  snapshot.NarrativeState,
		Metadata:        metadata,
	}
	if err := s.backend.Put(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save record '%s': %w", saveID, err)
	}
	return saveID, nil
}

// Load returns the record for saveID or models.ErrSaveNotFound.
func (s *Store) Load(ctx context.Context, saveID string) (*models.SaveRecord, error) {
	return s.backend.Get(ctx, saveID)
}

// List enumerates all save records with their timestamps and metadata.
func (s *Store) List(ctx context.Context) (map[string]models.SaveSummary, error) {
	return s.backend.List(ctx)
}

// Delete removes the record for saveID, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, saveID string) (bool, error) {
	return s.backend.Delete(ctx, saveID)
}

// QuickSaveID returns the fixed record id of a quicksave slot.
func QuickSaveID(slot int) string {
	return fmt.Sprintf("quicksave_%d", slot)
}

// QuickSave writes the snapshot to the fixed slot id, overwriting any
// prior quicksave in that slot.
func (s *Store) QuickSave(ctx context.Context, snapshot models.Snapshot, slot int) (string, error) {
	return s.Save(ctx, snapshot, QuickSaveID(slot), map[string]any{
		"type": models.SaveTypeQuicksave,
		"slot": slot,
	})
}

// QuickLoad loads the quicksave in the given slot.
func (s *Store) QuickLoad(ctx context.Context, slot int) (*models.SaveRecord, error) {
	return s.Load(ctx, QuickSaveID(slot))
}

// Autosave writes the snapshot under a second-granularity timestamp id.
// Two autosaves within the same wall-clock second collide and the later
// write wins; this is a documented property of the id scheme, not a bug.
func (s *Store) Autosave(ctx context.Context, snapshot models.Snapshot) (string, error) {
	timestamp := s.now().Format("20060102_150405")
	return s.Save(ctx, snapshot, "autosave_"+timestamp, map[string]any{
		"type":      models.SaveTypeAutosave,
		"timestamp": timestamp,
	})
}
