package savestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/models"
)

const (
	saveFilePrefix = "save_"
	saveFileSuffix = ".json"
)

// FileBackend stores each save record as save_{id}.json inside a
// directory. This is the default backend.
type FileBackend struct {
	dir    string
	logger *zap.Logger
}

// NewFileBackend creates the save directory if needed.
func NewFileBackend(dir string, logger *zap.Logger) (*FileBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create save directory '%s': %w", dir, err)
	}
	return &FileBackend{
		dir:    dir,
		logger: logger.Named("FileBackend"),
	}, nil
}

func (b *FileBackend) path(saveID string) string {
	return filepath.Join(b.dir, saveFilePrefix+saveID+saveFileSuffix)
}

// Put writes the record file, overwriting an existing one.
func (b *FileBackend) Put(_ context.Context, record *models.SaveRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode save record: %w", err)
	}
	if err := os.WriteFile(b.path(record.SaveID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write save file: %w", err)
	}
	b.logger.Debug("Save record written", zap.String("saveID", record.SaveID))
	return nil
}

// Get reads and decodes one record.
func (b *FileBackend) Get(_ context.Context, saveID string) (*models.SaveRecord, error) {
	data, err := os.ReadFile(b.path(saveID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: id='%s'", models.ErrSaveNotFound, saveID)
		}
		return nil, fmt.Errorf("failed to read save file for '%s': %w", saveID, err)
	}

	var record models.SaveRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: id='%s': %v", models.ErrCorruptSaveRecord, saveID, err)
	}
	return &record, nil
}

// List enumerates all save files in the directory. Files that fail to
// parse are skipped silently (corrupt-record tolerance).
func (b *FileBackend) List(ctx context.Context) (map[string]models.SaveSummary, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read save directory '%s': %w", b.dir, err)
	}

	saves := make(map[string]models.SaveSummary)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, saveFilePrefix) || !strings.HasSuffix(name, saveFileSuffix) {
			continue
		}
		saveID := strings.TrimSuffix(strings.TrimPrefix(name, saveFilePrefix), saveFileSuffix)

		record, err := b.Get(ctx, saveID)
		if err != nil {
			b.logger.Debug("Skipping unreadable save record", zap.String("saveID", saveID), zap.Error(err))
			continue
		}
		saves[saveID] = models.SaveSummary{
			Timestamp: record.Timestamp,
			Metadata:  record.Metadata,
		}
	}
	return saves, nil
}

// Delete removes the record file if present.
func (b *FileBackend) Delete(_ context.Context, saveID string) (bool, error) {
	err := os.Remove(b.path(saveID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete save file for '%s': %w", saveID, err)
	}
	return true, nil
}

var _ Backend = (*FileBackend)(nil)
