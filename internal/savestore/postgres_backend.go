package savestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/models"
)

const createSaveRecordsTableSQL = `
CREATE TABLE IF NOT EXISTS save_records (
    save_id    TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL,
    record     JSONB NOT NULL
);`

// PostgresBackend stores save records as JSONB documents keyed by save_id.
type PostgresBackend struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresBackend ensures the save_records table exists and returns the
// backend.
func NewPostgresBackend(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*PostgresBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := pool.Exec(ctx, createSaveRecordsTableSQL); err != nil {
		return nil, fmt.Errorf("failed to ensure save_records table: %w", err)
	}
	return &PostgresBackend{
		pool:   pool,
		logger: logger.Named("PostgresBackend"),
	}, nil
}

// Put upserts the record; an existing save_id is overwritten.
func (b *PostgresBackend) Put(ctx context.Context, record *models.SaveRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode save record: %w", err)
	}

	_, err = b.pool.Exec(ctx, `
		INSERT INTO save_records (save_id, created_at, record)
		VALUES ($1, $2, $3)
		ON CONFLICT (save_id) DO UPDATE
		SET created_at = EXCLUDED.created_at, record = EXCLUDED.record`,
		record.SaveID, record.Timestamp, data)
	if err != nil {
		return fmt.Errorf("failed to upsert save record: %w", err)
	}
	b.logger.Debug("Save record upserted", zap.String("saveID", record.SaveID))
	return nil
}

// Get returns the record or models.ErrSaveNotFound.
func (b *PostgresBackend) Get(ctx context.Context, saveID string) (*models.SaveRecord, error) {
	var row struct {
		Record []byte `db:"record"`
	}
	err := pgxscan.Get(ctx, b.pool, &row,
		`SELECT record FROM save_records WHERE save_id = $1`, saveID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: id='%s'", models.ErrSaveNotFound, saveID)
		}
		return nil, fmt.Errorf("failed to query save record '%s': %w", saveID, err)
	}

	var record models.SaveRecord
	if err := json.Unmarshal(row.Record, &record); err != nil {
		return nil, fmt.Errorf("%w: id='%s': %v", models.ErrCorruptSaveRecord, saveID, err)
	}
	return &record, nil
}

// List enumerates all rows; rows whose JSONB fails to decode into a record
// are skipped silently.
func (b *PostgresBackend) List(ctx context.Context) (map[string]models.SaveSummary, error) {
	var rows []struct {
		SaveID string `db:"save_id"`
		Record []byte `db:"record"`
	}
	err := pgxscan.Select(ctx, b.pool, &rows,
		`SELECT save_id, record FROM save_records ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list save records: %w", err)
	}

	saves := make(map[string]models.SaveSummary, len(rows))
	for _, row := range rows {
		var record models.SaveRecord
		if err := json.Unmarshal(row.Record, &record); err != nil {
			b.logger.Debug("Skipping corrupt save record", zap.String("saveID", row.SaveID), zap.Error(err))
			continue
		}
		saves[row.SaveID] = models.SaveSummary{
			Timestamp: record.Timestamp,
			Metadata:  record.Metadata,
		}
	}
	return saves, nil
}

// Delete removes the row, reporting whether it existed.
func (b *PostgresBackend) Delete(ctx context.Context, saveID string) (bool, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM save_records WHERE save_id = $1`, saveID)
	if err != nil {
		return false, fmt.Errorf("failed to delete save record '%s': %w", saveID, err)
	}
	return tag.RowsAffected() > 0, nil
}

var _ Backend = (*PostgresBackend)(nil)
