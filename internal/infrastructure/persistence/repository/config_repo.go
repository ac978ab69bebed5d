package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	"go.uber.org/zap"
)

// SystemConfigRepository implements port.SystemConfigRepository
type SystemConfigRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSystemConfigRepository creates a new system config repository
func NewSystemConfigRepository(db *sql.DB, logger *zap.Logger) port.SystemConfigRepository {
	return &SystemConfigRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves an override by key
func (r *SystemConfigRepository) Get(ctx context.Context, key string) (*entity.SystemConfig, error) {
	query := `SELECT key, value, description, updated_at FROM system_config WHERE key = ?`

	var cfg entity.SystemConfig
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, key).Scan(
		&cfg.Key,
		&cfg.Value,
		&cfg.Description,
		&cfg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get system config", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to get system config: %w", err)
	}
	return &cfg, nil
}

// Upsert inserts or replaces an override
func (r *SystemConfigRepository) Upsert(ctx context.Context, cfg *entity.SystemConfig) error {
	query := `
		INSERT INTO system_config (key, value, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			description = excluded.description,
			updated_at = excluded.updated_at
	`

	cfg.UpdatedAt = time.Now()
	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query, cfg.Key, cfg.Value, cfg.Description, cfg.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert system config", zap.String("key", cfg.Key), zap.Error(err))
		return fmt.Errorf("failed to upsert system config: %w", err)
	}
	return nil
}

// ListByPrefix retrieves overrides whose key starts with prefix, ordered by key
func (r *SystemConfigRepository) ListByPrefix(ctx context.Context, prefix string) ([]*entity.SystemConfig, error) {
	query := `
		SELECT key, value, description, updated_at
		FROM system_config
		WHERE substr(key, 1, ?) = ?
		ORDER BY key ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, len(prefix), prefix)
	if err != nil {
		r.logger.Error("Failed to list system config", zap.String("prefix", prefix), zap.Error(err))
		return nil, fmt.Errorf("failed to list system config: %w", err)
	}
	defer rows.Close()

	var configs []*entity.SystemConfig
	for rows.Next() {
		var cfg entity.SystemConfig
		if err := rows.Scan(&cfg.Key, &cfg.Value, &cfg.Description, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan system config: %w", err)
		}
		configs = append(configs, &cfg)
	}
	return configs, rows.Err()
}

// Verify interface compliance
var _ port.SystemConfigRepository = (*SystemConfigRepository)(nil)
