package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arbor/internal/domain"
	"arbor/internal/domain/models/chat"
	"arbor/internal/domain/repositories"
)

// PostgresSettingsRepository implements the SettingsRepository interface.
// Settings are stored as one JSONB blob per key, so adding a field to
// GenerationSettings never needs a migration.
type PostgresSettingsRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewSettingsRepository creates a new PostgresSettingsRepository
func NewSettingsRepository(config *RepositoryConfig) repositories.SettingsRepository {
	return &PostgresSettingsRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// EnsureSettingsSchema creates the settings table if it does not exist.
// Called once at startup, before the repository is constructed.
func EnsureSettingsSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, tables.Settings)

	if _, err := pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure settings schema: %w", err)
	}
	return nil
}

// Load retrieves the settings stored under key
func (r *PostgresSettingsRepository) Load(ctx context.Context, key string) (*chat.GenerationSettings, error) {
	query := fmt.Sprintf(`
		SELECT data
		FROM %s
		WHERE key = $1
	`, r.tables.Settings)

	var data []byte
	err := r.pool.QueryRow(ctx, query, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("settings %q: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load settings: %w", err)
	}

	var settings chat.GenerationSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("decode settings %q: %w", key, err)
	}

	return &settings, nil
}

// Save creates or replaces the settings stored under key
func (r *PostgresSettingsRepository) Save(ctx context.Context, key string, settings *chat.GenerationSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings %q: %w", key, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = now()
	`, r.tables.Settings)

	if _, err := r.pool.Exec(ctx, query, key, data); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	r.logger.Debug("settings saved", "key", key)
	return nil
}
