package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// KVRepository stores snapshot blobs in the kv_store table. It satisfies persist.Storage.
type KVRepository struct {
	db *sqlx.DB
}

// NewKVRepository creates a new repository instance
func NewKVRepository(db *sqlx.DB) *KVRepository {
	return &KVRepository{db: db}
}

// Get returns the value stored under key
func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value, r.db.Rebind("SELECT value FROM kv_store WHERE key = ?"), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get value: %w", err)
	}
	return []byte(value), true, nil
}

// Set inserts or replaces the value stored under key
func (r *KVRepository) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), key, string(value)); err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	return nil
}
