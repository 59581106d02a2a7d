package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yoyama/bakthat/internal/dbx"
)

// MetaRepository is a small key/value store in the catalog database, used for
// bookkeeping values such as the per-profile sync cursor.
type MetaRepository struct {
	db dbx.DBTX
}

func NewMetaRepository(db dbx.DBTX) *MetaRepository {
	return &MetaRepository{db: db}
}

// Get returns the stored value, or "" when the key is absent.
func (r *MetaRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta[%s]: %w", key, err)
	}
	return value, nil
}

func (r *MetaRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta[%s]: %w", key, err)
	}
	return nil
}

func (r *MetaRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM meta WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete meta[%s]: %w", key, err)
	}
	return nil
}
