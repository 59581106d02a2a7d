package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yoyama/bakthat/internal/common"
	"github.com/yoyama/bakthat/internal/dbx"
	"github.com/yoyama/bakthat/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Add(ctx context.Context, e *models.InventoryEntry) error {
	query := `INSERT INTO inventory (archive_id, description, size, created_at, content_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(archive_id) DO UPDATE SET
			description = excluded.description,
			size = excluded.size,
			created_at = excluded.created_at,
			content_hash = excluded.content_hash`
	_, err := r.db.ExecContext(ctx, query, e.ArchiveID, e.Description, e.Size, e.CreatedAt, e.ContentHash)
	if err != nil {
		return fmt.Errorf("failed to add inventory entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) All(ctx context.Context) ([]models.InventoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT archive_id, description, size, created_at, content_hash
		 FROM inventory ORDER BY description`)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	var result []models.InventoryEntry
	for rows.Next() {
		var e models.InventoryEntry
		if err := rows.Scan(&e.ArchiveID, &e.Description, &e.Size, &e.CreatedAt, &e.ContentHash); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) FindByDescription(ctx context.Context, description string) (*models.InventoryEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT archive_id, description, size, created_at, content_hash
		 FROM inventory WHERE description = ?
		 ORDER BY created_at DESC LIMIT 1`, description)

	var e models.InventoryEntry
	err := row.Scan(&e.ArchiveID, &e.Description, &e.Size, &e.CreatedAt, &e.ContentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: archive %s", common.ErrNotFound, description)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find inventory entry: %w", err)
	}
	return &e, nil
}

func (r *SQLiteRepository) DeleteByArchiveID(ctx context.Context, archiveID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM inventory WHERE archive_id = ?`, archiveID)
	if err != nil {
		return fmt.Errorf("failed to delete inventory entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, entries []models.InventoryEntry) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM inventory`); err != nil {
		return fmt.Errorf("failed to clear inventory: %w", err)
	}
	for i := range entries {
		if err := r.Add(ctx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// SQLiteJobRepository implements JobRepository over the jobs table.
type SQLiteJobRepository struct {
	db dbx.DBTX
}

func NewSQLiteJobRepository(db dbx.DBTX) *SQLiteJobRepository {
	return &SQLiteJobRepository{db: db}
}

func (r *SQLiteJobRepository) Get(ctx context.Context, key string) (*models.JobDescriptor, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT key, job_id, requested_at, state FROM jobs WHERE key = ?`, key)

	var d models.JobDescriptor
	var state string
	err := row.Scan(&d.Key, &d.JobID, &d.RequestedAt, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", common.ErrNoJob, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job descriptor: %w", err)
	}

	d.State, err = models.ParseJobState(state)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *SQLiteJobRepository) Put(ctx context.Context, d *models.JobDescriptor) error {
	query := `INSERT INTO jobs (key, job_id, requested_at, state) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			job_id = excluded.job_id,
			requested_at = excluded.requested_at,
			state = excluded.state`
	_, err := r.db.ExecContext(ctx, query, d.Key, d.JobID, d.RequestedAt, d.State.String())
	if err != nil {
		return fmt.Errorf("failed to put job descriptor: %w", err)
	}
	return nil
}

func (r *SQLiteJobRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete job descriptor: %w", err)
	}
	return nil
}
