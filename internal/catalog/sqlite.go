package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yoyama/bakthat/internal/common"
	"github.com/yoyama/bakthat/internal/dbx"
	"github.com/yoyama/bakthat/internal/models"
)

const recordColumns = "id, filename, stored_filename, backup_date, last_updated, backend, is_deleted, tags, size, metadata, backend_hash"

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, rec *models.BackupRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.LastUpdated == 0 {
		rec.LastUpdated = rec.BackupDate
	}

	meta, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO backups (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.Filename, rec.StoredFilename, rec.BackupDate, rec.LastUpdated,
		rec.Backend.String(), boolToInt(rec.IsDeleted), models.JoinTags(rec.Tags),
		rec.Size, meta, rec.BackendHash)
	if err != nil {
		return fmt.Errorf("failed to insert backup record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Search(ctx context.Context, f Filter) ([]models.BackupRecord, error) {
	var conds []string
	var args []any

	if f.Name != "" {
		conds = append(conds, `filename LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(f.Name)+"%")
	}
	if f.Backend != nil {
		conds = append(conds, "backend = ?")
		args = append(args, f.Backend.String())
	}
	if f.ExactDate != 0 {
		conds = append(conds, "backup_date = ?")
		args = append(args, f.ExactDate)
	}
	if f.OlderThan != 0 {
		conds = append(conds, "backup_date < ?")
		args = append(args, f.OlderThan)
	}
	if !f.IncludeDeleted {
		conds = append(conds, "is_deleted = 0")
	}

	query := "SELECT " + recordColumns + " FROM backups"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY backup_date DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search backups: %w", err)
	}
	defer rows.Close()

	var result []models.BackupRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if !rec.HasAnyTag(f.Tags) {
			continue
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) MatchFilename(ctx context.Context, name string, backend models.Backend) (*models.BackupRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM backups
		WHERE filename LIKE ? ESCAPE '\' AND backend = ? AND is_deleted = 0
		ORDER BY backup_date DESC LIMIT 1`
	rows, err := r.db.QueryContext(ctx, query, escapeLike(name)+"%", backend.String())
	if err != nil {
		return nil, fmt.Errorf("failed to match filename: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, name)
	}
	return scanRecord(rows)
}

func (r *SQLiteRepository) SetDeleted(ctx context.Context, id string, now int64) error {
	query := `UPDATE backups SET is_deleted = 1, last_updated = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete backup: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("%w: record %s", common.ErrNotFound, id)
	}
	return nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.BackupRecord) error {
	meta, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	update := `UPDATE backups SET
			id = ?, filename = ?, backup_date = ?, last_updated = ?,
			is_deleted = ?, tags = ?, size = ?, metadata = ?
		WHERE stored_filename = ? AND backend = ? AND backend_hash = ?`
	res, err := r.db.ExecContext(ctx, update,
		rec.ID, rec.Filename, rec.BackupDate, rec.LastUpdated,
		boolToInt(rec.IsDeleted), models.JoinTags(rec.Tags), rec.Size, meta,
		rec.StoredFilename, rec.Backend.String(), rec.BackendHash)
	if err != nil {
		return fmt.Errorf("failed to upsert backup record: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra > 0 {
		return nil
	}
	return r.Create(ctx, rec)
}

func (r *SQLiteRepository) SelectUpdatedSince(ctx context.Context, since int64) ([]models.BackupRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM backups
		WHERE last_updated > ? ORDER BY backup_date DESC`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to select updated backups: %w", err)
	}
	defer rows.Close()

	var result []models.BackupRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanRecord(rows *sql.Rows) (*models.BackupRecord, error) {
	var rec models.BackupRecord
	var backend, tags, meta string
	var deleted int

	err := rows.Scan(&rec.ID, &rec.Filename, &rec.StoredFilename, &rec.BackupDate,
		&rec.LastUpdated, &backend, &deleted, &tags, &rec.Size, &meta, &rec.BackendHash)
	if err != nil {
		return nil, fmt.Errorf("failed to scan backup row: %w", err)
	}

	rec.Backend, err = models.ParseBackend(backend)
	if err != nil {
		return nil, err
	}
	rec.IsDeleted = deleted != 0
	rec.Tags = models.SplitTags(tags)
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode record metadata: %w", err)
		}
	}
	return &rec, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode record metadata: %w", err)
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// escapeLike neutralizes LIKE wildcards in user-provided prefixes.
// Queries using it must carry an ESCAPE '\' clause.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
