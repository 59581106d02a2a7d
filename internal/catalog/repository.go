// Package catalog provides the durable backup catalog: a SQLite record store
// for backup descriptors plus a small key/value meta store used for the sync
// cursor. Records are append-only; deletion is a soft flag.
package catalog

import (
	"context"

	"github.com/yoyama/bakthat/internal/models"
)

// Filter narrows a Search call. Zero values mean "no constraint".
type Filter struct {
	// Name matches stored filenames by prefix.
	Name string
	// Backend restricts to one store; nil searches both.
	Backend *models.Backend
	// Tags match with OR semantics: one shared tag is enough.
	Tags []string
	// ExactDate restricts to records with this backup_date (epoch seconds).
	ExactDate int64
	// OlderThan keeps only records with backup_date strictly below it.
	OlderThan int64
	// IncludeDeleted also returns soft-deleted records.
	IncludeDeleted bool
}

// Repository describes the backup catalog operations.
type Repository interface {
	// Create assigns an ID if the record has none and persists it.
	// Duplicate (stored_filename, backend) pairs are tolerated.
	Create(ctx context.Context, r *models.BackupRecord) error

	// Search returns matching records ordered by backup_date descending.
	Search(ctx context.Context, f Filter) ([]models.BackupRecord, error)

	// MatchFilename returns the most recent active record whose filename has
	// the given prefix on the given backend, or common.ErrNotFound.
	MatchFilename(ctx context.Context, name string, backend models.Backend) (*models.BackupRecord, error)

	// SetDeleted soft-deletes a record and refreshes last_updated. It is
	// idempotent: repeating it only refreshes the timestamp again.
	SetDeleted(ctx context.Context, id string, now int64) error

	// Upsert inserts or replaces a record keyed by
	// (stored_filename, backend, backend_hash).
	Upsert(ctx context.Context, r *models.BackupRecord) error

	// SelectUpdatedSince returns records with last_updated strictly greater
	// than since, deleted ones included. Used by the catalog mirror sync.
	SelectUpdatedSince(ctx context.Context, since int64) ([]models.BackupRecord, error)
}
