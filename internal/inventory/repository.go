// Package inventory persists the archival store's secondary index: the
// mapping from stored filenames to archive IDs, and the descriptors of
// outstanding retrieval jobs. Both live in the catalog database.
package inventory

import (
	"context"

	"github.com/yoyama/bakthat/internal/models"
)

// Repository stores InventoryEntry rows. The set is replaced wholesale on
// inventory rebuild; there is no incremental merge.
type Repository interface {
	// Add records a single entry, replacing any row with the same archive ID.
	Add(ctx context.Context, e *models.InventoryEntry) error

	// All returns every entry, ordered by description.
	All(ctx context.Context) ([]models.InventoryEntry, error)

	// FindByDescription resolves a stored filename to its most recent entry,
	// or common.ErrNotFound.
	FindByDescription(ctx context.Context, description string) (*models.InventoryEntry, error)

	// DeleteByArchiveID drops one entry. Deleting an absent ID is a no-op.
	DeleteByArchiveID(ctx context.Context, archiveID string) error

	// ReplaceAll swaps the whole index for the given entries. Callers wanting
	// atomicity run it inside dbx.WithTx.
	ReplaceAll(ctx context.Context, entries []models.InventoryEntry) error
}

// JobRepository stores at most one JobDescriptor per stored key.
type JobRepository interface {
	// Get returns the descriptor for key, or common.ErrNoJob.
	Get(ctx context.Context, key string) (*models.JobDescriptor, error)

	// Put inserts or replaces the descriptor for its key.
	Put(ctx context.Context, d *models.JobDescriptor) error

	// Delete removes the descriptor for key. Absent keys are a no-op.
	Delete(ctx context.Context, key string) error
}
