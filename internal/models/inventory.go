package models

// InventoryEntry maps a stored filename to its archival-store archive ID.
// The archival store cannot be queried by name, so the set of entries forms
// a local secondary index rebuilt wholesale from inventory jobs.
type InventoryEntry struct {
	ArchiveID   string `json:"archive_id"`
	Description string `json:"description"`
	Size        int64  `json:"size"`
	CreatedAt   int64  `json:"created_at"`
	ContentHash string `json:"content_hash"`
}
