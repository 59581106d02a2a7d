package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// Metadata keys carried in BackupRecord.Metadata.
const (
	// MetaKeyEncrypted marks the payload as encrypted (bool).
	MetaKeyEncrypted = "is_enc"
	// MetaKeyArchiveID optionally references the archival-store archive (string).
	MetaKeyArchiveID = "archive_id"
)

// BackupRecord is one catalog row describing a stored backup version.
// Records are append-only: they are soft-deleted via IsDeleted and never
// physically removed.
type BackupRecord struct {
	ID             string
	Filename       string
	StoredFilename string
	BackupDate     int64
	LastUpdated    int64
	Backend        Backend
	IsDeleted      bool
	Tags           []string
	Size           int64
	Metadata       map[string]any
	BackendHash    string
}

// IsEncrypted reports whether the stored payload was encrypted at backup time.
func (r *BackupRecord) IsEncrypted() bool {
	v, ok := r.Metadata[MetaKeyEncrypted]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// HasAnyTag reports whether the record shares at least one tag with query
// (OR semantics). An empty query matches everything.
func (r *BackupRecord) HasAnyTag(query []string) bool {
	if len(query) == 0 {
		return true
	}
	for _, q := range query {
		for _, t := range r.Tags {
			if t == q {
				return true
			}
		}
	}
	return false
}

// JoinTags renders a tag set in its wire form: space-joined, sorted for
// determinism.
func JoinTags(tags []string) string {
	s := make([]string, len(tags))
	copy(s, tags)
	sort.Strings(s)
	return strings.Join(s, " ")
}

// SplitTags parses the space-joined wire form back into a tag set,
// dropping empty elements and duplicates.
func SplitTags(s string) []string {
	var tags []string
	seen := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}

// wireRecord is the JSON representation exchanged with the catalog mirror.
// Tags travel as a single space-joined string and the backend as its name.
type wireRecord struct {
	ID             string         `json:"id"`
	Filename       string         `json:"filename"`
	StoredFilename string         `json:"stored_filename"`
	BackupDate     int64          `json:"backup_date"`
	LastUpdated    int64          `json:"last_updated"`
	Backend        string         `json:"backend"`
	IsDeleted      bool           `json:"is_deleted"`
	Tags           string         `json:"tags"`
	Size           int64          `json:"size"`
	Metadata       map[string]any `json:"metadata"`
	BackendHash    string         `json:"backend_hash"`
}

func (r BackupRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRecord{
		ID:             r.ID,
		Filename:       r.Filename,
		StoredFilename: r.StoredFilename,
		BackupDate:     r.BackupDate,
		LastUpdated:    r.LastUpdated,
		Backend:        r.Backend.String(),
		IsDeleted:      r.IsDeleted,
		Tags:           JoinTags(r.Tags),
		Size:           r.Size,
		Metadata:       r.Metadata,
		BackendHash:    r.BackendHash,
	})
}

func (r *BackupRecord) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	backend, err := ParseBackend(w.Backend)
	if err != nil {
		return err
	}
	*r = BackupRecord{
		ID:             w.ID,
		Filename:       w.Filename,
		StoredFilename: w.StoredFilename,
		BackupDate:     w.BackupDate,
		LastUpdated:    w.LastUpdated,
		Backend:        backend,
		IsDeleted:      w.IsDeleted,
		Tags:           SplitTags(w.Tags),
		Size:           w.Size,
		Metadata:       w.Metadata,
		BackendHash:    w.BackendHash,
	}
	return nil
}
