package catalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoyama/bakthat/internal/common"
	"github.com/yoyama/bakthat/internal/models"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDatabase(context.Background(), filepath.Join(t.TempDir(), "catalog.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newRecord(filename string, date int64, backend models.Backend) *models.BackupRecord {
	return &models.BackupRecord{
		Filename:       filename,
		StoredFilename: filename + ".20240115120000.tgz",
		BackupDate:     date,
		LastUpdated:    date,
		Backend:        backend,
		Size:           100,
		Metadata:       map[string]any{models.MetaKeyEncrypted: false},
		BackendHash:    "hash",
	}
}

func TestCreate_AssignsID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	rec := newRecord("project", 1000, models.BackendS3)
	require.NoError(t, r.Create(ctx, rec))
	assert.NotEmpty(t, rec.ID)

	// Duplicates are tolerated: same stored filename, new id.
	dup := newRecord("project", 1000, models.BackendS3)
	require.NoError(t, r.Create(ctx, dup))
	assert.NotEqual(t, rec.ID, dup.ID)
}

func TestSearch_PrefixAndOrder(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, newRecord("project", 1000, models.BackendS3)))
	require.NoError(t, r.Create(ctx, newRecord("project", 3000, models.BackendS3)))
	require.NoError(t, r.Create(ctx, newRecord("project", 2000, models.BackendGlacier)))
	require.NoError(t, r.Create(ctx, newRecord("other", 1500, models.BackendS3)))

	got, err := r.Search(ctx, Filter{Name: "proj"})
	require.NoError(t, err)
	require.Len(t, got, 3, "prefix search across both backends")
	assert.Equal(t, int64(3000), got[0].BackupDate, "ordered by backup_date descending")
	assert.Equal(t, int64(2000), got[1].BackupDate)
	assert.Equal(t, int64(1000), got[2].BackupDate)

	s3 := models.BackendS3
	got, err = r.Search(ctx, Filter{Name: "proj", Backend: &s3})
	require.NoError(t, err)
	assert.Len(t, got, 2, "backend filter")

	got, err = r.Search(ctx, Filter{Name: "proj", ExactDate: 2000})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.BackendGlacier, got[0].Backend)

	got, err = r.Search(ctx, Filter{Name: "proj", OlderThan: 2000})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1000), got[0].BackupDate)
}

func TestSearch_TagsORSemantics(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	tagged := newRecord("project", 1000, models.BackendS3)
	tagged.Tags = []string{"prod", "db"}
	require.NoError(t, r.Create(ctx, tagged))

	other := newRecord("project", 2000, models.BackendS3)
	other.Tags = []string{"staging"}
	require.NoError(t, r.Create(ctx, other))

	got, err := r.Search(ctx, Filter{Tags: []string{"db", "web"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.ElementsMatch(t, []string{"prod", "db"}, got[0].Tags)

	got, err = r.Search(ctx, Filter{Tags: []string{"nothing"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_ExcludesDeletedByDefault(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	rec := newRecord("project", 1000, models.BackendS3)
	require.NoError(t, r.Create(ctx, rec))
	require.NoError(t, r.SetDeleted(ctx, rec.ID, 2000))

	got, err := r.Search(ctx, Filter{Name: "project"})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.Search(ctx, Filter{Name: "project", IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsDeleted)
	assert.Equal(t, int64(2000), got[0].LastUpdated)
}

func TestMatchFilename(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, newRecord("project", 1000, models.BackendS3)))
	latest := newRecord("project", 3000, models.BackendS3)
	require.NoError(t, r.Create(ctx, latest))

	got, err := r.MatchFilename(ctx, "proj", models.BackendS3)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, got.ID, "must return the most recent active record")

	_, err = r.MatchFilename(ctx, "proj", models.BackendGlacier)
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = r.MatchFilename(ctx, "nothing", models.BackendS3)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSetDeleted_Idempotent(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	rec := newRecord("project", 1000, models.BackendS3)
	require.NoError(t, r.Create(ctx, rec))

	require.NoError(t, r.SetDeleted(ctx, rec.ID, 2000))
	require.NoError(t, r.SetDeleted(ctx, rec.ID, 3000), "second call is a no-op beyond the timestamp")

	got, err := r.Search(ctx, Filter{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsDeleted)
	assert.Equal(t, int64(3000), got[0].LastUpdated)

	require.ErrorIs(t, r.SetDeleted(ctx, "missing", 4000), common.ErrNotFound)
}

func TestUpsert_InsertThenReplace(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	rec := newRecord("project", 1000, models.BackendS3)
	rec.ID = "fixed-id"
	require.NoError(t, r.Upsert(ctx, rec))

	// Same identity triple: replaces in place instead of inserting.
	update := newRecord("project", 1000, models.BackendS3)
	update.ID = "fixed-id"
	update.Size = 999
	update.LastUpdated = 5000
	require.NoError(t, r.Upsert(ctx, update))

	got, err := r.Search(ctx, Filter{Name: "project"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(999), got[0].Size)
	assert.Equal(t, int64(5000), got[0].LastUpdated)

	// Different backend hash: separate physical container, new row.
	foreign := newRecord("project", 1000, models.BackendS3)
	foreign.BackendHash = "other"
	require.NoError(t, r.Upsert(ctx, foreign))

	got, err = r.Search(ctx, Filter{Name: "project"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSelectUpdatedSince(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	old := newRecord("old", 1000, models.BackendS3)
	require.NoError(t, r.Create(ctx, old))
	fresh := newRecord("fresh", 2000, models.BackendS3)
	require.NoError(t, r.Create(ctx, fresh))

	deleted := newRecord("gone", 1500, models.BackendS3)
	require.NoError(t, r.Create(ctx, deleted))
	require.NoError(t, r.SetDeleted(ctx, deleted.ID, 2500))

	got, err := r.SelectUpdatedSince(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, got, 2, "soft-deleted records travel too")

	names := []string{got[0].Filename, got[1].Filename}
	assert.ElementsMatch(t, []string{"fresh", "gone"}, names)
}
