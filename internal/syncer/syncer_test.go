package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoyama/bakthat/internal/catalog"
	"github.com/yoyama/bakthat/internal/config"
	"github.com/yoyama/bakthat/internal/logging"
	"github.com/yoyama/bakthat/internal/models"
)

func setupSyncer(t *testing.T, url string) (*Syncer, catalog.Repository, *catalog.MetaRepository) {
	t.Helper()
	db, err := catalog.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "catalog.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	backups := catalog.NewSQLiteRepository(db)
	meta := catalog.NewMetaRepository(db)
	s := New(config.Sync{URL: url, Username: "alice", APIKey: "secret"}, backups, meta, logging.NewNopLogger())
	return s, backups, meta
}

func record(name string, backupDate, lastUpdated int64) *models.BackupRecord {
	return &models.BackupRecord{
		Filename:       name,
		StoredFilename: name + "." + "20240115120000" + ".tgz",
		BackupDate:     backupDate,
		LastUpdated:    lastUpdated,
		Backend:        models.BackendS3,
		Size:           100,
		BackendHash:    "hash1",
	}
}

func mirror(t *testing.T, got *syncRequest, reply syncResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, syncPath, r.URL.Path)

		user, key, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "secret", key)
		assert.NotEmpty(t, r.Header.Get(headerClient))

		require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		require.NoError(t, json.NewEncoder(w).Encode(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSyncer_PushPullAndCursor(t *testing.T) {
	ctx := context.Background()

	var got syncRequest
	remote := *record("from-mirror", 1700000000, 1700000500)
	srv := mirror(t, &got, syncResponse{Backups: []models.BackupRecord{remote}, Time: 1700001000})

	s, backups, meta := setupSyncer(t, srv.URL)
	require.NoError(t, backups.Create(ctx, record("local-only", 1700000100, 1700000100)))

	require.NoError(t, s.Sync(ctx))

	assert.Equal(t, int64(0), got.Since, "first sync starts from zero")
	require.Len(t, got.Backups, 1)
	assert.Equal(t, "local-only", got.Backups[0].Filename)

	pulled, err := backups.MatchFilename(ctx, "from-mirror", models.BackendS3)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000500), pulled.LastUpdated)

	cursor, err := meta.Get(ctx, metaKeyLastSync)
	require.NoError(t, err)
	assert.Equal(t, "1700001000", cursor)
}

func TestSyncer_SecondSyncPushesOnlyNewer(t *testing.T) {
	ctx := context.Background()

	var got syncRequest
	srv := mirror(t, &got, syncResponse{Time: 1700002000})

	s, backups, meta := setupSyncer(t, srv.URL)
	require.NoError(t, backups.Create(ctx, record("old", 1700000100, 1700000100)))
	require.NoError(t, backups.Create(ctx, record("new", 1700001500, 1700001500)))
	require.NoError(t, meta.Set(ctx, metaKeyLastSync, strconv.FormatInt(1700001000, 10)))

	require.NoError(t, s.Sync(ctx))

	assert.Equal(t, int64(1700001000), got.Since)
	require.Len(t, got.Backups, 1)
	assert.Equal(t, "new", got.Backups[0].Filename)
}

func TestSyncer_LastWriterWins(t *testing.T) {
	ctx := context.Background()

	// The mirror sends a stale copy of a record the local side just touched.
	stale := *record("contested", 1700000000, 1700000200)
	stale.IsDeleted = true
	var got syncRequest
	srv := mirror(t, &got, syncResponse{Backups: []models.BackupRecord{stale}, Time: 1700001000})

	s, backups, _ := setupSyncer(t, srv.URL)
	fresh := record("contested", 1700000000, 1700000900)
	require.NoError(t, backups.Create(ctx, fresh))

	require.NoError(t, s.Sync(ctx))

	kept, err := backups.MatchFilename(ctx, "contested", models.BackendS3)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000900), kept.LastUpdated, "newer local write survives")
	assert.False(t, kept.IsDeleted)
}

func TestSyncer_FailedExchangeKeepsCursor(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	s, backups, meta := setupSyncer(t, srv.URL)
	require.NoError(t, backups.Create(ctx, record("a", 1700000100, 1700000100)))

	err := s.Sync(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	cursor, err := meta.Get(ctx, metaKeyLastSync)
	require.NoError(t, err)
	assert.Empty(t, cursor, "failed run must be retried in full")
}

func TestSyncer_ResetSync(t *testing.T) {
	ctx := context.Background()

	s, _, meta := setupSyncer(t, "http://mirror.invalid")
	require.NoError(t, meta.Set(ctx, metaKeyLastSync, "1700001000"))

	require.NoError(t, s.ResetSync(ctx))

	cursor, err := meta.Get(ctx, metaKeyLastSync)
	require.NoError(t, err)
	assert.Empty(t, cursor)
}

func TestSyncer_SyncAutoSwallowsErrors(t *testing.T) {
	// Unreachable mirror: SyncAuto must neither panic nor report.
	s, _, _ := setupSyncer(t, "http://127.0.0.1:1")
	s.SyncAuto(context.Background())

	// Not configured at all: silently skipped.
	s2, _, _ := setupSyncer(t, "")
	s2.SyncAuto(context.Background())

	require.Error(t, s2.Sync(context.Background()), "explicit sync without configuration reports")
}
