// Package service implements the operations the CLI exposes: backup,
// restore, delete, listing, retention rotation and catalog synchronization.
// It composes the catalog, the stores and the payload transforms; it never
// talks to the network or the filesystem beyond what those layers expose.
package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yoyama/bakthat/internal/archive"
	"github.com/yoyama/bakthat/internal/backend"
	"github.com/yoyama/bakthat/internal/catalog"
	"github.com/yoyama/bakthat/internal/common"
	"github.com/yoyama/bakthat/internal/config"
	"github.com/yoyama/bakthat/internal/glacierjob"
	"github.com/yoyama/bakthat/internal/keyname"
	"github.com/yoyama/bakthat/internal/logging"
	"github.com/yoyama/bakthat/internal/models"
	"github.com/yoyama/bakthat/internal/rotation"
	"github.com/yoyama/bakthat/internal/syncer"
)

// Service executes backup operations against one profile and one
// destination store.
type Service struct {
	profile   *config.Profile
	store     backend.Backend
	snapshots glacierjob.SnapshotStore
	mgr       *glacierjob.Manager
	backups   catalog.Repository
	sync      *syncer.Syncer
	log       logging.Logger
	now       func() time.Time
}

// Deps bundles the collaborators a Service needs. Snapshots and Mgr may be
// nil when no archival vault is configured; the inventory operations then
// report an error instead of acting.
type Deps struct {
	Profile   *config.Profile
	Store     backend.Backend
	Snapshots glacierjob.SnapshotStore
	Mgr       *glacierjob.Manager
	Backups   catalog.Repository
	Sync      *syncer.Syncer
	Log       logging.Logger
}

func New(d Deps) *Service {
	return &Service{
		profile:   d.Profile,
		store:     d.Store,
		snapshots: d.Snapshots,
		mgr:       d.Mgr,
		backups:   d.Backups,
		sync:      d.Sync,
		log:       d.Log,
		now:       time.Now,
	}
}

// BackupOptions tunes one Backup call.
type BackupOptions struct {
	// Tags attach free-form labels to the record.
	Tags []string
	// Password enables encryption when non-empty.
	Password string
	// CustomFilename overrides the logical filename recorded in the catalog.
	CustomFilename string
}

// Backup compresses (unless the source already is a tarball), optionally
// encrypts and uploads path, then records it in the catalog.
func (s *Service) Backup(ctx context.Context, path string, opts BackupOptions) (*models.BackupRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	name := filepath.Base(filepath.Clean(path))
	now := s.now().UTC()
	encrypted := opts.Password != ""

	s.log.Info(ctx, "backing up", "path", path)

	staged, size, err := s.stagePayload(ctx, path, name, opts.Password)
	if err != nil {
		return nil, err
	}
	defer staged.Close()

	storedFilename := keyname.Encode(trimArchiveExt(name), now, encrypted)

	s.log.Info(ctx, "uploading", "key", storedFilename, "size", size)
	location, err := s.store.Upload(ctx, storedFilename, staged)
	if err != nil {
		return nil, err
	}

	filename := trimArchiveExt(name)
	if opts.CustomFilename != "" {
		filename = opts.CustomFilename
	}

	meta := map[string]any{models.MetaKeyEncrypted: encrypted}
	if s.store.Kind() == models.BackendGlacier && location != "" {
		meta[models.MetaKeyArchiveID] = location
	}

	rec := &models.BackupRecord{
		Filename:       filename,
		StoredFilename: storedFilename,
		BackupDate:     now.Unix(),
		LastUpdated:    now.Unix(),
		Backend:        s.store.Kind(),
		Tags:           opts.Tags,
		Size:           size,
		Metadata:       meta,
		BackendHash:    s.profile.BackendHash(s.store.Kind()),
	}
	if err := s.backups.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.sync.SyncAuto(ctx)
	return rec, nil
}

// stagePayload prepares the upload body in a scoped temp file: tar.gz of the
// source (skipped when it already is one), then encryption when a password
// is given. The returned file is rewound and removed on Close.
func (s *Service) stagePayload(ctx context.Context, path, name, password string) (*archive.TempFile, int64, error) {
	staged, err := archive.NewTempFile("bakthat-*.tgz")
	if err != nil {
		return nil, 0, err
	}

	if isArchive(name) {
		s.log.Info(ctx, "source already compressed, skipping compression")
		src, err := os.Open(path)
		if err != nil {
			_ = staged.Close()
			return nil, 0, err
		}
		_, err = io.Copy(staged, src)
		_ = src.Close()
		if err != nil {
			_ = staged.Close()
			return nil, 0, err
		}
	} else {
		s.log.Info(ctx, "compressing")
		if err := archive.Compress(path, staged); err != nil {
			_ = staged.Close()
			return nil, 0, err
		}
	}

	if password != "" {
		s.log.Info(ctx, "encrypting")
		sealed, err := archive.NewTempFile("bakthat-*.tgz.enc")
		if err != nil {
			_ = staged.Close()
			return nil, 0, err
		}
		if err := staged.Rewind(); err == nil {
			err = archive.Encrypt(staged, sealed, []byte(password))
		}
		_ = staged.Close()
		if err != nil {
			_ = sealed.Close()
			return nil, 0, err
		}
		staged = sealed
	}

	info, err := staged.Stat()
	if err != nil {
		_ = staged.Close()
		return nil, 0, err
	}
	if err := staged.Rewind(); err != nil {
		_ = staged.Close()
		return nil, 0, err
	}
	return staged, info.Size(), nil
}

// RestoreOptions tunes one Restore call.
type RestoreOptions struct {
	// JobCheck probes an outstanding archival retrieval job instead of
	// starting one.
	JobCheck bool
	// Password opens encrypted payloads.
	Password string
	// Dir is the extraction directory; the working directory when empty.
	Dir string
}

// Restore downloads the most recent backup matching name and unpacks it.
// Against the archival store the first call only requests retrieval and
// reports common.ErrJobPending; later calls with JobCheck poll the job.
func (s *Service) Restore(ctx context.Context, name string, opts RestoreOptions) error {
	rec, err := s.backups.MatchFilename(ctx, name, s.store.Kind())
	if err != nil {
		return err
	}

	s.log.Info(ctx, "restoring", "key", rec.StoredFilename)
	rc, err := s.store.Download(ctx, rec.StoredFilename, opts.JobCheck)
	if err != nil {
		return err
	}
	defer rc.Close()

	dir := opts.Dir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return err
		}
	}

	var payload io.Reader = rc
	if rec.IsEncrypted() {
		s.log.Info(ctx, "decrypting")
		opened, err := archive.NewTempFile("bakthat-restore-*.tgz")
		if err != nil {
			return err
		}
		defer opened.Close()
		if err := archive.Decrypt(rc, opened, []byte(opts.Password)); err != nil {
			return err
		}
		if err := opened.Rewind(); err != nil {
			return err
		}
		payload = opened
	}

	s.log.Info(ctx, "uncompressing")
	return archive.Extract(payload, dir)
}

// Delete removes the most recent backup matching name from the store and
// soft-deletes its catalog record. It returns the stored key it removed.
func (s *Service) Delete(ctx context.Context, name string) (string, error) {
	rec, err := s.backups.MatchFilename(ctx, name, s.store.Kind())
	if err != nil {
		return "", err
	}

	s.log.Info(ctx, "deleting", "key", rec.StoredFilename)
	if err := s.store.Delete(ctx, rec.StoredFilename); err != nil {
		return "", err
	}
	if err := s.backups.SetDeleted(ctx, rec.ID, s.now().Unix()); err != nil {
		return "", err
	}

	s.sync.SyncAuto(ctx)
	return rec.StoredFilename, nil
}

// Ls lists the stored keys the destination store currently knows about.
func (s *Service) Ls(ctx context.Context) ([]string, error) {
	return s.store.List(ctx)
}

// Show searches the catalog. An empty query returns every active record;
// backend nil searches both stores; tags match with OR semantics.
func (s *Service) Show(ctx context.Context, query string, b *models.Backend, tags []string) ([]models.BackupRecord, error) {
	return s.backups.Search(ctx, catalog.Filter{Name: query, Backend: b, Tags: tags})
}

// Info returns the most recent backup for name plus the number of stored
// versions.
func (s *Service) Info(ctx context.Context, name string) (*models.BackupRecord, int, error) {
	kind := s.store.Kind()
	versions, err := s.backups.Search(ctx, catalog.Filter{Name: name, Backend: &kind})
	if err != nil {
		return nil, 0, err
	}
	if len(versions) == 0 {
		return nil, 0, fmt.Errorf("backup %q: %w", name, common.ErrNotFound)
	}
	return &versions[0], len(versions), nil
}

// RotateBackups applies the profile's grandfather-father-son policy to the
// backups matching name and returns the stored keys it deleted. A missing
// rotation configuration aborts before anything is removed.
func (s *Service) RotateBackups(ctx context.Context, name string) ([]string, error) {
	rot := s.profile.Rotation
	if rot == nil {
		return nil, common.ErrRotationConfigMissing
	}
	firstWeekDay, err := rotation.ParseWeekday(rot.FirstWeekDay)
	if err != nil {
		return nil, err
	}

	kind := s.store.Kind()
	records, err := s.backups.Search(ctx, catalog.Filter{Name: name, Backend: &kind})
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, 0, len(records))
	for _, r := range records {
		dates = append(dates, time.Unix(r.BackupDate, 0).UTC())
	}

	_, remove, err := rotation.Partition(dates, rotation.Params{
		Days:         rot.Days,
		Weeks:        rot.Weeks,
		Months:       rot.Months,
		FirstWeekDay: firstWeekDay,
		Now:          s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	deleted, err := s.deleteByDates(ctx, name, remove)
	if err != nil {
		return deleted, err
	}

	s.sync.SyncAuto(ctx)
	return deleted, nil
}

// DeleteOlderThan removes every backup matching name older than the given
// interval (e.g. "1M3W4h") and returns the stored keys it deleted.
func (s *Service) DeleteOlderThan(ctx context.Context, name, interval string) ([]string, error) {
	age, err := rotation.ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	kind := s.store.Kind()
	records, err := s.backups.Search(ctx, catalog.Filter{
		Name:      name,
		Backend:   &kind,
		OlderThan: s.now().Add(-age).Unix(),
	})
	if err != nil {
		return nil, err
	}

	var deleted []string
	for i := range records {
		key, err := s.deleteRecord(ctx, &records[i])
		if err != nil {
			return deleted, err
		}
		deleted = append(deleted, key)
	}

	s.sync.SyncAuto(ctx)
	return deleted, nil
}

// deleteByDates resolves each date back to its record and removes it. Dates
// with no matching record are skipped: the catalog may have been mutated by
// another client since the search.
func (s *Service) deleteByDates(ctx context.Context, name string, dates []time.Time) ([]string, error) {
	kind := s.store.Kind()

	var deleted []string
	for _, d := range dates {
		matches, err := s.backups.Search(ctx, catalog.Filter{Name: name, Backend: &kind, ExactDate: d.Unix()})
		if err != nil {
			return deleted, err
		}
		if len(matches) == 0 {
			continue
		}
		key, err := s.deleteRecord(ctx, &matches[0])
		if err != nil {
			return deleted, err
		}
		deleted = append(deleted, key)
	}
	return deleted, nil
}

func (s *Service) deleteRecord(ctx context.Context, rec *models.BackupRecord) (string, error) {
	s.log.Info(ctx, "deleting", "key", rec.StoredFilename)
	if err := s.store.Delete(ctx, rec.StoredFilename); err != nil {
		return "", err
	}
	if err := s.backups.SetDeleted(ctx, rec.ID, s.now().Unix()); err != nil {
		return "", err
	}
	return rec.StoredFilename, nil
}

// Sync runs an explicit catalog mirror exchange.
func (s *Service) Sync(ctx context.Context) error { return s.sync.Sync(ctx) }

// ResetSync clears the mirror cursor so the next Sync is a full resync.
func (s *Service) ResetSync(ctx context.Context) error { return s.sync.ResetSync(ctx) }

func (s *Service) manager() (*glacierjob.Manager, error) {
	if s.mgr == nil {
		return nil, fmt.Errorf("no glacier vault configured for this profile")
	}
	return s.mgr, nil
}

// ShowLocalInventory lists the local archival index.
func (s *Service) ShowLocalInventory(ctx context.Context) ([]models.InventoryEntry, error) {
	mgr, err := s.manager()
	if err != nil {
		return nil, err
	}
	return mgr.Archives(ctx)
}

// ShowRemoteInventory lists the inventory snapshot parked on the immediate
// store, without touching the local index.
func (s *Service) ShowRemoteInventory(ctx context.Context) ([]models.InventoryEntry, error) {
	mgr, err := s.manager()
	if err != nil {
		return nil, err
	}
	return mgr.FetchSnapshot(ctx, s.snapshots)
}

// BackupInventory parks the local archival index on the immediate store.
func (s *Service) BackupInventory(ctx context.Context) error {
	mgr, err := s.manager()
	if err != nil {
		return err
	}
	return mgr.BackupInventory(ctx, s.snapshots)
}

// RestoreInventory replaces the local archival index with the parked
// snapshot and returns the number of archives restored.
func (s *Service) RestoreInventory(ctx context.Context) (int, error) {
	mgr, err := s.manager()
	if err != nil {
		return 0, err
	}
	return mgr.RestoreInventory(ctx, s.snapshots)
}

// RebuildInventory drives the vault-scope inventory job: the first call
// requests it, later calls poll until the manifest is ready and the local
// index has been replaced. It returns the number of indexed archives.
func (s *Service) RebuildInventory(ctx context.Context, jobCheck bool) (int, error) {
	mgr, err := s.manager()
	if err != nil {
		return 0, err
	}
	if !jobCheck {
		d, err := mgr.InitiateInventory(ctx)
		if err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%w: inventory job %s requested, retry with job check", common.ErrJobPending, d.JobID)
	}
	return mgr.InventoryCheck(ctx)
}

// isArchive reports whether name already is a gzipped tarball.
func isArchive(name string) bool {
	return strings.HasSuffix(name, ".tgz") || strings.HasSuffix(name, ".tar.gz")
}

// trimArchiveExt drops a trailing .tgz/.tar.gz so the stored name does not
// end up with a doubled extension.
func trimArchiveExt(name string) string {
	name = strings.TrimSuffix(name, ".tar.gz")
	return strings.TrimSuffix(name, ".tgz")
}
