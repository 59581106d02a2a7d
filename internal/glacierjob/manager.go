// Package glacierjob drives the archival store's asynchronous job protocol:
// one retrieval job per stored key, vault-scope inventory jobs, and the
// snapshot bridge that parks the inventory index on the immediate store.
//
// Nothing here blocks on job completion. Restore and the check calls return
// immediately; polling cadence belongs to the caller.
package glacierjob

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glacier"
	"github.com/aws/aws-sdk-go-v2/service/glacier/types"

	"github.com/yoyama/bakthat/internal/common"
	"github.com/yoyama/bakthat/internal/dbx"
	"github.com/yoyama/bakthat/internal/inventory"
	"github.com/yoyama/bakthat/internal/logging"
	"github.com/yoyama/bakthat/internal/models"
)

// GlacierAPI is the slice of the Glacier client used by the manager and the
// archival backend. *glacier.Client satisfies it; tests substitute a fake.
type GlacierAPI interface {
	UploadArchive(ctx context.Context, params *glacier.UploadArchiveInput, optFns ...func(*glacier.Options)) (*glacier.UploadArchiveOutput, error)
	DeleteArchive(ctx context.Context, params *glacier.DeleteArchiveInput, optFns ...func(*glacier.Options)) (*glacier.DeleteArchiveOutput, error)
	InitiateJob(ctx context.Context, params *glacier.InitiateJobInput, optFns ...func(*glacier.Options)) (*glacier.InitiateJobOutput, error)
	DescribeJob(ctx context.Context, params *glacier.DescribeJobInput, optFns ...func(*glacier.Options)) (*glacier.DescribeJobOutput, error)
	GetJobOutput(ctx context.Context, params *glacier.GetJobOutputInput, optFns ...func(*glacier.Options)) (*glacier.GetJobOutputOutput, error)
}

// SnapshotStore is where inventory snapshots are parked; the immediate
// store's backend satisfies it.
type SnapshotStore interface {
	Upload(ctx context.Context, key string, body io.Reader) (string, error)
	Download(ctx context.Context, key string, jobCheck bool) (io.ReadCloser, error)
}

// currentAccount addresses the vault owner's account in Glacier calls.
const currentAccount = "-"

// defaultOutputExpiry is how long a completed job's output stays fetchable.
const defaultOutputExpiry = 24 * time.Hour

// Manager owns the retrieval job state machine for one vault.
type Manager struct {
	api    GlacierAPI
	vault  string
	db     *sql.DB
	jobs   inventory.JobRepository
	index  inventory.Repository
	log    logging.Logger
	now    func() time.Time
	expiry time.Duration
}

func NewManager(api GlacierAPI, vault string, db *sql.DB, jobs inventory.JobRepository, index inventory.Repository, log logging.Logger) *Manager {
	return &Manager{
		api:    api,
		vault:  vault,
		db:     db,
		jobs:   jobs,
		index:  index,
		log:    log.With("vault", vault),
		now:    time.Now,
		expiry: defaultOutputExpiry,
	}
}

// inventoryJobKey is the reserved descriptor key for the vault-scope
// inventory job. Stored names never contain "://", so it cannot collide.
func (m *Manager) inventoryJobKey() string {
	return "inventory://" + m.vault
}

// Restore ensures a retrieval job exists for key and returns its descriptor.
// An outstanding descriptor is returned as-is: no duplicate job is created.
func (m *Manager) Restore(ctx context.Context, key string) (*models.JobDescriptor, error) {
	d, err := m.jobs.Get(ctx, key)
	if err == nil {
		m.log.Debug(ctx, "retrieval job already outstanding", "key", key, "job_id", d.JobID)
		return d, nil
	}
	if !errors.Is(err, common.ErrNoJob) {
		return nil, err
	}

	entry, err := m.index.FindByDescription(ctx, key)
	if err != nil {
		return nil, err
	}

	return m.initiateJob(ctx, key, &types.JobParameters{
		Type:      aws.String("archive-retrieval"),
		ArchiveId: aws.String(entry.ArchiveID),
	})
}

// JobCheck probes the retrieval job for key without blocking.
//
// No descriptor: common.ErrNoJob, without contacting the remote store.
// Job still running: common.ErrJobPending, descriptor untouched.
// Job succeeded: the output stream; the descriptor is cleared, so a further
// check reports ErrNoJob again.
// Job failed or output expired: descriptor cleared, common.ErrRetrievalFailed.
func (m *Manager) JobCheck(ctx context.Context, key string) (io.ReadCloser, error) {
	d, err := m.jobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return m.collectJob(ctx, d)
}

// InitiateInventory starts (or reuses) the vault-scope inventory job.
func (m *Manager) InitiateInventory(ctx context.Context) (*models.JobDescriptor, error) {
	key := m.inventoryJobKey()

	d, err := m.jobs.Get(ctx, key)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, common.ErrNoJob) {
		return nil, err
	}

	return m.initiateJob(ctx, key, &types.JobParameters{
		Type: aws.String("inventory-retrieval"),
	})
}

// InventoryCheck probes the inventory job and, once the manifest is ready,
// replaces the whole local index with its contents. It returns the number
// of indexed archives.
func (m *Manager) InventoryCheck(ctx context.Context) (int, error) {
	d, err := m.jobs.Get(ctx, m.inventoryJobKey())
	if err != nil {
		return 0, err
	}

	out, err := m.collectJob(ctx, d)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	entries, err := parseManifest(out)
	if err != nil {
		return 0, err
	}

	if err := m.replaceIndex(ctx, entries); err != nil {
		return 0, err
	}

	m.log.Info(ctx, "inventory rebuilt", "archives", len(entries))
	return len(entries), nil
}

// SnapshotKey is the immediate-store object name of the inventory snapshot.
func (m *Manager) SnapshotKey() string {
	return m.vault + "-glacier-inventory.json"
}

// Archives returns the local inventory index.
func (m *Manager) Archives(ctx context.Context) ([]models.InventoryEntry, error) {
	return m.index.All(ctx)
}

// FetchSnapshot downloads and decodes the parked inventory snapshot without
// touching the local index.
func (m *Manager) FetchSnapshot(ctx context.Context, store SnapshotStore) ([]models.InventoryEntry, error) {
	rc, err := store.Download(ctx, m.SnapshotKey(), false)
	if err != nil {
		return nil, fmt.Errorf("download inventory snapshot: %w", err)
	}
	defer rc.Close()

	var entries []models.InventoryEntry
	if err := json.NewDecoder(rc).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode inventory snapshot: %w", err)
	}
	return entries, nil
}

// BackupInventory serializes the local index and parks it on the immediate
// store, letting another client bootstrap without a full inventory job.
func (m *Manager) BackupInventory(ctx context.Context, store SnapshotStore) error {
	entries, err := m.index.All(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode inventory snapshot: %w", err)
	}

	if _, err := store.Upload(ctx, m.SnapshotKey(), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("upload inventory snapshot: %w", err)
	}

	m.log.Info(ctx, "inventory snapshot uploaded", "archives", len(entries))
	return nil
}

// RestoreInventory downloads the snapshot and replaces the local index with
// it. Last writer wins; there is no merge.
func (m *Manager) RestoreInventory(ctx context.Context, store SnapshotStore) (int, error) {
	entries, err := m.FetchSnapshot(ctx, store)
	if err != nil {
		return 0, err
	}
	if err := m.replaceIndex(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (m *Manager) initiateJob(ctx context.Context, key string, params *types.JobParameters) (*models.JobDescriptor, error) {
	out, err := m.api.InitiateJob(ctx, &glacier.InitiateJobInput{
		AccountId:     aws.String(currentAccount),
		VaultName:     aws.String(m.vault),
		JobParameters: params,
	})
	if err != nil {
		return nil, fmt.Errorf("initiate %s job: %w", aws.ToString(params.Type), err)
	}

	d := &models.JobDescriptor{
		Key:         key,
		JobID:       aws.ToString(out.JobId),
		RequestedAt: m.now().Unix(),
		State:       models.JobRequested,
	}
	if err := m.jobs.Put(ctx, d); err != nil {
		return nil, err
	}

	m.log.Info(ctx, "retrieval job initiated", "key", key, "job_id", d.JobID)
	return d, nil
}

// collectJob advances a descriptor through the remote job states and, on
// success, hands back the output stream after clearing the descriptor.
func (m *Manager) collectJob(ctx context.Context, d *models.JobDescriptor) (io.ReadCloser, error) {
	desc, err := m.api.DescribeJob(ctx, &glacier.DescribeJobInput{
		AccountId: aws.String(currentAccount),
		VaultName: aws.String(m.vault),
		JobId:     aws.String(d.JobID),
	})
	if err != nil {
		var nf *types.ResourceNotFoundException
		if errors.As(err, &nf) {
			// The remote side no longer knows the job: its output window
			// has expired. The caller must restore again.
			return nil, m.failJob(ctx, d, "job expired remotely")
		}
		return nil, fmt.Errorf("describe job %s: %w", d.JobID, err)
	}

	switch {
	case desc.StatusCode == types.StatusCodeFailed:
		return nil, m.failJob(ctx, d, aws.ToString(desc.StatusMessage))

	case !desc.Completed:
		if d.State != models.JobInProgress {
			d.State = models.JobInProgress
			if err := m.jobs.Put(ctx, d); err != nil {
				return nil, err
			}
		}
		return nil, fmt.Errorf("%w: job %s", common.ErrJobPending, d.JobID)
	}

	if expired, when := m.outputExpired(desc); expired {
		return nil, m.failJob(ctx, d, fmt.Sprintf("job output expired at %s", when))
	}

	out, err := m.api.GetJobOutput(ctx, &glacier.GetJobOutputInput{
		AccountId: aws.String(currentAccount),
		VaultName: aws.String(m.vault),
		JobId:     aws.String(d.JobID),
	})
	if err != nil {
		return nil, fmt.Errorf("get job output %s: %w", d.JobID, err)
	}

	if err := m.jobs.Delete(ctx, d.Key); err != nil {
		_ = out.Body.Close()
		return nil, err
	}

	m.log.Info(ctx, "retrieval job downloaded", "key", d.Key, "job_id", d.JobID)
	return out.Body, nil
}

func (m *Manager) failJob(ctx context.Context, d *models.JobDescriptor, reason string) error {
	m.log.Warn(ctx, "retrieval job failed", "key", d.Key, "job_id", d.JobID, "reason", reason)
	if err := m.jobs.Delete(ctx, d.Key); err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s: %s", common.ErrRetrievalFailed, d.JobID, reason)
}

// outputExpired reports whether a completed job's output window has passed.
func (m *Manager) outputExpired(desc *glacier.DescribeJobOutput) (bool, time.Time) {
	completed, err := time.Parse(time.RFC3339, aws.ToString(desc.CompletionDate))
	if err != nil {
		return false, time.Time{}
	}
	deadline := completed.Add(m.expiry)
	return m.now().After(deadline), deadline
}

func (m *Manager) replaceIndex(ctx context.Context, entries []models.InventoryEntry) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return inventory.NewSQLiteRepository(tx).ReplaceAll(ctx, entries)
	})
}

// manifest mirrors the JSON layout of a Glacier inventory-retrieval output.
type manifest struct {
	ArchiveList []struct {
		ArchiveId          string `json:"ArchiveId"`
		ArchiveDescription string `json:"ArchiveDescription"`
		CreationDate       string `json:"CreationDate"`
		Size               int64  `json:"Size"`
		SHA256TreeHash     string `json:"SHA256TreeHash"`
	} `json:"ArchiveList"`
}

func parseManifest(r io.Reader) ([]models.InventoryEntry, error) {
	var man manifest
	if err := json.NewDecoder(r).Decode(&man); err != nil {
		return nil, fmt.Errorf("decode inventory manifest: %w", err)
	}

	entries := make([]models.InventoryEntry, 0, len(man.ArchiveList))
	for _, a := range man.ArchiveList {
		var created int64
		if t, err := time.Parse(time.RFC3339, a.CreationDate); err == nil {
			created = t.Unix()
		}
		entries = append(entries, models.InventoryEntry{
			ArchiveID:   a.ArchiveId,
			Description: a.ArchiveDescription,
			Size:        a.Size,
			CreatedAt:   created,
			ContentHash: a.SHA256TreeHash,
		})
	}
	return entries, nil
}
