package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glacier"

	"github.com/yoyama/bakthat/internal/common"
	"github.com/yoyama/bakthat/internal/glacierjob"
	"github.com/yoyama/bakthat/internal/inventory"
	"github.com/yoyama/bakthat/internal/logging"
	"github.com/yoyama/bakthat/internal/models"
)

// GlacierBackend stores archives in a Glacier vault. The vault offers no
// synchronous listing, so all lookups go through the local inventory index;
// downloads go through the retrieval job manager.
type GlacierBackend struct {
	api   glacierjob.GlacierAPI
	vault string
	index inventory.Repository
	mgr   *glacierjob.Manager
	log   logging.Logger
	now   func() time.Time
}

func NewGlacierBackend(api glacierjob.GlacierAPI, vault string, index inventory.Repository, mgr *glacierjob.Manager, log logging.Logger) *GlacierBackend {
	return &GlacierBackend{
		api:   api,
		vault: vault,
		index: index,
		mgr:   mgr,
		log:   log.With("backend", models.BackendGlacier.String(), "vault", vault),
		now:   time.Now,
	}
}

func (b *GlacierBackend) Kind() models.Backend { return models.BackendGlacier }

func (b *GlacierBackend) Container() string { return b.vault }

// List enumerates stored keys from the local index. It reflects the vault
// only as of the last inventory rebuild or snapshot restore.
func (b *GlacierBackend) List(ctx context.Context) ([]string, error) {
	entries, err := b.index.All(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Description)
	}
	return keys, nil
}

// Upload stores body as a new archive described by key and records it in the
// local index. The returned location is the archive ID.
func (b *GlacierBackend) Upload(ctx context.Context, key string, body io.Reader) (string, error) {
	out, err := b.api.UploadArchive(ctx, &glacier.UploadArchiveInput{
		AccountId:          aws.String("-"),
		VaultName:          aws.String(b.vault),
		ArchiveDescription: aws.String(key),
		Body:               body,
	})
	if err != nil {
		return "", fmt.Errorf("upload archive %q: %w", key, err)
	}

	archiveID := aws.ToString(out.ArchiveId)
	err = b.index.Add(ctx, &models.InventoryEntry{
		ArchiveID:   archiveID,
		Description: key,
		CreatedAt:   b.now().Unix(),
		ContentHash: aws.ToString(out.Checksum),
	})
	if err != nil {
		return "", fmt.Errorf("index archive %q: %w", key, err)
	}

	b.log.Info(ctx, "archive uploaded", "key", key, "archive_id", archiveID)
	return archiveID, nil
}

// Delete removes the archive described by key. A key absent from the index
// is logged and ignored: the index may simply be behind the vault.
func (b *GlacierBackend) Delete(ctx context.Context, key string) error {
	entry, err := b.index.FindByDescription(ctx, key)
	if errors.Is(err, common.ErrNotFound) {
		b.log.Warn(ctx, "archive not in local index, skipping delete", "key", key)
		return nil
	}
	if err != nil {
		return err
	}

	_, err = b.api.DeleteArchive(ctx, &glacier.DeleteArchiveInput{
		AccountId: aws.String("-"),
		VaultName: aws.String(b.vault),
		ArchiveId: aws.String(entry.ArchiveID),
	})
	if err != nil {
		return fmt.Errorf("delete archive %q: %w", key, err)
	}

	if err := b.index.DeleteByArchiveID(ctx, entry.ArchiveID); err != nil {
		return err
	}

	b.log.Info(ctx, "archive deleted", "key", key, "archive_id", entry.ArchiveID)
	return nil
}

// Download is two-phase. With jobCheck false it ensures a retrieval job
// exists and reports common.ErrJobPending; with jobCheck true it probes the
// job and returns the stream once the output is ready.
func (b *GlacierBackend) Download(ctx context.Context, key string, jobCheck bool) (io.ReadCloser, error) {
	if jobCheck {
		return b.mgr.JobCheck(ctx, key)
	}

	d, err := b.mgr.Restore(ctx, key)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: job %s requested, retry with job check", common.ErrJobPending, d.JobID)
}
