// Package syncer mirrors the local backup catalog against a remote REST API
// so that several machines can share one catalog. The merge is
// last-writer-wins on each record's last_updated timestamp; a cursor stored
// in the catalog's meta table tracks the last completed exchange.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/yoyama/bakthat/internal/catalog"
	"github.com/yoyama/bakthat/internal/config"
	"github.com/yoyama/bakthat/internal/logging"
	"github.com/yoyama/bakthat/internal/models"
)

// metaKeyLastSync is the meta-table key holding the sync cursor
// (epoch seconds of the last successful exchange).
const metaKeyLastSync = "last_sync"

const (
	headerClient = "X-Bakthat-Client"
	syncPath     = "/api/backups/sync"
)

// Syncer exchanges catalog records with the mirror API.
type Syncer struct {
	cfg      config.Sync
	client   *http.Client
	backups  catalog.Repository
	meta     *catalog.MetaRepository
	log      logging.Logger
	hostname string
	now      func() time.Time
}

func New(cfg config.Sync, backups catalog.Repository, meta *catalog.MetaRepository, log logging.Logger) *Syncer {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &Syncer{
		cfg:      cfg,
		client:   &http.Client{Timeout: 30 * time.Second},
		backups:  backups,
		meta:     meta,
		log:      log.With("component", "syncer"),
		hostname: hostname,
		now:      time.Now,
	}
}

// Enabled reports whether a mirror URL is configured.
func (s *Syncer) Enabled() bool { return s.cfg.URL != "" }

type syncRequest struct {
	Client  string                `json:"client"`
	Since   int64                 `json:"since"`
	Backups []models.BackupRecord `json:"backups"`
}

type syncResponse struct {
	Backups []models.BackupRecord `json:"backups"`
	Time    int64                 `json:"time"`
}

// Sync pushes records updated since the cursor, pulls the mirror's side of
// the exchange and merges it last-writer-wins. The cursor advances only when
// the whole exchange succeeded, so a failed run is retried in full.
func (s *Syncer) Sync(ctx context.Context) error {
	if !s.Enabled() {
		return fmt.Errorf("sync is not configured, set sync.url in the configuration file")
	}

	cursor, err := s.cursor(ctx)
	if err != nil {
		return err
	}

	local, err := s.backups.SelectUpdatedSince(ctx, cursor)
	if err != nil {
		return err
	}

	resp, err := s.exchange(ctx, syncRequest{
		Client:  s.hostname,
		Since:   cursor,
		Backups: local,
	})
	if err != nil {
		return err
	}

	merged, err := s.merge(ctx, local, resp.Backups)
	if err != nil {
		return err
	}

	next := resp.Time
	if next == 0 {
		next = s.now().Unix()
	}
	if err := s.meta.Set(ctx, metaKeyLastSync, strconv.FormatInt(next, 10)); err != nil {
		return err
	}

	s.log.Info(ctx, "catalog synchronized", "pushed", len(local), "pulled", len(resp.Backups), "merged", merged, "cursor", next)
	return nil
}

// ResetSync clears the cursor so the next Sync exchanges the full catalog.
func (s *Syncer) ResetSync(ctx context.Context) error {
	return s.meta.Delete(ctx, metaKeyLastSync)
}

// SyncAuto runs after every mutating catalog operation. A missing
// configuration or a failed exchange never fails the caller; the local
// catalog stays authoritative and the next sync catches up.
func (s *Syncer) SyncAuto(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	if err := s.Sync(ctx); err != nil {
		s.log.Warn(ctx, "automatic sync failed", "error", err)
	}
}

func (s *Syncer) cursor(ctx context.Context) (int64, error) {
	raw, err := s.meta.Get(ctx, metaKeyLastSync)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	cursor, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt sync cursor %q: %w", raw, err)
	}
	return cursor, nil
}

func (s *Syncer) exchange(ctx context.Context, payload syncRequest) (*syncResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode sync request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL+syncPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerClient, s.hostname)
	req.SetBasicAuth(s.cfg.Username, s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sync request: mirror returned %s: %s", resp.Status, msg)
	}

	var out syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sync response: %w", err)
	}
	return &out, nil
}

// merge applies the pulled records, skipping any the local side has written
// more recently. Records outside the pushed set are by definition older than
// the cursor, so only the pushed set can conflict.
func (s *Syncer) merge(ctx context.Context, local, remote []models.BackupRecord) (int, error) {
	newest := make(map[string]int64, len(local))
	for _, r := range local {
		newest[recordIdentity(&r)] = r.LastUpdated
	}

	merged := 0
	for i := range remote {
		r := &remote[i]
		if ts, ok := newest[recordIdentity(r)]; ok && ts >= r.LastUpdated {
			continue
		}
		if err := s.backups.Upsert(ctx, r); err != nil {
			return merged, err
		}
		merged++
	}
	return merged, nil
}

func recordIdentity(r *models.BackupRecord) string {
	return r.StoredFilename + "\x00" + r.Backend.String() + "\x00" + r.BackendHash
}
