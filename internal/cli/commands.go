package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/yoyama/bakthat/internal/common"
	"github.com/yoyama/bakthat/internal/models"
	"github.com/yoyama/bakthat/internal/service"
)

func (a *App) cmdBackup(ctx context.Context, args []string) error {
	c := newFlagSet("backup")
	tags := c.fs.String("t", "", "space separated tags")
	prompt := c.fs.String("prompt", "yes", "yes|no, ask for an encryption password")
	if err := c.fs.Parse(args); err != nil {
		return err
	}

	path := c.fs.Arg(0)
	if path == "" {
		var err error
		if path, err = os.Getwd(); err != nil {
			return err
		}
	}

	var password string
	if *prompt != "no" {
		var err error
		if password, err = promptNewPassword(a.out); err != nil {
			return err
		}
	}

	svc, cleanup, err := a.buildService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	rec, err := svc.Backup(ctx, path, service.BackupOptions{
		Tags:     models.SplitTags(*tags),
		Password: password,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s uploaded (%s)\n", rec.StoredFilename, humanize.Bytes(uint64(rec.Size)))
	return nil
}

func (a *App) cmdRestore(ctx context.Context, args []string) error {
	c := newFlagSet("restore")
	jobCheck := c.fs.Bool("job-check", false, "poll an outstanding glacier retrieval job")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	name := c.fs.Arg(0)
	if name == "" {
		return fmt.Errorf("no file to restore, provide a name")
	}

	svc, cleanup, err := a.buildService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	// Ask for the password before the download so a long transfer does not
	// sit behind a prompt.
	var password string
	rec, _, err := svc.Info(ctx, name)
	if err != nil {
		return err
	}
	if rec.IsEncrypted() {
		if password, err = promptPassword(a.out, "Password: "); err != nil {
			return err
		}
	}

	err = svc.Restore(ctx, name, service.RestoreOptions{JobCheck: *jobCheck, Password: password})
	switch {
	case errors.Is(err, common.ErrJobPending):
		fmt.Fprintf(a.out, "retrieval job pending: %v\nretry later with -job-check\n", err)
		return nil
	case errors.Is(err, common.ErrNoJob):
		return fmt.Errorf("no retrieval job outstanding, run restore without -job-check first")
	case err != nil:
		return err
	}

	fmt.Fprintf(a.out, "%s restored\n", rec.StoredFilename)
	return nil
}

func (a *App) cmdDelete(ctx context.Context, args []string) error {
	c := newFlagSet("delete")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	name := c.fs.Arg(0)
	if name == "" {
		return fmt.Errorf("no file to delete, provide a name")
	}

	svc, cleanup, err := a.buildService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	key, err := svc.Delete(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s deleted\n", key)
	return nil
}

func (a *App) cmdDeleteOlderThan(ctx context.Context, args []string) error {
	c := newFlagSet("delete-older-than")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	name, interval := c.fs.Arg(0), c.fs.Arg(1)
	if name == "" || interval == "" {
		return fmt.Errorf("usage: delete-older-than <name> <interval>")
	}

	svc, cleanup, err := a.buildService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	deleted, err := svc.DeleteOlderThan(ctx, name, interval)
	if err != nil {
		return err
	}
	for _, key := range deleted {
		fmt.Fprintf(a.out, "%s deleted\n", key)
	}
	return nil
}

func (a *App) cmdRotateBackups(ctx context.Context, args []string) error {
	c := newFlagSet("rotate-backups")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	name := c.fs.Arg(0)
	if name == "" {
		return fmt.Errorf("usage: rotate-backups <name>")
	}

	svc, cleanup, err := a.buildService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	deleted, err := svc.RotateBackups(ctx, name)
	if errors.Is(err, common.ErrRotationConfigMissing) {
		return fmt.Errorf("no rotation configuration for this profile, add a rotation section to the config file")
	}
	if err != nil {
		return err
	}
	for _, key := range deleted {
		fmt.Fprintf(a.out, "%s deleted\n", key)
	}
	return nil
}

func (a *App) cmdLs(ctx context.Context, args []string) error {
	c := newFlagSet("ls")
	if err := c.fs.Parse(args); err != nil {
		return err
	}

	svc, cleanup, err := a.buildService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	keys, err := svc.Ls(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Fprintln(a.out, key)
	}
	return nil
}

func (a *App) cmdShow(ctx context.Context, args []string) error {
	c := newFlagSet("show")
	tags := c.fs.String("t", "", "space separated tags")
	if err := c.fs.Parse(args); err != nil {
		return err
	}

	svc, cleanup, err := a.buildService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	var backendFilter *models.Backend
	if c.destination != "" {
		b, err := models.ParseBackend(c.destination)
		if err != nil {
			return err
		}
		backendFilter = &b
	}

	records, err := svc.Show(ctx, c.fs.Arg(0), backendFilter, models.SplitTags(*tags))
	if err != nil {
		return err
	}
	for i := range records {
		a.printRecord(&records[i])
	}
	return nil
}

func (a *App) printRecord(r *models.BackupRecord) {
	line := fmt.Sprintf("%s\t%-8s\t%-8s\t%s",
		time.Unix(r.BackupDate, 0).UTC().Format(time.RFC3339),
		r.Backend,
		humanize.Bytes(uint64(r.Size)),
		r.StoredFilename)
	if len(r.Tags) > 0 {
		line += fmt.Sprintf(" (%s)", models.JoinTags(r.Tags))
	}
	fmt.Fprintln(a.out, line)
}

func (a *App) cmdInfo(ctx context.Context, args []string) error {
	c := newFlagSet("info")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	name := c.fs.Arg(0)
	if name == "" {
		var err error
		if name, err = os.Getwd(); err != nil {
			return err
		}
	}

	svc, cleanup, err := a.buildService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	rec, versions, err := svc.Info(ctx, name)
	if errors.Is(err, common.ErrNotFound) {
		fmt.Fprintf(a.out, "no matching backup found for %s\n", name)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "last backup date: %s (%d versions)\n",
		time.Unix(rec.BackupDate, 0).UTC().Format(time.RFC3339), versions)
	return nil
}

func (a *App) cmdSync(ctx context.Context, args []string) error {
	c := newFlagSet("sync")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	svc, cleanup, err := a.buildService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()
	return svc.Sync(ctx)
}

func (a *App) cmdResetSync(ctx context.Context, args []string) error {
	c := newFlagSet("reset-sync")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	svc, cleanup, err := a.buildService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()
	return svc.ResetSync(ctx)
}

func (a *App) cmdShowGlacierInventory(ctx context.Context, args []string) error {
	return a.withService(ctx, "show-glacier-inventory", args, func(svc *service.Service) error {
		entries, err := svc.ShowRemoteInventory(ctx)
		if err != nil {
			return err
		}
		a.printInventory(entries)
		return nil
	})
}

func (a *App) cmdShowLocalGlacierInventory(ctx context.Context, args []string) error {
	return a.withService(ctx, "show-local-glacier-inventory", args, func(svc *service.Service) error {
		entries, err := svc.ShowLocalInventory(ctx)
		if err != nil {
			return err
		}
		a.printInventory(entries)
		return nil
	})
}

func (a *App) cmdBackupGlacierInventory(ctx context.Context, args []string) error {
	return a.withService(ctx, "backup-glacier-inventory", args, func(svc *service.Service) error {
		return svc.BackupInventory(ctx)
	})
}

func (a *App) cmdRestoreGlacierInventory(ctx context.Context, args []string) error {
	return a.withService(ctx, "restore-glacier-inventory", args, func(svc *service.Service) error {
		n, err := svc.RestoreInventory(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%d archives restored into the local inventory\n", n)
		return nil
	})
}

func (a *App) cmdRebuildGlacierInventory(ctx context.Context, args []string) error {
	c := newFlagSet("rebuild-glacier-inventory")
	jobCheck := c.fs.Bool("job-check", false, "poll the outstanding inventory job")
	if err := c.fs.Parse(args); err != nil {
		return err
	}

	svc, cleanup, err := a.buildService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	n, err := svc.RebuildInventory(ctx, *jobCheck)
	switch {
	case errors.Is(err, common.ErrJobPending):
		fmt.Fprintf(a.out, "inventory job pending: %v\nretry later with -job-check\n", err)
		return nil
	case errors.Is(err, common.ErrNoJob):
		return fmt.Errorf("no inventory job outstanding, run rebuild-glacier-inventory first")
	case err != nil:
		return err
	}

	fmt.Fprintf(a.out, "inventory rebuilt: %d archives\n", n)
	return nil
}

// withService handles the flag-parse/build/cleanup boilerplate shared by the
// inventory subcommands.
func (a *App) withService(ctx context.Context, name string, args []string, fn func(*service.Service) error) error {
	c := newFlagSet(name)
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	svc, cleanup, err := a.buildService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(svc)
}

func (a *App) printInventory(entries []models.InventoryEntry) {
	for _, e := range entries {
		fmt.Fprintf(a.out, "%s\t%-8s\t%s\t%s\n",
			time.Unix(e.CreatedAt, 0).UTC().Format(time.RFC3339),
			humanize.Bytes(uint64(e.Size)),
			e.Description,
			e.ArchiveID)
	}
}
