package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/yoyama/bakthat/internal/backend"
	"github.com/yoyama/bakthat/internal/catalog"
	"github.com/yoyama/bakthat/internal/config"
	"github.com/yoyama/bakthat/internal/glacierjob"
	"github.com/yoyama/bakthat/internal/inventory"
	"github.com/yoyama/bakthat/internal/models"
	"github.com/yoyama/bakthat/internal/service"
	"github.com/yoyama/bakthat/internal/syncer"
)

// commonFlags are the flags shared by every subcommand.
type commonFlags struct {
	fs          *flag.FlagSet
	profile     string
	destination string
}

func newFlagSet(name string) *commonFlags {
	c := &commonFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	c.fs.StringVar(&c.profile, "p", config.DefaultProfile, "profile name")
	c.fs.StringVar(&c.destination, "d", "", "destination: s3|glacier")

	// The config file path is consumed before dispatch; accept it here so a
	// trailing "-c path" does not break subcommand parsing.
	var ignored string
	c.fs.StringVar(&ignored, "c", "", "path to config file")
	c.fs.StringVar(&ignored, "config", "", "path to config file")
	return c
}

// buildService wires the catalog, the stores and the syncer for one profile
// and destination. The returned cleanup closes the catalog database.
func (a *App) buildService(ctx context.Context, c *commonFlags) (*service.Service, func(), error) {
	profile, err := a.cfg.Profile(c.profile)
	if err != nil {
		return nil, nil, err
	}

	dest, err := profile.Destination()
	if err != nil {
		return nil, nil, err
	}
	if c.destination != "" {
		if dest, err = models.ParseBackend(c.destination); err != nil {
			return nil, nil, err
		}
	}

	db, err := catalog.InitDatabase(ctx, a.cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = db.Close() }

	awsCfg, err := backend.LoadAWSConfig(ctx, profile)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	s3Store := backend.NewS3Backend(backend.NewS3Client(awsCfg, profile), profile.S3Bucket, a.log)

	var (
		store backend.Backend = s3Store
		mgr   *glacierjob.Manager
	)
	if profile.GlacierVault != "" {
		api := backend.NewGlacierClient(awsCfg)
		index := inventory.NewSQLiteRepository(db)
		jobs := inventory.NewSQLiteJobRepository(db)
		mgr = glacierjob.NewManager(api, profile.GlacierVault, db, jobs, index, a.log)
		if dest == models.BackendGlacier {
			store = backend.NewGlacierBackend(api, profile.GlacierVault, index, mgr, a.log)
		}
	} else if dest == models.BackendGlacier {
		cleanup()
		return nil, nil, fmt.Errorf("profile %q has no glacier_vault configured", c.profile)
	}

	backups := catalog.NewSQLiteRepository(db)
	meta := catalog.NewMetaRepository(db)

	svc := service.New(service.Deps{
		Profile:   profile,
		Store:     store,
		Snapshots: s3Store,
		Mgr:       mgr,
		Backups:   backups,
		Sync:      syncer.New(a.cfg.Sync, backups, meta, a.log),
		Log:       a.log,
	})
	return svc, cleanup, nil
}
