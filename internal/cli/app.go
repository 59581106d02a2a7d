// Package cli implements the bakthat command line: one subcommand per
// operation, each parsing its own flags.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/yoyama/bakthat/internal/config"
	"github.com/yoyama/bakthat/internal/logging"
)

const usage = `bakthat - compress, encrypt and upload backups to S3/Glacier

Usage: bakthat <command> [arguments]

Commands:
  backup [path]                  back up a file or directory (cwd by default)
  restore <name>                 restore the most recent backup into the cwd
  delete <name>                  delete the most recent backup for a name
  delete-older-than <name> <age> delete backups older than an interval (1M3W4h)
  rotate-backups <name>          apply grandfather-father-son retention
  ls                             list keys on the destination store
  show [query]                   search the catalog
  info [name]                    show the latest backup and version count
  sync                           synchronize the catalog with the mirror
  reset-sync                     force the next sync to be a full resync
  show-glacier-inventory         print the inventory snapshot parked on S3
  show-local-glacier-inventory   print the local inventory index
  backup-glacier-inventory       park the local inventory index on S3
  restore-glacier-inventory      replace the local index with the S3 snapshot
  rebuild-glacier-inventory      run/poll a vault inventory job (-job-check)

Common flags: -d s3|glacier, -p profile, -c config file`

// App dispatches parsed subcommands against a loaded configuration.
type App struct {
	cfg *config.Config
	log logging.Logger
	out io.Writer
}

func NewApp(cfg *config.Config, log logging.Logger, out io.Writer) *App {
	return &App{cfg: cfg, log: log, out: out}
}

// Run executes one subcommand. args excludes the program name.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return fmt.Errorf("no command given")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "backup":
		return a.cmdBackup(ctx, rest)
	case "restore":
		return a.cmdRestore(ctx, rest)
	case "delete":
		return a.cmdDelete(ctx, rest)
	case "delete-older-than":
		return a.cmdDeleteOlderThan(ctx, rest)
	case "rotate-backups":
		return a.cmdRotateBackups(ctx, rest)
	case "ls":
		return a.cmdLs(ctx, rest)
	case "show":
		return a.cmdShow(ctx, rest)
	case "info":
		return a.cmdInfo(ctx, rest)
	case "sync":
		return a.cmdSync(ctx, rest)
	case "reset-sync":
		return a.cmdResetSync(ctx, rest)
	case "show-glacier-inventory":
		return a.cmdShowGlacierInventory(ctx, rest)
	case "show-local-glacier-inventory":
		return a.cmdShowLocalGlacierInventory(ctx, rest)
	case "backup-glacier-inventory":
		return a.cmdBackupGlacierInventory(ctx, rest)
	case "restore-glacier-inventory":
		return a.cmdRestoreGlacierInventory(ctx, rest)
	case "rebuild-glacier-inventory":
		return a.cmdRebuildGlacierInventory(ctx, rest)
	case "help", "-h", "-help", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	default:
		fmt.Fprintln(a.out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}
