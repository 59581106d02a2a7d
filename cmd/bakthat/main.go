package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/yoyama/bakthat/internal/cli"
	"github.com/yoyama/bakthat/internal/config"
	"github.com/yoyama/bakthat/internal/flagx"
	"github.com/yoyama/bakthat/internal/logging"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The config file flag may appear anywhere; it is consumed by
	// config.Load, so drop it before subcommand dispatch.
	args := flagx.ExcludeArgs(os.Args[1:], []string{"-c", "-config", "--config"})

	app := cli.NewApp(cfg, log, os.Stdout)
	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
