// ABOUTME: Root Cobra command and global wiring
// ABOUTME: Sets up CLI structure, config loading, and backing-store access

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fightbackff-oss/trackmate/internal/config"
	"github.com/fightbackff-oss/trackmate/internal/engine"
	"github.com/fightbackff-oss/trackmate/internal/store"
)

var (
	cfg      *config.Config
	combined *store.Combined
	eng      *engine.Engine
)

var rootCmd = &cobra.Command{
	Use:   "trackmate",
	Short: "Live location sharing with friends",
	Long: `
████████╗██████╗  █████╗  ██████╗██╗  ██╗███╗   ███╗ █████╗ ████████╗███████╗
╚══██╔══╝██╔══██╗██╔══██╗██╔════╝██║ ██╔╝████╗ ████║██╔══██╗╚══██╔══╝██╔════╝
   ██║   ██████╔╝███████║██║     █████╔╝ ██╔████╔██║███████║   ██║   █████╗
   ██║   ██╔══██╗██╔══██║██║     ██╔═██╗ ██║╚██╔╝██║██╔══██║   ██║   ██╔══╝
   ██║   ██║  ██║██║  ██║╚██████╗██║  ██╗██║ ╚═╝ ██║██║  ██║   ██║   ███████╗
   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝╚═╝  ╚═╝╚═╝     ╚═╝╚═╝  ╚═╝   ╚═╝   ╚══════╝

           See your friends on the map, and let them see you

Examples:
  trackmate login ada@example.com
  trackmate run
  trackmate friends
  trackmate request bob
  trackmate sos`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if combined != nil {
			return combined.Close()
		}
		return nil
	},
}

// openStore connects the relational and presence stores and builds the
// engine over them. Commands needing backend access call this first.
func openStore(ctx context.Context) error {
	if combined != nil {
		return nil
	}
	dsn := cfg.GetPostgresURL()
	if dsn == "" {
		return fmt.Errorf("no backend configured: set TRACKMATE_POSTGRES_URL or postgres_url in %s", config.GetConfigPath())
	}
	pg, err := store.OpenPostgres(ctx, dsn, cfg.GoogleClientID)
	if err != nil {
		return fmt.Errorf("failed to open relational store: %w", err)
	}
	rd, err := store.OpenRedis(ctx, cfg.GetRedisAddr())
	if err != nil {
		_ = pg.Close()
		return fmt.Errorf("failed to open presence store: %w", err)
	}
	combined = store.NewCombined(pg, rd)
	eng = engine.New(combined)
	return nil
}

// resumeSession restores the saved session and bootstraps the snapshot.
func resumeSession(ctx context.Context) (*store.Session, error) {
	if err := openStore(ctx); err != nil {
		return nil, err
	}
	if cfg.SessionToken == "" {
		return nil, fmt.Errorf("not signed in: run 'trackmate login <email>' first")
	}
	session, err := combined.Resume(ctx, cfg.SessionToken)
	if err != nil {
		return nil, fmt.Errorf("session expired: run 'trackmate login <email>' again")
	}
	eng.Bootstrap(ctx, session)
	return session, nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	})))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	if os.Getenv("TRACKMATE_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
