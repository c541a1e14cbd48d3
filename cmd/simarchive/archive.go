package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/perfops/simarchive/pkg/archive"
	"github.com/perfops/simarchive/pkg/config"
	"github.com/perfops/simarchive/pkg/pipeline"
	"github.com/perfops/simarchive/pkg/runstate"
	"github.com/perfops/simarchive/pkg/selector"
	"github.com/perfops/simarchive/pkg/upload"
	"github.com/perfops/simarchive/pkg/workspace"
)

var (
	runID        string
	runStartStr  string
	workspaceDir string
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive the current run's simulation reports",
	Long: `Scan the build workspace for simulation reports produced after the
run's start time and copy them into the run's archive storage. The
command may be invoked repeatedly for the same run; reports already
archived are skipped and new ones are appended to the run's record.`,
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().StringVar(&runID, "run-id", "",
		"Identifier of the build run (required)")
	archiveCmd.Flags().StringVar(&runStartStr, "run-start", "",
		"Run start time, RFC3339 or milliseconds since epoch (required)")
	archiveCmd.Flags().StringVar(&workspaceDir, "workspace", "",
		"Workspace directory to scan (overrides config)")
}

func runArchive(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	if runID == "" {
		return fmt.Errorf("run id is required (use --run-id)")
	}

	runStart, err := parseRunStart(runStartStr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	wsDir := workspaceDir
	if wsDir == "" {
		wsDir = cfg.Archive.WorkspaceDir
	}

	if wsDir == "" {
		return fmt.Errorf("workspace directory is required " +
			"(use --workspace or archive.workspace_dir)")
	}

	// Setup context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	fsys := workspace.NewLocal()
	sel := selector.New(log, fsys, cfg.Archive.Tolerance())
	writer := archive.NewWriter(log, fsys)
	pipe := pipeline.New(log, sel, writer)

	runDir := filepath.Join(cfg.Archive.StorageDir, runID)

	sims, err := pipe.Run(ctx, pipeline.Options{
		Enabled:      cfg.Archive.Enabled,
		WorkspaceDir: wsDir,
		RunDir:       runDir,
		RunStart:     runStart,
	})
	if err != nil {
		return fmt.Errorf("archiving reports: %w", err)
	}

	if len(sims) > 0 {
		store := runstate.NewStore(log, &cfg.Database)
		if err := store.Start(ctx); err != nil {
			return fmt.Errorf("starting run-state store: %w", err)
		}

		defer func() {
			if err := store.Stop(); err != nil {
				log.WithError(err).Warn("Failed to stop run-state store")
			}
		}()

		err := store.AppendSimulations(ctx, runID, runStart, sims)
		if err != nil {
			return fmt.Errorf("updating run state: %w", err)
		}

		if cfg.Upload != nil && cfg.Upload.Enabled {
			if err := uploadRunDir(ctx, cfg, runDir); err != nil {
				return err
			}
		}
	}

	log.WithField("archived", len(sims)).Info("Archival invocation complete")

	return nil
}

// uploadRunDir mirrors the run's archive directory to remote storage.
func uploadRunDir(
	ctx context.Context, cfg *config.Config, runDir string,
) error {
	uploader, err := upload.NewS3Uploader(log, cfg.Upload)
	if err != nil {
		return fmt.Errorf("creating uploader: %w", err)
	}

	if err := uploader.Preflight(ctx); err != nil {
		return fmt.Errorf("upload preflight: %w", err)
	}

	if err := uploader.UploadRunDir(ctx, runID, runDir); err != nil {
		return fmt.Errorf("uploading run archive: %w", err)
	}

	return nil
}

// parseRunStart accepts RFC3339 or milliseconds since epoch.
func parseRunStart(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("run start is required (use --run-start)")
	}

	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}

	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid run start %q: %w", v, err)
	}

	return t, nil
}
