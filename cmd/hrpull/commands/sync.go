package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"hrpull/internal/applicants"
	"hrpull/internal/portal"
	"hrpull/internal/positions"
	"hrpull/lib/restyutil"
	"hrpull/lib/serviceutil"
	"hrpull/lib/telemetry"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

const actionLoadSave = "load-save-candidates"

var syncFlags struct {
	outputPath    string
	positionsFile string
	headless      bool
	action        string
	downloadDir   string
	baseUrl       string
}

func init() {
	flags := syncCmd.Flags()
	flags.StringVarP(&syncFlags.outputPath, "output-path", "o", "", "Directory holding one directory per position (default from config, \"positions\").")
	flags.StringVarP(&syncFlags.positionsFile, "positions-file", "i", "", "YAML file mapping position names to portal credentials.")
	flags.BoolVar(&syncFlags.headless, "headless", false, "Run the browser headless, combined documents are not downloaded then.")
	flags.StringVar(&syncFlags.action, "action", "", "Run a maintenance action instead of syncing: "+actionLoadSave+".")
	flags.StringVar(&syncFlags.downloadDir, "download-dir", "", "Let the browser save documents into this directory instead of fetching them.")
	flags.StringVar(&syncFlags.baseUrl, "base-url", "", "Base url of the portal.")
	rootCmd.AddCommand(syncCmd)
}

// applySyncFlags lets flags that were given override the config.
func applySyncFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("output-path") {
		cfg.OutputPath = syncFlags.outputPath
	}
	if flags.Changed("positions-file") {
		cfg.PositionsFile = syncFlags.positionsFile
	}
	if flags.Changed("download-dir") {
		cfg.Browser.DownloadDir = syncFlags.downloadDir
	}
	if flags.Changed("base-url") {
		cfg.BaseUrl = syncFlags.baseUrl
	}
}

var syncCmd = &cobra.Command{
	Use:   "sync [positions...] -i <positions.yaml> [-o <output path>]",
	Short: "Brings the candidate snapshots of the given positions (all by default) up to date with the portal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		applySyncFlags(cmd, &cfg)

		if syncFlags.action != "" && syncFlags.action != actionLoadSave {
			return fmt.Errorf("unknown action '%s'", syncFlags.action)
		}
		if cfg.PositionsFile == "" {
			return fmt.Errorf("a positions file is required (--positions-file)")
		}

		all, err := positions.Load(cfg.PositionsFile)
		if err != nil {
			return err
		}
		selected, err := positions.Select(all, args)
		if err != nil {
			return err
		}

		err = os.MkdirAll(cfg.OutputPath, 0o755)
		if err != nil {
			serviceutil.Fatal("failed to create output path", err)
		}
		fs := osfs.New(cfg.OutputPath)

		portalCfg := portal.Config{
			BaseURL:          cfg.BaseUrl,
			Headless:         syncFlags.headless,
			BrowserBin:       cfg.Browser.Bin,
			DownloadDir:      cfg.Browser.DownloadDir,
			OperationTimeout: seconds(cfg.Timeouts.OperationSeconds),
			DocumentTimeout:  seconds(cfg.Timeouts.DocumentSeconds),
		}
		if cfg.HttpTraceDir != "" {
			err = os.MkdirAll(cfg.HttpTraceDir, 0o755)
			if err != nil {
				serviceutil.Fatal("failed to create http trace dir", err)
			}
			portalCfg.Trace = restyutil.NewFilesystemOutput(osfs.New(cfg.HttpTraceDir), time.Now().Format("20060102-150405"))
		}

		syncer := applicants.NewSyncer(fs, portal.Opener(portalCfg, fs, tel), tel, applicants.Options{
			Headless:       syncFlags.headless,
			LoadSaveOnly:   syncFlags.action == actionLoadSave,
			StartupTimeout: seconds(cfg.Timeouts.StartupSeconds),
		})

		ctx := cmd.Context()
		telemetry.InstrumentPerfStats(ctx, 15*time.Second)
		return syncAll(ctx, syncer, selected)
	},
}

// syncAll syncs every position in turn. A failed position does not stop the
// others, the returned error lists every position that failed.
func syncAll(ctx context.Context, syncer applicants.Syncer, selected []positions.Position) error {
	var failed []error
	for _, pos := range selected {
		t1 := time.Now()
		_, err := syncer.SyncPosition(ctx, pos)
		if errors.Is(err, context.Canceled) {
			return err
		}
		if err != nil {
			slog.Error("position failed", "position", pos.Name, "err", err)
			failed = append(failed, fmt.Errorf("%s: %w", pos.Name, err))
			continue
		}
		slog.Debug("position synced", "position", pos.Name, "seconds", time.Since(t1).Seconds())
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d positions failed: %w", len(failed), len(selected), errors.Join(failed...))
	}
	return nil
}
