package commands

import (
	"fmt"
	"log/slog"
	"time"

	"hrpull/internal/applicants"
	"hrpull/internal/export"
	configlibsql "hrpull/lib/configuration/libsql"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

var exportFlags struct {
	outputPath string
	db         string
}

func init() {
	exportCmd.Flags().StringVarP(&exportFlags.outputPath, "output-path", "o", "", "Directory holding one directory per position.")
	exportCmd.Flags().StringVar(&exportFlags.db, "db", "", "A sqlite file or a libsql url, defaults to the configured database.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [positions...] --db <file or url>",
	Short: "Copies the stored candidates into a sqlite or libsql database, replacing what was exported before.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("output-path") {
			cfg.OutputPath = exportFlags.outputPath
		}
		dbConfig := cfg.Database
		if exportFlags.db != "" {
			dbConfig = configlibsql.Parse(exportFlags.db)
		}
		if dbConfig.File == "" && dbConfig.Url == "" {
			return fmt.Errorf("no database configured (--db)")
		}

		fs := osfs.New(cfg.OutputPath)
		names, err := storedPositions(fs, args)
		if err != nil {
			return err
		}

		database, err := dbConfig.OpenDB()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer database.Close()

		ctx := cmd.Context()
		store := export.NewStore(database)
		err = store.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		now := time.Now()
		for _, name := range names {
			snapshot, err := applicants.LoadSnapshot(fs, name)
			if err != nil {
				return err
			}
			err = store.Replace(ctx, name, snapshot, now)
			if err != nil {
				return fmt.Errorf("export %s: %w", name, err)
			}
			slog.Info("exported", "position", name, "candidates", len(snapshot))
		}
		return nil
	},
}
