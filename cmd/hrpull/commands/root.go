package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"hrpull/lib/configutil"
	"hrpull/lib/telemetry"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

// set up by the root command before any subcommand runs
var (
	cfg       Config
	tel       telemetry.API
	providers telemetry.Telemetry
)

var setupTelemetry = telemetry.SetupFromEnv

var rootCmd = &cobra.Command{
	Use:   "hrpull",
	Short: "hrpull keeps a local copy of the candidates of job postings on the HR portal.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := telemetry.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		telemetry.InitSlog(level)
		slog.SetDefault(slog.Default().With("run", uuid.NewString()))

		cfg, err = configutil.Load(configFile, defaultConfig())
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}

		providers, err = setupTelemetry(cmd.Context(), "hrpull")
		if err != nil {
			slog.Warn("telemetry is disabled", "err", err)
		}
		tel = telemetry.NewSlogAPI(slog.Default())
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "hrpull.json5", "The configuration file, a missing file is fine.")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn or error.")
}

// execute runs the command line and flushes telemetry afterwards, a failed
// command included.
func execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	flushErr := providers.Shutdown(flushCtx)
	if flushErr != nil {
		slog.Warn("failed to flush telemetry", "err", flushErr)
	}
	return err
}

func ExecuteContext(ctx context.Context) {
	if err := execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
