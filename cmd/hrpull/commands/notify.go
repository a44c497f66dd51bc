package commands

import (
	"fmt"
	"log/slog"
	"os"

	"hrpull/internal/notify"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

var notifyFlags struct {
	outputPath string
	template   string
	subject    string
	verdict    string
	dryRun     bool
}

func init() {
	flags := notifyCmd.Flags()
	flags.StringVarP(&notifyFlags.outputPath, "output-path", "o", "", "Directory holding one directory per position.")
	flags.StringVarP(&notifyFlags.template, "template", "t", "", "Message template, a text/template executed with .Position and .Candidate.")
	flags.StringVar(&notifyFlags.subject, "subject", "Your application", "Subject used when the template has no \"Subject:\" line.")
	flags.StringVar(&notifyFlags.verdict, "verdict", "", "Only email candidates with this verdict.")
	flags.BoolVar(&notifyFlags.dryRun, "dry-run", false, "Log the emails instead of sending them.")
	notifyCmd.MarkFlagRequired("template")
	rootCmd.AddCommand(notifyCmd)
}

// dryRunSender is never called, the notifier only needs something to hold.
type dryRunSender struct {
	notify.Sender
}

var notifyCmd = &cobra.Command{
	Use:   "notify <position> --template <file>",
	Short: "Emails the candidates of a position that were not emailed yet.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("output-path") {
			cfg.OutputPath = notifyFlags.outputPath
		}
		position := args[0]

		contents, err := os.ReadFile(notifyFlags.template)
		if err != nil {
			return err
		}
		tmpl, err := notify.ParseTemplate(string(contents), notifyFlags.subject)
		if err != nil {
			return fmt.Errorf("%s: %w", notifyFlags.template, err)
		}

		var sender notify.Sender = dryRunSender{}
		from := cfg.Smtp.From()
		if notifyFlags.dryRun {
			if cfg.Smtp.EmailAddress == "" {
				from = "dry-run@localhost"
			}
		} else {
			err = cfg.Smtp.Validate()
			if err != nil {
				return err
			}
			sender = notify.NewSmtpSender(cfg.Smtp)
		}

		fs := osfs.New(cfg.OutputPath)
		_, err = storedPositions(fs, []string{position})
		if err != nil {
			return err
		}

		notifier := notify.NewNotifier(fs, sender, from, tel)
		result, err := notifier.Notify(cmd.Context(), position, tmpl, notify.Options{
			Verdict: notifyFlags.verdict,
			DryRun:  notifyFlags.dryRun,
		})
		slog.Info("notified", "position", position, "sent", len(result.Sent), "skipped", len(result.Skipped), "dry_run", notifyFlags.dryRun)
		return err
	},
}
