package commands

import (
	"path"
	"sort"

	"hrpull/internal/applicants"
	"hrpull/lib/fsutil"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listOutputPath string

func init() {
	listCmd.Flags().StringVarP(&listOutputPath, "output-path", "o", "", "Directory holding one directory per position.")
	rootCmd.AddCommand(listCmd)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func listPosition(fs billy.Filesystem, position string, t table.Writer) error {
	snapshot, err := applicants.LoadSnapshot(fs, position)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	t.SetTitle(position)
	t.AppendHeader(table.Row{"ID", "Name", "Applied", "State", "Visa", "Document", "Emailed", "Verdict"})
	for _, id := range ids {
		c := snapshot[id]
		// IsProcessed is not used here, listing must leave the folders alone
		document, err := fsutil.Exists(fs, path.Join(position, c.Folder, applicants.CombinedFile))
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{
			c.ID,
			c.DisplayName(),
			c.ApplicationDate,
			c.ApplicationState,
			orDash(c.NeedVisa),
			yesNo(document),
			yesNo(c.Emailed),
			c.Verdict,
		})
	}
	t.AppendFooter(table.Row{"", "Total", len(ids)})
	return nil
}

var listCmd = &cobra.Command{
	Use:   "list [positions...]",
	Short: "Prints the stored candidates of the given positions (all synced positions by default).",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("output-path") {
			cfg.OutputPath = listOutputPath
		}
		fs := osfs.New(cfg.OutputPath)
		names, err := storedPositions(fs, args)
		if err != nil {
			return err
		}
		for _, name := range names {
			t := newTable(cmd.OutOrStdout())
			err = listPosition(fs, name, t)
			if err != nil {
				return err
			}
			t.Render()
		}
		return nil
	},
}
