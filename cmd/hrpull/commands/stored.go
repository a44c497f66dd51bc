package commands

import (
	"fmt"
	"io"
	"path"
	"sort"

	"hrpull/internal/applicants"
	"hrpull/lib/fsutil"

	"github.com/go-git/go-billy/v5"
	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

// storedPositions returns the positions under the output path that have a
// snapshot, restricted to `names` when any are given.
func storedPositions(fs billy.Filesystem, names []string) ([]string, error) {
	if len(names) > 0 {
		for _, name := range names {
			exists, err := fsutil.Exists(fs, path.Join(name, applicants.SnapshotFile))
			if err != nil {
				return nil, err
			}
			if !exists {
				return nil, fmt.Errorf("position '%s' has not been synced", name)
			}
		}
		return names, nil
	}

	entries, err := fs.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		exists, err := fsutil.Exists(fs, path.Join(entry.Name(), applicants.SnapshotFile))
		if err != nil {
			return nil, err
		}
		if exists {
			out = append(out, entry.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
