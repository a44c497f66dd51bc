package applicants

import (
	"path"

	"hrpull/lib/fsutil"

	"github.com/go-git/go-billy/v5"
)

type MergeResult struct {
	// New holds the ids that were not in the snapshot before, in listing order.
	New []int64
	// Listed holds every listed id once, in listing order.
	Listed []int64
}

// Merge folds freshly listed candidates into the stored snapshot in place:
//   - an unseen id is inserted with default metadata
//   - a known id only gets its application state refreshed
//   - stored ids that are no longer listed are left alone
func Merge(stored Snapshot, listed []Listing) MergeResult {
	var result MergeResult
	seen := make(map[int64]bool, len(listed))

	for _, l := range listed {
		if seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		result.Listed = append(result.Listed, l.ID)

		existing, ok := stored[l.ID]
		if !ok {
			stored[l.ID] = NewCandidate(l)
			result.New = append(result.New, l.ID)
			continue
		}
		existing.ApplicationState = l.ApplicationState
	}

	return result
}

// IsProcessed reports whether a candidate needs no more work: its folder holds
// something and the visa question was answered. An empty folder is useless, so
// it is removed on the way.
func IsProcessed(fs billy.Filesystem, positionDir string, c *Candidate) (bool, error) {
	exists, err := fsutil.RemoveIfEmpty(fs, path.Join(positionDir, c.Folder))
	if err != nil {
		return false, err
	}
	return exists && c.NeedVisa != nil, nil
}
