package applicants

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"
)

func TestLoadSnapshotMissing(t *testing.T) {
	fs := memfs.New()
	snapshot, err := LoadSnapshot(fs, "nothing-here")
	require.NoError(t, err)
	require.Empty(t, snapshot)

	require.NoError(t, util.WriteFile(fs, "empty/candidates.yaml", nil, 0o644))
	snapshot, err = LoadSnapshot(fs, "empty")
	require.NoError(t, err)
	require.Empty(t, snapshot)
}

func TestLoadSnapshotRejects(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{name: "not yaml", contents: "12: [unterminated\n"},
		{name: "null record", contents: "12:\n"},
		{name: "wrong key", contents: "12:\n  id: 13\n  url: x\n"},
	}
	for _, test := range cases {
		fs := memfs.New()
		require.NoError(t, util.WriteFile(fs, "pos/candidates.yaml", []byte(test.contents), 0o644))
		_, err := LoadSnapshot(fs, "pos")
		require.Error(t, err, test.name)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	fs := memfs.New()
	c := NewCandidate(listing(31, "Barbara", "Liskov", "Submitted"))
	c.Email = strptr("barbara@example.com")
	c.NeedVisa = strptr("No")
	c.Notes = "first call went well   \nsecond call scheduled\t"
	c.Extra = map[string]any{"rating": 4}

	require.NoError(t, SaveSnapshot(fs, "pos", Snapshot{31: c}))

	contents, err := util.ReadFile(fs, "pos/candidates.yaml")
	require.NoError(t, err)
	text := string(contents)
	require.True(t, strings.HasPrefix(text, "31:\n  id: 31\n"), text)
	require.Contains(t, text, "notes: |-\n")
	require.Contains(t, text, "rating: 4")
	require.Contains(t, text, "email: barbara@example.com")
	require.NotContains(t, text, "phone:")

	loaded, err := LoadSnapshot(fs, "pos")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	got := loaded[31]
	require.Equal(t, "first call went well\nsecond call scheduled", got.Notes)
	require.Equal(t, 4, got.Extra["rating"])
	require.Equal(t, "No", *got.NeedVisa)
	require.Equal(t, "31-barbara_liskov", got.Folder)
}

func TestSnapshotUnknownVisa(t *testing.T) {
	contents, err := EncodeSnapshot(Snapshot{9: NewCandidate(listing(9, "Ken", "Thompson", "Submitted"))})
	require.NoError(t, err)
	require.Contains(t, string(contents), "need_visa: null")
	require.Contains(t, string(contents), "email: null")
	require.Contains(t, string(contents), "emailed: false")
	require.Contains(t, string(contents), "combined: \"\"", "a missing document stays visible")
}

func TestEncodeSnapshotOrdersByID(t *testing.T) {
	snapshot := Snapshot{
		100: NewCandidate(listing(100, "A", "A", "Submitted")),
		9:   NewCandidate(listing(9, "B", "B", "Submitted")),
		20:  NewCandidate(listing(20, "C", "C", "Submitted")),
	}
	contents, err := EncodeSnapshot(snapshot)
	require.NoError(t, err)

	text := string(contents)
	first := strings.Index(text, "\n9:\n")
	if strings.HasPrefix(text, "9:\n") {
		first = 0
	}
	second := strings.Index(text, "\n20:\n")
	third := strings.Index(text, "\n100:\n")
	require.True(t, first >= 0 && first < second && second < third, text)

	empty, err := EncodeSnapshot(nil)
	require.NoError(t, err)
	require.Equal(t, "{}\n", string(empty))
}
