package positions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const positionsFile = `
research-engineer:
  login: hr-research
  password: s3cret
data-scientist:
  login: hr-data
  password: "12345"
`

func TestParse(t *testing.T) {
	result, err := Parse([]byte(positionsFile))
	require.NoError(t, err)

	expected := []Position{
		{Name: "research-engineer", Login: "hr-research", Password: "s3cret"},
		{Name: "data-scientist", Login: "hr-data", Password: "12345"},
	}
	if diff := cmp.Diff(expected, result); diff != "" {
		t.Fatalf("unexpected positions (-want +got):\n%s", diff)
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{name: "not a mapping", contents: "- a\n- b\n"},
		{name: "path name", contents: "a/b:\n  login: x\n"},
		{name: "no login", contents: "a:\n  password: x\n"},
		{name: "duplicate", contents: "a:\n  login: x\na:\n  login: y\n"},
	}
	for _, test := range cases {
		_, err := Parse([]byte(test.contents))
		require.Error(t, err, test.name)
	}
}

func TestParseEmpty(t *testing.T) {
	result, err := Parse([]byte(""))
	require.NoError(t, err)
	require.Empty(t, result)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(positionsFile), 0600))

	result, err := Load(path)
	require.NoError(t, err)
	require.Len(t, result, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.True(t, os.IsNotExist(err))
}

func TestSelect(t *testing.T) {
	all, err := Parse([]byte(positionsFile))
	require.NoError(t, err)

	selected, err := Select(all, nil)
	require.NoError(t, err)
	require.Equal(t, all, selected)

	selected, err = Select(all, []string{"data-scientist"})
	require.NoError(t, err)
	require.Len(t, selected, 1)
	require.Equal(t, "hr-data", selected[0].Login)

	_, err = Select(all, []string{"janitor"})
	require.True(t, errors.Is(err, ErrUnknownPosition))
}
