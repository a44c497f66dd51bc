package configlibsql

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	require.Equal(t, Struct{Url: "libsql://hr.turso.io"}, Parse("libsql://hr.turso.io"))
	require.Equal(t, Struct{Url: "https://hr.example.edu"}, Parse("https://hr.example.edu"))
	require.Equal(t, Struct{File: "out/hr.db"}, Parse("out/hr.db"))
}

func TestOpenFile(t *testing.T) {
	db, err := Struct{File: filepath.Join(t.TempDir(), "nested", "hr.db")}.OpenDB()
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("create table t (x integer)")
	require.NoError(t, err)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)

	_, err = Struct{}.OpenDB()
	require.Error(t, err)
}
