package configlibsql

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Struct points at either a local sqlite file or a remote libsql database.
type Struct struct {
	File      string `json:"file" env:"HRPULL_DB_FILE"`
	Url       string `json:"url" env:"HRPULL_DB_URL"`
	AuthToken string `json:"auth_token" env:"HRPULL_DB_AUTH_TOKEN"`
}

// Parse accepts what a user would type on the command line: a libsql://,
// http(s):// or ws(s):// url, or else a path to a sqlite file.
func Parse(target string) Struct {
	for _, scheme := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(target, scheme) {
			return Struct{Url: target}
		}
	}
	return Struct{File: target}
}

// openFile opens a local sqlite database, creating its directory. Writes are
// serialized over one connection with the WAL journal.
func openFile(path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0o755)
		if err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if path == ":memory:" {
		return db, nil
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	return db, nil
}

func (config Struct) OpenDB() (*sql.DB, error) {
	if config.Url == "" {
		if config.File == "" {
			return nil, fmt.Errorf("neither a database file nor url was specified")
		}
		return openFile(config.File)
	}

	target := config.Url
	if config.AuthToken != "" {
		values := url.Values{}
		values.Add("authToken", config.AuthToken)
		target += "?" + values.Encode()
	}
	return sql.Open("libsql", target)
}
