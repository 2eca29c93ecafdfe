package db

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
)

// OpenDB opens the trips database and applies the schema. A
// DATABASE_URL starting with libsql:// talks to a remote turso
// instance, anything else is treated as a local sqlite file path.
func OpenDB(databaseUrl string) (*sql.DB, error) {
	if databaseUrl == "" {
		return nil, fmt.Errorf("a database url was not specified")
	}

	if strings.HasPrefix(databaseUrl, "libsql://") ||
		strings.HasPrefix(databaseUrl, "wss://") {
		database, err := sql.Open("libsql", databaseUrl)
		if err != nil {
			return nil, err
		}
		_, err = database.Exec(Schema)
		if err != nil {
			return nil, err
		}
		return database, nil
	}

	dbpath := strings.TrimPrefix(databaseUrl, "file://")
	_, statErr := os.Stat(dbpath)
	if os.IsNotExist(statErr) {
		f, err := os.Create(dbpath)
		if err != nil {
			return nil, err
		}
		f.Close()
	}

	database, err := sql.Open("sqlite", dbpath)
	if err != nil {
		return nil, err
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	database.SetMaxOpenConns(1)
	_, err = database.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	_, err = database.Exec("PRAGMA foreign_keys=ON")
	if err != nil {
		return nil, err
	}

	_, err = database.Exec(Schema)
	if err != nil {
		return nil, err
	}
	return database, nil
}
