package testutil

import (
	"database/sql"
	"strings"
	"testing"
	"tripbook-backend/lib/telemetry"

	_ "modernc.org/sqlite"
)

type DBParams struct {
	Name string
	// if unspecified, it will skip applying a schema
	Schema string
	// if unspecified, it will use `:memory:`
	Path string
}

// SetupDB opens a sqlite database for a test, applies the schema and
// returns the handle plus a cleanup func.
func SetupDB(t testing.TB, params DBParams) (*sql.DB, func()) {
	cleanupTelemetry := telemetry.SetupForTesting(t, params.Name)

	dbpath := ":memory:"
	if params.Path != "" {
		dbpath = params.Path
	}
	sqlite, err := sql.Open("sqlite", dbpath)
	if err != nil {
		t.Fatal(err)
	}
	if params.Schema != "" {
		_, err = sqlite.Exec(params.Schema)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			t.Fatal(err)
		}
	}

	return sqlite, func() {
		sqlite.Close()
		cleanupTelemetry()
	}
}
