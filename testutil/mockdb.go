package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// CreateStateDB creates a state.vscdb-style SQLite database at path
// with an empty ItemTable.
func CreateStateDB(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to create database %s: %v", path, err)
	}
	defer db.Close()

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS ItemTable (
		key TEXT PRIMARY KEY,
		value TEXT
	)`
	if _, err := db.Exec(createTableSQL); err != nil {
		t.Fatalf("Failed to create ItemTable: %v", err)
	}
}

// InsertItem inserts one key/value row into a state database.
func InsertItem(t *testing.T, path, key, value string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open database %s: %v", path, err)
	}
	defer db.Close()

	if _, err := db.Exec("INSERT OR REPLACE INTO ItemTable (key, value) VALUES (?, ?)", key, value); err != nil {
		t.Fatalf("Failed to insert %s: %v", key, err)
	}
}

// PadDB grows the database file past the workspace size floor by
// inserting filler rows.
func PadDB(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open database %s: %v", path, err)
	}
	defer db.Close()

	filler := make([]byte, 512)
	for i := range filler {
		filler[i] = 'x'
	}
	for i := 0; i < 40; i++ {
		if _, err := db.Exec("INSERT OR REPLACE INTO ItemTable (key, value) VALUES (?, ?)",
			"filler."+string(rune('a'+i%26))+string(rune('a'+i/26)), string(filler)); err != nil {
			t.Fatalf("Failed to insert filler row: %v", err)
		}
	}
}

// CreateWorkspaceStorage builds a temp Cursor User directory with one
// workspace per entry in workspaces: a workspaceStorage/<id> directory
// holding a padded state.vscdb and optional workspace.json folder.
// Returns the User directory path.
func CreateWorkspaceStorage(t *testing.T, workspaces map[string]string) string {
	t.Helper()
	userDir := t.TempDir()

	for id, folder := range workspaces {
		wsDir := filepath.Join(userDir, "workspaceStorage", id)
		if err := os.MkdirAll(wsDir, 0755); err != nil {
			t.Fatalf("Failed to create workspace dir: %v", err)
		}
		dbPath := filepath.Join(wsDir, "state.vscdb")
		CreateStateDB(t, dbPath)
		PadDB(t, dbPath)

		if folder != "" {
			meta := `{"folder": "` + folder + `"}`
			if err := os.WriteFile(filepath.Join(wsDir, "workspace.json"), []byte(meta), 0644); err != nil {
				t.Fatalf("Failed to write workspace.json: %v", err)
			}
		}
	}
	return userDir
}

// WorkspaceDBPath returns the state database path for a workspace id
// inside a User directory built by CreateWorkspaceStorage.
func WorkspaceDBPath(userDir, id string) string {
	return filepath.Join(userDir, "workspaceStorage", id, "state.vscdb")
}
