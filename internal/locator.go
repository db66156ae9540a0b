package internal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
)

// minWorkspaceDBSize is the size floor (10 KB) below which a workspace
// database is assumed to predate any conversation activity and is
// skipped rather than scanned.
const minWorkspaceDBSize = 10 * 1024

// stateDBName is the file name of the per-workspace key-value store.
const stateDBName = "state.vscdb"

// WorkspaceDB identifies one workspace storage database.
type WorkspaceDB struct {
	ID         string // workspace directory name, typically a 32-hex hash
	DBPath     string
	FolderPath string // resolved from workspace.json when present
}

// WorkspaceLocator enumerates candidate databases across the per-OS
// storage roots. Filesystem errors while listing degrade to whatever
// was collected before the error; they never propagate.
type WorkspaceLocator struct {
	// BaseOverride points at a custom Cursor User directory. Empty
	// means detect per OS.
	BaseOverride string
}

// NewWorkspaceLocator creates a new WorkspaceLocator
func NewWorkspaceLocator(baseOverride string) *WorkspaceLocator {
	return &WorkspaceLocator{BaseOverride: baseOverride}
}

// StorageRoot returns the first existing path among the ordered
// per-OS candidates. An empty result is not an error, just "nothing
// to scan".
func (l *WorkspaceLocator) StorageRoot() string {
	for _, base := range l.baseCandidates() {
		root := filepath.Join(base, "workspaceStorage")
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			return root
		}
	}
	return ""
}

// baseCandidates returns the ordered Cursor User directory candidates
// for the current OS.
func (l *WorkspaceLocator) baseCandidates() []string {
	if l.BaseOverride != "" {
		return []string{l.BaseOverride}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		LogWarn("Failed to resolve home directory: %v", err)
		return nil
	}

	var candidates []string
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			candidates = append(candidates, filepath.Join(appData, "Cursor", "User"))
		}
		candidates = append(candidates, filepath.Join(home, "AppData", "Roaming", "Cursor", "User"))
	case "darwin":
		candidates = append(candidates, filepath.Join(home, "Library", "Application Support", "Cursor", "User"))
	default:
		candidates = append(candidates, filepath.Join(home, ".config", "Cursor", "User"))
	}
	return candidates
}

// ListWorkspaceDatabases returns one entry per workspace subdirectory
// whose state.vscdb exists and clears the size floor.
func (l *WorkspaceLocator) ListWorkspaceDatabases() []WorkspaceDB {
	root := l.StorageRoot()
	if root == "" {
		LogDebug("No workspace storage root found")
		return nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		LogWarn("Failed to list workspace storage %s: %v", root, err)
		return nil
	}

	var databases []WorkspaceDB
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dbPath := filepath.Join(root, entry.Name(), stateDBName)
		info, err := os.Stat(dbPath)
		if err != nil {
			continue
		}
		if info.Size() <= minWorkspaceDBSize {
			LogDebug("Skipping %s: %d bytes is below the size floor", dbPath, info.Size())
			continue
		}
		databases = append(databases, WorkspaceDB{
			ID:         entry.Name(),
			DBPath:     dbPath,
			FolderPath: readWorkspaceFolder(filepath.Join(root, entry.Name())),
		})
	}
	return databases
}

// GlobalStorageDatabase returns the shared globalStorage database when
// present. Newer IDE versions keep chat data there rather than in the
// per-workspace stores.
func (l *WorkspaceLocator) GlobalStorageDatabase() (string, bool) {
	for _, base := range l.baseCandidates() {
		dbPath := filepath.Join(base, "globalStorage", stateDBName)
		if info, err := os.Stat(dbPath); err == nil && info.Size() > minWorkspaceDBSize {
			return dbPath, true
		}
	}
	return "", false
}

// readWorkspaceFolder resolves the workspace's project folder from its
// workspace.json, when one exists.
func readWorkspaceFolder(workspaceDir string) string {
	data, err := os.ReadFile(filepath.Join(workspaceDir, "workspace.json"))
	if err != nil {
		return ""
	}
	var meta struct {
		Folder string `json:"folder"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return ""
	}
	return fileURIToPath(meta.Folder)
}
