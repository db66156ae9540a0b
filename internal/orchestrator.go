package internal

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// workspaceNameKeys are the metadata keys probed, in priority order,
// when recovering a workspace display name from a store.
var workspaceNameKeys = []string{
	"workspace.rootUri",
	"workspace.name",
	"workbench.explorer.title",
	"window.lastActiveWindow",
}

// RunStats counts what one pipeline pass saw. Diagnostics only, never
// control flow.
type RunStats struct {
	DatabasesScanned int `json:"databasesScanned"`
	TotalRecords     int `json:"totalRecords"`
	ChatRecords      int `json:"chatRecords"`
	SystemRecords    int `json:"systemRecords"`
}

// Result is the terminal output of a pipeline run.
type Result struct {
	Projects []*Project `json:"projects"`
	Chats    []*Chat    `json:"chats"`
	Stats    RunStats   `json:"stats"`
}

// Pipeline drives discovery, classification, normalization and
// aggregate building across every workspace database, one database at
// a time. At most one store handle is held open by a run.
type Pipeline struct {
	Reader     *StoreReader
	Locator    *WorkspaceLocator
	Normalizer *Normalizer
}

// NewPipeline wires a pipeline from its components. Plain values in,
// no process-wide state.
func NewPipeline(reader *StoreReader, locator *WorkspaceLocator) *Pipeline {
	return &Pipeline{
		Reader:     reader,
		Locator:    locator,
		Normalizer: NewNormalizer(),
	}
}

// Run executes one full pass: discover databases, then per database
// open, fetch, classify, normalize, build, close. One record's
// failure never aborts the remaining records; one database's failure
// never aborts the remaining databases. ctx is checked between
// databases only, so completed per-database results stay valid on
// early return.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	builder := NewAggregateBuilder()
	stats := RunStats{}

	databases := p.Locator.ListWorkspaceDatabases()
	if globalDB, ok := p.Locator.GlobalStorageDatabase(); ok {
		databases = append(databases, WorkspaceDB{ID: "global", DBPath: globalDB})
	}
	LogInfo("Discovered %d candidate database(s)", len(databases))

	for _, ws := range databases {
		if err := ctx.Err(); err != nil {
			LogWarn("Scan cancelled after %d database(s)", stats.DatabasesScanned)
			break
		}
		p.processDatabase(ws, builder, &stats)
	}

	return &Result{
		Projects: builder.Projects(),
		Chats:    builder.Chats(),
		Stats:    stats,
	}, nil
}

// processDatabase runs the per-database stages. The store handle is
// always released, including on a panic inside the record loop.
func (p *Pipeline) processDatabase(ws WorkspaceDB, builder *AggregateBuilder, stats *RunStats) {
	if err := p.Reader.Open(ws.DBPath); err != nil {
		// Locked or corrupt for this pass; no retry.
		LogWarn("Skipping %s: %v", ws.DBPath, err)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			LogError("Recovered while processing %s: %v", ws.DBPath, r)
		}
		if err := p.Reader.Close(ws.DBPath); err != nil {
			LogWarn("Failed to close %s: %v", ws.DBPath, err)
		}
	}()

	stats.DatabasesScanned++

	records, err := p.Reader.FindCandidateRecords(ws.DBPath, "")
	if err != nil {
		LogWarn("Fetch failed for %s: %v", ws.DBPath, err)
		return
	}

	displayName := p.ExtractWorkspaceRealName(ws.DBPath)
	source := ChatSource{
		WorkspaceID:   ws.ID,
		WorkspaceName: displayName,
		FolderPath:    ws.FolderPath,
		DatabasePath:  ws.DBPath,
	}

	// Rich-chat keys go first so their companion prompts-only keys are
	// already suppressed when the loop reaches them.
	sort.SliceStable(records, func(i, j int) bool {
		ri := strings.HasPrefix(records[i].Key, richChatKeyPrefix)
		rj := strings.HasPrefix(records[j].Key, richChatKeyPrefix)
		return ri && !rj
	})

	for _, record := range records {
		stats.TotalRecords++
		if builder.IsSuppressed(ws.ID, record.Key) {
			LogDebug("Skipping %s: duplicate of a rich chat", record.Key)
			stats.SystemRecords++
			continue
		}
		if p.processRecord(record, source, builder) {
			stats.ChatRecords++
		} else {
			stats.SystemRecords++
		}
	}
}

// processRecord classifies, normalizes and builds one record. Returns
// true when the record produced a chat.
func (p *Pipeline) processRecord(record CandidateRecord, source ChatSource, builder *AggregateBuilder) bool {
	classification := Classify(record.Value)
	if classification == Unrecognized {
		return false
	}

	messages := p.Normalizer.Normalize(record.Value)
	if len(messages) == 0 {
		// Passed classification but yielded nothing usable; the
		// would-be chat is discarded, not reported as failure.
		LogDebug("Record %s (%s) normalized to zero messages", record.Key, classification)
		return false
	}

	recordSource := source
	recordSource.Key = record.Key
	raw, _ := record.Value.(map[string]interface{})

	chat := builder.BuildChat(recordSource, raw, messages)
	if chat == nil {
		return false
	}

	if classification == RichChat || strings.HasPrefix(record.Key, richChatKeyPrefix) {
		builder.MarkCompanionPromptsProcessed(source.WorkspaceID, record.Key)
	}
	LogDebug("Built chat %s (%d dialogue(s)) from %s", chat.ID, len(chat.Dialogues), record.Key)
	return true
}

// ExtractWorkspaceRealName probes the known metadata keys of an open
// store for a usable workspace display name. file:// URIs reduce to
// their trailing path segment; values that are themselves storage
// hashes are rejected.
func (p *Pipeline) ExtractWorkspaceRealName(dbPath string) string {
	for _, key := range workspaceNameKeys {
		rows, err := p.Reader.Query(dbPath,
			"SELECT value FROM ItemTable WHERE key = ?", key)
		if err != nil || len(rows) == 0 {
			continue
		}
		raw, _ := rows[0]["value"].(string)
		if raw == "" {
			continue
		}
		if name := workspaceNameFromValue(raw); name != "" {
			return name
		}
	}
	return ""
}

// workspaceNameFromValue pulls a display name out of one stored
// metadata value, which may be a bare string, a JSON string, or an
// object with uri/folder/name fields.
func workspaceNameFromValue(raw string) string {
	candidate := strings.TrimSpace(raw)

	if gjson.Valid(candidate) {
		parsed := gjson.Parse(candidate)
		switch parsed.Type {
		case gjson.String:
			candidate = parsed.Str
		case gjson.JSON:
			for _, field := range []string{"uri", "rootUri", "folder", "configPath", "name"} {
				if v := parsed.Get(field); v.Type == gjson.String && v.Str != "" {
					candidate = v.Str
					break
				}
			}
			if gjson.Valid(candidate) && gjson.Parse(candidate).IsObject() {
				return ""
			}
		}
	}

	if strings.HasPrefix(candidate, "file://") {
		candidate = fileURIToPath(candidate)
	}
	candidate = strings.TrimRight(candidate, "/")
	if candidate == "" {
		return ""
	}
	name := path.Base(candidate)
	if name == "." || name == "/" || isHex32(name) {
		// A hash is not a usable display name.
		return ""
	}
	return name
}
