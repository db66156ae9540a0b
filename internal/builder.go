package internal

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// unknownProjectName is the terminal fallback of the project name
// resolution chain.
const unknownProjectName = "Unknown Project"

// systemFolderNames are parent directory names that carry no project
// meaning; the better-folder-name heuristic refuses to use them.
var systemFolderNames = map[string]bool{
	"workspacestorage":    true,
	"globalstorage":       true,
	"user":                true,
	"cursor":              true,
	"code":                true,
	"appdata":             true,
	"roaming":             true,
	"application support": true,
	".config":             true,
	"home":                true,
	"users":               true,
	"tmp":                 true,
}

// ChatSource carries the source metadata the builder needs alongside
// the normalized messages.
type ChatSource struct {
	Key           string
	WorkspaceID   string
	WorkspaceName string // display name recovered from the store, may be empty
	FolderPath    string // workspace folder from workspace.json, may be empty
	DatabasePath  string
}

// AggregateBuilder assembles canonical Project/Chat/Dialogue
// aggregates from normalized messages. Projects are created lazily on
// first use of a resolved name and reused for every later chat with
// the same name.
type AggregateBuilder struct {
	projects     map[string]*Project // keyed by project id
	projectOrder []string
	chats        []*Chat
	suppressed   map[string]bool // workspaceID|key pairs marked as duplicates
}

// NewAggregateBuilder creates a new AggregateBuilder
func NewAggregateBuilder() *AggregateBuilder {
	return &AggregateBuilder{
		projects:   make(map[string]*Project),
		suppressed: make(map[string]bool),
	}
}

// MarkCompanionPromptsProcessed records that the rich-chat key for a
// workspace has been handled, so its companion prompts-only keys must
// be skipped. A conversation must not be emitted twice, once richly
// and once as a bare prompt list.
func (b *AggregateBuilder) MarkCompanionPromptsProcessed(workspaceID, richKey string) {
	b.suppressed[workspaceID+"|"+richKey+".prompts"] = true
	b.suppressed[workspaceID+"|aiService.prompts"] = true
}

// IsSuppressed reports whether a key was marked as a duplicate of an
// already-processed rich chat for the workspace.
func (b *AggregateBuilder) IsSuppressed(workspaceID, key string) bool {
	return b.suppressed[workspaceID+"|"+key]
}

// BuildChat creates a Chat with its Dialogues from normalized
// messages and attaches it to the resolved Project. Returns nil when
// there are no messages; such a chat never surfaces.
func (b *AggregateBuilder) BuildChat(source ChatSource, raw map[string]interface{}, messages []CanonicalMessage) *Chat {
	if len(messages) == 0 {
		return nil
	}

	project := b.resolveProject(source, raw)

	chat := &Chat{
		ID:        chatIDFromRaw(raw),
		ProjectID: project.ID,
		Tags:      []string{},
		Metadata: ChatMetadata{
			WorkspaceID:  source.WorkspaceID,
			SourceKey:    source.Key,
			DatabasePath: source.DatabasePath,
		},
	}

	created := chatCreatedAt(raw, messages)
	chat.Timestamp = created
	chat.Title = chatTitleFromRaw(raw)
	if chat.Title == "" {
		chat.Title = "Chat from " + created.Format("Jan 2, 2006 15:04")
	}

	for _, msg := range messages {
		chat.Dialogues = append(chat.Dialogues, Dialogue{
			ID:        uuid.NewString(),
			ChatID:    chat.ID,
			Content:   msg.Content,
			IsUser:    msg.Role == RoleUser,
			Timestamp: time.UnixMilli(msg.TimestampMillis),
			Tags:      []string{},
		})
	}

	project.Chats = append(project.Chats, chat)
	b.chats = append(b.chats, chat)
	return chat
}

// Projects returns the accumulated projects in creation order.
func (b *AggregateBuilder) Projects() []*Project {
	result := make([]*Project, 0, len(b.projectOrder))
	for _, id := range b.projectOrder {
		result = append(result, b.projects[id])
	}
	return result
}

// Chats returns the accumulated chat list.
func (b *AggregateBuilder) Chats() []*Chat {
	return b.chats
}

// resolveProject derives the project for a chat source, creating it
// lazily on first use of the resolved name.
func (b *AggregateBuilder) resolveProject(source ChatSource, raw map[string]interface{}) *Project {
	name := resolveProjectName(source, raw)
	id := ProjectIDFromName(name)

	if project, ok := b.projects[id]; ok {
		return project
	}
	project := &Project{
		ID:       id,
		Name:     name,
		Created:  time.Now(),
		IsCustom: false,
		Tags:     []string{},
	}
	b.projects[id] = project
	b.projectOrder = append(b.projectOrder, id)
	return project
}

// resolveProjectName walks the fallback chain: explicit workspaceName
// on the chat data, the store display name, the folder heuristic, the
// raw workspace tag, then the literal unknown name.
func resolveProjectName(source ChatSource, raw map[string]interface{}) string {
	if raw != nil {
		if name, ok := raw["workspaceName"].(string); ok && strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
	}
	if source.WorkspaceName != "" {
		return source.WorkspaceName
	}
	if source.FolderPath != "" {
		if name := betterFolderName(source.FolderPath); name != "" {
			return name
		}
	}
	if source.WorkspaceID != "" {
		if name := betterFolderName(source.WorkspaceID); name != "" {
			return name
		}
		return source.WorkspaceID
	}
	return unknownProjectName
}

// betterFolderName names a project after its directory. When the
// directory name is a 32-hex storage hash it walks up to the parent,
// unless the parent is itself a hash or a known system folder, in
// which case it falls back to a truncated-hash label. The heuristic
// guesses at one host application's storage layout; preserve its
// behavior, do not generalize it.
func betterFolderName(path string) string {
	base := filepath.Base(path)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return ""
	}
	if !isHex32(base) {
		return base
	}

	parent := filepath.Base(filepath.Dir(path))
	if parent != "" && parent != "." && parent != string(filepath.Separator) &&
		!isHex32(parent) && !systemFolderNames[strings.ToLower(parent)] {
		return parent
	}
	return "Workspace " + base[:8]
}

// isHex32 reports whether s is a 32-character hex string, the storage
// hash convention for workspace directories.
func isHex32(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F') {
			return false
		}
	}
	return true
}

// chatIDFromRaw reuses the identifier the source shape carries, or
// generates a fresh one.
func chatIDFromRaw(raw map[string]interface{}) string {
	if raw != nil {
		for _, key := range []string{"composerId", "id", "chatId"} {
			if id, ok := raw[key].(string); ok && id != "" {
				return id
			}
		}
	}
	return uuid.NewString()
}

// chatTitleFromRaw reuses the title the source shape carries.
func chatTitleFromRaw(raw map[string]interface{}) string {
	if raw == nil {
		return ""
	}
	for _, key := range []string{"title", "name"} {
		if title, ok := raw[key].(string); ok && strings.TrimSpace(title) != "" {
			return strings.TrimSpace(title)
		}
	}
	return ""
}

// chatCreatedAt prefers the shape's createdAt, then the first message
// timestamp, then now.
func chatCreatedAt(raw map[string]interface{}, messages []CanonicalMessage) time.Time {
	if raw != nil {
		if ts := toInt64(raw["createdAt"]); ts > 0 {
			return time.UnixMilli(ts)
		}
	}
	if len(messages) > 0 && messages[0].TimestampMillis > 0 {
		return time.UnixMilli(messages[0].TimestampMillis)
	}
	return time.Now()
}

// fileURIToPath converts a file:// URI to a filesystem path, returning
// the input unchanged when it is not a file URI.
func fileURIToPath(s string) string {
	if !strings.HasPrefix(s, "file://") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil {
		return strings.TrimPrefix(s, "file://")
	}
	path, err := url.PathUnescape(u.Path)
	if err != nil {
		return u.Path
	}
	return path
}
