package internal

import (
	"strings"
	"time"
)

// Message roles all shape-specific parsers converge to.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// StorageRecord is one raw row from an ItemTable store. It is never
// mutated, only consumed.
type StorageRecord struct {
	Key   string
	Value string
}

// CanonicalMessage is the single normalized message representation.
// Content is always non-empty after trimming; the normalizer drops
// empty messages before they reach this type.
type CanonicalMessage struct {
	Role            string
	Content         string
	TimestampMillis int64
}

// Dialogue is one turn in a chat, owned exclusively by its Chat.
type Dialogue struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []string  `json:"tags"`
}

// ChatMetadata records where a chat was recovered from.
type ChatMetadata struct {
	WorkspaceID  string `json:"workspaceId,omitempty"`
	SourceKey    string `json:"sourceKey,omitempty"`
	DatabasePath string `json:"databasePath,omitempty"`
}

// Chat is one recovered conversation. A chat with zero dialogues is
// discarded and never surfaces to its project.
type Chat struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Timestamp time.Time    `json:"timestamp"`
	ProjectID string       `json:"projectId"`
	Dialogues []Dialogue   `json:"dialogues"`
	Tags      []string     `json:"tags"`
	Metadata  ChatMetadata `json:"metadata"`
}

// Project groups the chats recovered under one resolved workspace name.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Created     time.Time `json:"created"`
	IsCustom    bool      `json:"isCustom"`
	Chats       []*Chat   `json:"chats"`
	Tags        []string  `json:"tags"`
}

// ProjectIDFromName derives the deterministic project identity slug
// from a resolved project name. Repeated runs over the same source
// data converge on the same id without external bookkeeping.
func ProjectIDFromName(name string) string {
	return "original-" + strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
