package internal

import (
	"path/filepath"
	"testing"
	"time"
)

func sampleMessages() []CanonicalMessage {
	return []CanonicalMessage{
		{Role: RoleUser, Content: "how do I fix the scanner?", TimestampMillis: 1700000000000},
		{Role: RoleAssistant, Content: "Buffer the reads.", TimestampMillis: 1700000060000},
	}
}

func TestBuildChat_Basic(t *testing.T) {
	b := NewAggregateBuilder()
	source := ChatSource{
		Key:          "workbench.panel.aichat.view.aichat.chatdata",
		WorkspaceID:  "ws1",
		FolderPath:   "/home/alice/projects/webapp",
		DatabasePath: "/tmp/state.vscdb",
	}
	raw := map[string]interface{}{
		"composerId": "chat-1",
		"name":       "Fix the scanner",
		"createdAt":  float64(1700000000000),
	}

	chat := b.BuildChat(source, raw, sampleMessages())
	if chat == nil {
		t.Fatal("BuildChat() returned nil for a non-empty chat")
	}
	if chat.ID != "chat-1" {
		t.Errorf("ID = %q, want the shape's composerId", chat.ID)
	}
	if chat.Title != "Fix the scanner" {
		t.Errorf("Title = %q", chat.Title)
	}
	if !chat.Timestamp.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("Timestamp = %v", chat.Timestamp)
	}
	if len(chat.Dialogues) != 2 {
		t.Fatalf("got %d dialogues, want 2", len(chat.Dialogues))
	}
	if !chat.Dialogues[0].IsUser || chat.Dialogues[1].IsUser {
		t.Error("Dialogue IsUser flags do not match message roles")
	}
	if chat.Dialogues[0].ChatID != chat.ID {
		t.Errorf("Dialogue.ChatID = %q, want %q", chat.Dialogues[0].ChatID, chat.ID)
	}
	if chat.Metadata.SourceKey != source.Key || chat.Metadata.WorkspaceID != "ws1" {
		t.Errorf("Metadata = %+v", chat.Metadata)
	}

	projects := b.Projects()
	if len(projects) != 1 {
		t.Fatalf("got %d projects, want 1", len(projects))
	}
	if projects[0].Name != "webapp" {
		t.Errorf("project Name = %q, want folder basename", projects[0].Name)
	}
	if projects[0].ID != "original-webapp" {
		t.Errorf("project ID = %q", projects[0].ID)
	}
	if chat.ProjectID != projects[0].ID {
		t.Errorf("chat.ProjectID = %q", chat.ProjectID)
	}
}

func TestBuildChat_EmptyMessages(t *testing.T) {
	b := NewAggregateBuilder()
	if chat := b.BuildChat(ChatSource{WorkspaceID: "ws1"}, nil, nil); chat != nil {
		t.Error("BuildChat() created a chat with no dialogues")
	}
	if len(b.Projects()) != 0 {
		t.Error("empty chat still created a project")
	}
}

func TestBuildChat_ProjectReuse(t *testing.T) {
	b := NewAggregateBuilder()
	source := ChatSource{WorkspaceID: "ws1", FolderPath: "/home/alice/projects/webapp"}

	b.BuildChat(source, map[string]interface{}{"id": "a"}, sampleMessages())
	b.BuildChat(source, map[string]interface{}{"id": "b"}, sampleMessages())

	projects := b.Projects()
	if len(projects) != 1 {
		t.Fatalf("got %d projects, want 1 shared project", len(projects))
	}
	if len(projects[0].Chats) != 2 {
		t.Errorf("project holds %d chats, want 2", len(projects[0].Chats))
	}
	if len(b.Chats()) != 2 {
		t.Errorf("Chats() = %d, want 2", len(b.Chats()))
	}
}

func TestBuildChat_GeneratedDefaults(t *testing.T) {
	b := NewAggregateBuilder()
	messages := []CanonicalMessage{{Role: RoleUser, Content: "hello", TimestampMillis: 1700000000000}}

	chat := b.BuildChat(ChatSource{WorkspaceID: "ws1"}, map[string]interface{}{}, messages)
	if chat == nil {
		t.Fatal("BuildChat() returned nil")
	}
	if chat.ID == "" {
		t.Error("no generated chat id")
	}
	if chat.Title == "" {
		t.Error("no generated title")
	}
	// createdAt missing: fall back to the first message timestamp.
	if !chat.Timestamp.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("Timestamp = %v, want first message time", chat.Timestamp)
	}
	if chat.Dialogues[0].ID == "" {
		t.Error("no generated dialogue id")
	}
}

func TestResolveProjectName(t *testing.T) {
	hash := "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"
	tests := []struct {
		name   string
		source ChatSource
		raw    map[string]interface{}
		want   string
	}{
		{
			"explicit workspaceName wins",
			ChatSource{WorkspaceName: "store-name", FolderPath: "/x/folder"},
			map[string]interface{}{"workspaceName": "Explicit"},
			"Explicit",
		},
		{
			"store display name",
			ChatSource{WorkspaceName: "webapp", FolderPath: "/x/other"},
			nil,
			"webapp",
		},
		{
			"folder basename",
			ChatSource{FolderPath: "/home/alice/projects/webapp"},
			nil,
			"webapp",
		},
		{
			"hash folder walks to parent",
			ChatSource{FolderPath: filepath.Join("/home/alice/projects/webapp", hash)},
			nil,
			"webapp",
		},
		{
			"hash under system folder truncates",
			ChatSource{FolderPath: filepath.Join("/data/workspaceStorage", hash)},
			nil,
			"Workspace " + hash[:8],
		},
		{
			"workspace id fallback",
			ChatSource{WorkspaceID: "my-workspace"},
			nil,
			"my-workspace",
		},
		{
			"hash workspace id truncates",
			ChatSource{WorkspaceID: hash},
			nil,
			"Workspace " + hash[:8],
		},
		{
			"nothing known",
			ChatSource{},
			nil,
			unknownProjectName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveProjectName(tt.source, tt.raw); got != tt.want {
				t.Errorf("resolveProjectName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProjectIDFromName(t *testing.T) {
	tests := map[string]string{
		"My Web App":      "original-my-web-app",
		"webapp":          "original-webapp",
		"  Spaced  Out  ": "original-spaced-out",
	}
	for name, want := range tests {
		if got := ProjectIDFromName(name); got != want {
			t.Errorf("ProjectIDFromName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestMarkCompanionPromptsProcessed(t *testing.T) {
	b := NewAggregateBuilder()
	richKey := "workbench.panel.aichat.view.aichat.chatdata"
	b.MarkCompanionPromptsProcessed("ws1", richKey)

	if !b.IsSuppressed("ws1", richKey+".prompts") {
		t.Error("companion .prompts key not suppressed")
	}
	if !b.IsSuppressed("ws1", "aiService.prompts") {
		t.Error("aiService.prompts not suppressed")
	}
	if b.IsSuppressed("ws2", "aiService.prompts") {
		t.Error("suppression leaked across workspaces")
	}
	if b.IsSuppressed("ws1", richKey) {
		t.Error("the rich key itself must stay processable")
	}
}

func TestIsHex32(t *testing.T) {
	tests := map[string]bool{
		"a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6": true,
		"A1B2C3D4E5F6A7B8C9D0E1F2A3B4C5D6": true,
		"a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5":   false,
		"g1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6": false,
		"webapp":                           false,
	}
	for s, want := range tests {
		if got := isHex32(s); got != want {
			t.Errorf("isHex32(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestFileURIToPath(t *testing.T) {
	tests := map[string]string{
		"file:///home/alice/projects/webapp": "/home/alice/projects/webapp",
		"file:///home/alice/my%20app":        "/home/alice/my app",
		"/plain/path":                        "/plain/path",
	}
	for uri, want := range tests {
		if got := fileURIToPath(uri); got != want {
			t.Errorf("fileURIToPath(%q) = %q, want %q", uri, got, want)
		}
	}
}
