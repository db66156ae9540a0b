package internal

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"cursor-harvest/testutil"
)

func newTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.vscdb")
	testutil.CreateStateDB(t, path)
	return path
}

func gzipString(t *testing.T, s string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("Failed to compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close gzip writer: %v", err)
	}
	return buf.String()
}

func TestOpen_MissingDatabase(t *testing.T) {
	r := NewStoreReader()
	defer r.CloseAll()

	err := r.Open(filepath.Join(t.TempDir(), "missing.vscdb"))
	if err == nil {
		t.Fatal("Open() succeeded on a missing file")
	}
	var unavailable *StoreUnavailableError
	if !errors.As(err, &unavailable) {
		t.Errorf("error type = %T, want *StoreUnavailableError", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	r := NewStoreReader()
	defer r.CloseAll()
	path := newTestDB(t)

	if err := r.Open(path); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := r.Open(path); err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	if len(r.conns) != 1 {
		t.Errorf("held %d handles, want 1", len(r.conns))
	}
}

func TestQuery_WithoutOpen(t *testing.T) {
	r := NewStoreReader()
	_, err := r.Query("/nowhere/state.vscdb", "SELECT key FROM ItemTable")
	if err == nil {
		t.Fatal("Query() succeeded without an open handle")
	}
	var qerr *QueryError
	if !errors.As(err, &qerr) {
		t.Errorf("error type = %T, want *QueryError", err)
	}
}

func TestFindCandidateRecords(t *testing.T) {
	r := NewStoreReader()
	defer r.CloseAll()
	path := newTestDB(t)

	testutil.InsertItem(t, path, "workbench.panel.aichat.view.aichat.chatdata", testutil.RichChatValue)
	testutil.InsertItem(t, path, "aiService.prompts", testutil.PromptsListValue)
	testutil.InsertItem(t, path, "workbench.colorTheme", `"dark"`)
	testutil.InsertItem(t, path, "editor.fontSize", "14")
	testutil.InsertItem(t, path, "aiService.generations", "not json at all {{{")

	if err := r.Open(path); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	candidates, err := r.FindCandidateRecords(path, "")
	if err != nil {
		t.Fatalf("FindCandidateRecords() failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2: %+v", len(candidates), candidates)
	}
	keys := map[string]bool{}
	for _, c := range candidates {
		keys[c.Key] = true
	}
	if !keys["workbench.panel.aichat.view.aichat.chatdata"] || !keys["aiService.prompts"] {
		t.Errorf("unexpected candidate keys: %v", keys)
	}
}

func TestFindCandidateRecords_ExtraPattern(t *testing.T) {
	r := NewStoreReader()
	defer r.CloseAll()
	path := newTestDB(t)

	testutil.InsertItem(t, path, "custom.plugin.chatLog", testutil.WorkbenchEntriesValue)
	testutil.InsertItem(t, path, "workbench.panel.aichat.view.aichat.chatdata", testutil.RichChatValue)

	if err := r.Open(path); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	candidates, err := r.FindCandidateRecords(path, "chatLog")
	if err != nil {
		t.Fatalf("FindCandidateRecords() failed: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Key != "custom.plugin.chatLog" {
		t.Errorf("pattern query returned %+v", candidates)
	}
}

func TestFindCandidateRecords_Cache(t *testing.T) {
	r := NewStoreReader()
	defer r.CloseAll()
	path := newTestDB(t)
	testutil.InsertItem(t, path, "aiService.prompts", testutil.PromptsListValue)

	if err := r.Open(path); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	first, err := r.FindCandidateRecords(path, "")
	if err != nil {
		t.Fatalf("FindCandidateRecords() failed: %v", err)
	}

	// A row inserted after the first query stays invisible until the
	// path is reopened.
	testutil.InsertItem(t, path, "workbench.panel.aichat.view.aichat.chatdata", testutil.RichChatValue)
	second, err := r.FindCandidateRecords(path, "")
	if err != nil {
		t.Fatalf("cached FindCandidateRecords() failed: %v", err)
	}
	if len(second) != len(first) {
		t.Errorf("cache miss: got %d records, want %d", len(second), len(first))
	}

	if err := r.Close(path); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := r.Open(path); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	third, err := r.FindCandidateRecords(path, "")
	if err != nil {
		t.Fatalf("post-reopen FindCandidateRecords() failed: %v", err)
	}
	if len(third) != len(first)+1 {
		t.Errorf("reopen did not invalidate cache: got %d records, want %d", len(third), len(first)+1)
	}
}

func TestCacheEviction(t *testing.T) {
	r := NewStoreReader()
	for i := 0; i < maxCandidateCacheEntries+10; i++ {
		r.mu.Lock()
		r.storeCacheLocked(fmt.Sprintf("/db%d|", i), nil)
		r.mu.Unlock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cacheOrder) != maxCandidateCacheEntries {
		t.Errorf("cacheOrder holds %d entries, want %d", len(r.cacheOrder), maxCandidateCacheEntries)
	}
	if len(r.cache) != maxCandidateCacheEntries {
		t.Errorf("cache holds %d entries, want %d", len(r.cache), maxCandidateCacheEntries)
	}
	if _, ok := r.cache["/db0|"]; ok {
		t.Error("oldest entry survived eviction")
	}
	if _, ok := r.cache[fmt.Sprintf("/db%d|", maxCandidateCacheEntries+9)]; !ok {
		t.Error("newest entry was evicted")
	}
}

func TestClose_NotOpen(t *testing.T) {
	r := NewStoreReader()
	if err := r.Close("/never/opened.vscdb"); err != nil {
		t.Errorf("Close() on an unopened path returned %v", err)
	}
}

func TestDecodeValue_PlainJSON(t *testing.T) {
	decoded, err := DecodeValue("k", `{"text": "hello"}`)
	if err != nil {
		t.Fatalf("DecodeValue() failed: %v", err)
	}
	m, ok := decoded.(map[string]interface{})
	if !ok || m["text"] != "hello" {
		t.Errorf("decoded = %#v", decoded)
	}
}

func TestDecodeValue_Gzip(t *testing.T) {
	decoded, err := DecodeValue("k", gzipString(t, `{"text": "compressed"}`))
	if err != nil {
		t.Fatalf("DecodeValue() failed: %v", err)
	}
	m, ok := decoded.(map[string]interface{})
	if !ok || m["text"] != "compressed" {
		t.Errorf("decoded = %#v", decoded)
	}
}

func TestDecodeValue_Base64(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte(`{"text": "wrapped"}`))
	decoded, err := DecodeValue("k", raw)
	if err != nil {
		t.Fatalf("DecodeValue() failed: %v", err)
	}
	m, ok := decoded.(map[string]interface{})
	if !ok || m["text"] != "wrapped" {
		t.Errorf("decoded = %#v", decoded)
	}
}

func TestDecodeValue_Base64Gzip(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte(gzipString(t, `{"text": "both"}`)))
	decoded, err := DecodeValue("k", raw)
	if err != nil {
		t.Fatalf("DecodeValue() failed: %v", err)
	}
	m, ok := decoded.(map[string]interface{})
	if !ok || m["text"] != "both" {
		t.Errorf("decoded = %#v", decoded)
	}
}

func TestDecodeValue_Garbage(t *testing.T) {
	_, err := DecodeValue("k", "definitely not json or base64 {{{")
	if err == nil {
		t.Fatal("DecodeValue() accepted garbage")
	}
	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Errorf("error type = %T, want *DecodeError", err)
	}
	if derr.Key != "k" {
		t.Errorf("DecodeError.Key = %q", derr.Key)
	}
}

func TestMatchesChatPrefix(t *testing.T) {
	tests := map[string]bool{
		"workbench.panel.aichat.view.aichat.chatdata": true,
		"aiService.prompts":          true,
		"composer.composerData":      true,
		"interactive.sessions.saved": true,
		"workbench.colorTheme":       false,
		"editor.fontSize":            false,
	}
	for key, want := range tests {
		if got := matchesChatPrefix(key); got != want {
			t.Errorf("matchesChatPrefix(%q) = %v, want %v", key, got, want)
		}
	}
}
