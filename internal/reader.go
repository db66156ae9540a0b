package internal

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// chatKeyPrefixes is the allow-list of known historical chat-storage
// key prefixes. Rows under any other key are ignored unless the caller
// supplies an explicit pattern.
var chatKeyPrefixes = []string{
	"workbench.panel.aichat",
	"aiService.prompts",
	"aiService.generations",
	"composer.composerData",
	"interactive.sessions",
}

// richChatKeyPrefix is the key convention under which the IDE stores
// the rich (assistant-inclusive) representation of a conversation.
const richChatKeyPrefix = "workbench.panel.aichat"

// maxCandidateCacheEntries bounds the per-(path, pattern) result
// cache; oldest entries are evicted first. Tuned for typical workspace
// counts, not load-bearing.
const maxCandidateCacheEntries = 100

// CandidateRecord is a store row that survived transport decoding and
// the Tier-1 structural pre-check.
type CandidateRecord struct {
	Key   string
	Value interface{}
}

// StoreReader owns every open database handle and the candidate query
// cache. It is the only component that touches the filesystem or the
// database engine directly; everything downstream receives decoded
// in-memory values.
type StoreReader struct {
	mu         sync.Mutex
	conns      map[string]*sql.DB
	cache      map[string][]CandidateRecord
	cacheOrder []string
}

// NewStoreReader creates a new StoreReader
func NewStoreReader() *StoreReader {
	return &StoreReader{
		conns: make(map[string]*sql.DB),
		cache: make(map[string][]CandidateRecord),
	}
}

// Open opens the database at path read-only. Idempotent per path: an
// already-open handle is reused rather than reopened. Opening (or
// reopening) a path invalidates that path's cached results.
func (r *StoreReader) Open(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[path]; ok {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		return &StoreUnavailableError{Path: path, Err: err}
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return &StoreUnavailableError{Path: path, Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return &StoreUnavailableError{Path: path, Err: err}
	}

	r.conns[path] = db
	r.invalidatePathLocked(path)
	return nil
}

// Query executes a read query against the open handle for path and
// returns decoded rows as column/value mappings. Callers must not
// assume partial results on failure.
func (r *StoreReader) Query(path, query string, args ...interface{}) ([]map[string]interface{}, error) {
	r.mu.Lock()
	db, ok := r.conns[path]
	r.mu.Unlock()
	if !ok {
		return nil, &QueryError{Path: path, Query: query, Err: fmt.Errorf("no open handle")}
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, &QueryError{Path: path, Query: query, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Path: path, Query: query, Err: err}
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, &QueryError{Path: path, Query: query, Err: err}
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Path: path, Query: query, Err: err}
	}
	return results, nil
}

// FindCandidateRecords returns the decoded rows of path whose key
// matches the chat-storage allow-list, or the caller-supplied
// substring pattern when one is given. Rows that fail transport
// decoding or the Tier-1 pre-check are silently dropped; many store
// rows are not JSON at all and that is expected.
func (r *StoreReader) FindCandidateRecords(path, extraPattern string) ([]CandidateRecord, error) {
	cacheKey := path + "|" + extraPattern
	r.mu.Lock()
	if cached, ok := r.cache[cacheKey]; ok {
		r.mu.Unlock()
		LogDebug("Candidate cache hit for %s", cacheKey)
		return cached, nil
	}
	r.mu.Unlock()

	var rows []map[string]interface{}
	var err error
	if extraPattern != "" {
		rows, err = r.Query(path,
			"SELECT key, value FROM ItemTable WHERE key LIKE ? AND value IS NOT NULL",
			"%"+extraPattern+"%")
	} else {
		rows, err = r.Query(path,
			"SELECT key, value FROM ItemTable WHERE value IS NOT NULL")
	}
	if err != nil {
		return nil, err
	}

	var candidates []CandidateRecord
	for _, row := range rows {
		key, _ := row["key"].(string)
		raw, _ := row["value"].(string)
		if key == "" || raw == "" {
			continue
		}
		if extraPattern == "" && !matchesChatPrefix(key) {
			continue
		}

		decoded, err := DecodeValue(key, raw)
		if err != nil {
			LogDebug("Dropping record %s: %v", key, err)
			continue
		}
		if !IsValidChatData(decoded) {
			continue
		}
		candidates = append(candidates, CandidateRecord{Key: key, Value: decoded})
	}

	r.mu.Lock()
	r.storeCacheLocked(cacheKey, candidates)
	r.mu.Unlock()
	return candidates, nil
}

// Close releases the handle for path. Safe to call when nothing is
// open for it.
func (r *StoreReader) Close(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	db, ok := r.conns[path]
	if !ok {
		return nil
	}
	delete(r.conns, path)
	return db.Close()
}

// CloseAll releases every pooled handle and clears all caches. Used
// for forced full-refresh semantics.
func (r *StoreReader) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for path, db := range r.conns {
		if err := db.Close(); err != nil {
			LogWarn("Failed to close %s: %v", path, err)
		}
		delete(r.conns, path)
	}
	r.cache = make(map[string][]CandidateRecord)
	r.cacheOrder = nil
}

// storeCacheLocked inserts a result set, evicting the oldest entry
// when the bound is exceeded. Caller holds r.mu.
func (r *StoreReader) storeCacheLocked(cacheKey string, records []CandidateRecord) {
	if _, exists := r.cache[cacheKey]; !exists {
		r.cacheOrder = append(r.cacheOrder, cacheKey)
	}
	r.cache[cacheKey] = records
	for len(r.cacheOrder) > maxCandidateCacheEntries {
		oldest := r.cacheOrder[0]
		r.cacheOrder = r.cacheOrder[1:]
		delete(r.cache, oldest)
	}
}

// invalidatePathLocked drops every cached result set for path. Caller
// holds r.mu.
func (r *StoreReader) invalidatePathLocked(path string) {
	var kept []string
	for _, cacheKey := range r.cacheOrder {
		if strings.HasPrefix(cacheKey, path+"|") {
			delete(r.cache, cacheKey)
			continue
		}
		kept = append(kept, cacheKey)
	}
	r.cacheOrder = kept
}

func matchesChatPrefix(key string) bool {
	for _, prefix := range chatKeyPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// DecodeValue reverses any transport encoding on a raw stored value
// and JSON-decodes the result. Values are plain JSON text, gzip
// streams, or base64-wrapped variants of either.
func DecodeValue(key, raw string) (interface{}, error) {
	data := []byte(raw)

	if isGzip(data) {
		inflated, err := gunzip(data)
		if err != nil {
			return nil, &DecodeError{Key: key, Err: err}
		}
		data = inflated
	} else if decoded, err := decodeJSON(data); err == nil {
		return decoded, nil
	} else if b64, b64Err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw)); b64Err == nil {
		if isGzip(b64) {
			inflated, gzErr := gunzip(b64)
			if gzErr != nil {
				return nil, &DecodeError{Key: key, Err: gzErr}
			}
			data = inflated
		} else {
			data = b64
		}
	} else {
		return nil, &DecodeError{Key: key, Err: err}
	}

	decoded, err := decodeJSON(data)
	if err != nil {
		return nil, &DecodeError{Key: key, Err: err}
	}
	return decoded, nil
}

func decodeJSON(data []byte) (interface{}, error) {
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func isGzip(data []byte) bool {
	return len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
