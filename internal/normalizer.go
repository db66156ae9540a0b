package internal

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Normalizer converts any classified value into an ordered list of
// canonical messages.
type Normalizer struct{}

// NewNormalizer creates a new Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize dispatches on the known chat-like shapes, first match
// wins. Shapes are not mutually exclusive; the order encodes
// "richest wins".
func (n *Normalizer) Normalize(value interface{}) []CanonicalMessage {
	switch v := value.(type) {
	case map[string]interface{}:
		return n.normalizeObject(v)
	case []interface{}:
		return n.flattenMessageArray(v)
	default:
		return nil
	}
}

func (n *Normalizer) normalizeObject(m map[string]interface{}) []CanonicalMessage {
	// 1. Nested chatData: recurse into the rich object.
	if chatData, ok := m["chatData"].(map[string]interface{}); ok {
		if msgs := n.normalizeObject(chatData); len(msgs) > 0 {
			return msgs
		}
	}

	// 2. Bare text field: a single user prompt.
	if text, ok := m["text"].(string); ok && strings.TrimSpace(text) != "" {
		ts := toInt64(m["createdAt"])
		if ts == 0 {
			ts = time.Now().UnixMilli()
		}
		return []CanonicalMessage{{Role: RoleUser, Content: strings.TrimSpace(text), TimestampMillis: ts}}
	}

	// 3. Positional numeric-keyed object, ascending key order. This
	// path never synthesizes assistant replies; assistant content, if
	// any, arrives separately via rich shapes.
	if msgs := n.normalizePositional(m); msgs != nil {
		return msgs
	}

	// 4. Explicit message array.
	for _, key := range []string{"messages", "chunks", "parts", "conversation"} {
		if arr, ok := m[key].([]interface{}); ok {
			return n.flattenMessageArray(arr)
		}
	}

	// 5. Workbench entries container: flatten each entry's
	// conversation in entry order into one combined sequence.
	if entries, ok := m["entries"].([]interface{}); ok {
		var combined []CanonicalMessage
		for _, e := range entries {
			entry, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			if conv, ok := entry["conversation"].([]interface{}); ok {
				combined = append(combined, n.flattenMessageArray(conv)...)
			} else if msgs, ok := entry["messages"].([]interface{}); ok {
				combined = append(combined, n.flattenMessageArray(msgs)...)
			}
		}
		return combined
	}

	// 6. Fallback: the whole value is one message.
	if _, hasRole := m["role"]; hasRole {
		if _, hasContent := m["content"]; hasContent {
			if msg, ok := n.flattenMessage(m); ok {
				return []CanonicalMessage{msg}
			}
		}
	}

	return nil
}

// normalizePositional handles objects keyed "0", "1", "2", … used as
// an ordered-array substitute. Every recovered message is a user
// prompt.
func (n *Normalizer) normalizePositional(m map[string]interface{}) []CanonicalMessage {
	type positional struct {
		idx   int
		value interface{}
	}
	var items []positional
	for key, value := range m {
		idx, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		items = append(items, positional{idx: idx, value: value})
	}
	if len(items) == 0 {
		return nil
	}
	sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })

	var messages []CanonicalMessage
	for _, item := range items {
		var content string
		ts := int64(0)
		switch v := item.value.(type) {
		case string:
			content = v
		case map[string]interface{}:
			content, _ = v["text"].(string)
			if content == "" {
				content, _ = v["content"].(string)
			}
			ts = toInt64(v["createdAt"])
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		if ts == 0 {
			ts = time.Now().UnixMilli()
		}
		messages = append(messages, CanonicalMessage{Role: RoleUser, Content: content, TimestampMillis: ts})
	}
	return messages
}

// flattenMessageArray maps each element through the per-message field
// rules, silently dropping elements that yield no content. That is
// expected noise, not an error.
func (n *Normalizer) flattenMessageArray(arr []interface{}) []CanonicalMessage {
	var messages []CanonicalMessage
	for _, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				messages = append(messages, CanonicalMessage{
					Role:            RoleUser,
					Content:         strings.TrimSpace(s),
					TimestampMillis: time.Now().UnixMilli(),
				})
			}
			continue
		}
		if msg, ok := n.flattenMessage(m); ok {
			messages = append(messages, msg)
		}
	}
	return messages
}

// flattenMessage applies the rich field mapping when authorKind is
// present, the legacy mapping otherwise.
func (n *Normalizer) flattenMessage(m map[string]interface{}) (CanonicalMessage, bool) {
	if _, rich := m["authorKind"]; rich {
		return n.flattenRichMessage(m)
	}
	return n.flattenLegacyMessage(m)
}

// flattenRichMessage maps authorKind 1→user, 2→assistant, anything
// else→system. Content concatenates the parts array with no
// separator; createTime is seconds and converts to milliseconds.
func (n *Normalizer) flattenRichMessage(m map[string]interface{}) (CanonicalMessage, bool) {
	role := RoleSystem
	switch toInt64(m["authorKind"]) {
	case 1:
		role = RoleUser
	case 2:
		role = RoleAssistant
	}

	var sb strings.Builder
	if parts, ok := m["parts"].([]interface{}); ok {
		for _, part := range parts {
			switch p := part.(type) {
			case string:
				sb.WriteString(p)
			case map[string]interface{}:
				if text, ok := p["text"].(string); ok {
					sb.WriteString(text)
				}
			}
		}
	}
	content := sb.String()
	if strings.TrimSpace(content) == "" {
		return CanonicalMessage{}, false
	}

	ts := toInt64(m["createTime"]) * 1000
	if ts == 0 {
		ts = toInt64(m["timestamp"])
	}
	return CanonicalMessage{Role: role, Content: content, TimestampMillis: ts}, true
}

// flattenLegacyMessage applies the fallback chains of the older
// formats: role ← sender ← isUser, content ← text ← message,
// timestamp ← createdAt ← now (already milliseconds).
func (n *Normalizer) flattenLegacyMessage(m map[string]interface{}) (CanonicalMessage, bool) {
	role, _ := m["role"].(string)
	if role == "" {
		role, _ = m["sender"].(string)
	}
	if role == "" {
		if isUser, ok := m["isUser"].(bool); ok {
			if isUser {
				role = RoleUser
			} else {
				role = RoleAssistant
			}
		}
	}
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		role = RoleUser
	}

	content, _ := m["content"].(string)
	if content == "" {
		content, _ = m["text"].(string)
	}
	if content == "" {
		content, _ = m["message"].(string)
	}
	if strings.TrimSpace(content) == "" {
		return CanonicalMessage{}, false
	}

	ts := toInt64(m["timestamp"])
	if ts == 0 {
		ts = toInt64(m["createdAt"])
	}
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	return CanonicalMessage{Role: role, Content: content, TimestampMillis: ts}, true
}

// toInt64 converts the numeric types encoding/json produces.
func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
