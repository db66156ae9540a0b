package internal

import (
	"encoding/json"
	"strings"
)

// Classification tags a decoded value with the chat shape it carries.
// Derived, never stored; recomputed per query.
type Classification int

const (
	// Unrecognized marks values that are not chat data. This is a
	// deliberate negative outcome, not an error.
	Unrecognized Classification = iota
	// RichChat marks values with a nested chatData object carrying
	// full assistant-authored turns.
	RichChat
	// PromptsOnly marks prompt objects, prompt arrays, positional
	// numeric-keyed objects and generic message-array objects.
	PromptsOnly
	// WorkbenchEntries marks the workbench "entries" container shape.
	WorkbenchEntries
)

func (c Classification) String() string {
	switch c {
	case RichChat:
		return "rich"
	case PromptsOnly:
		return "prompts"
	case WorkbenchEntries:
		return "entries"
	default:
		return "unrecognized"
	}
}

// Heuristic thresholds. Empirically tuned against real state.vscdb
// samples, not semantically load-bearing; retune against fresh data
// before changing.
const (
	// minBareStringLen is the floor below which a bare string value is
	// near-certainly UI state rather than message content.
	minBareStringLen = 150
	// minChatJSONSize is the minimum JSON-serialized size for a
	// container value to count as substantive; excludes near-empty
	// stub objects the IDE writes eagerly.
	minChatJSONSize = 120
)

// chatContainerKeys are object keys whose presence (case-insensitive)
// marks a value as plausibly chat-shaped during the Tier-1 pre-check.
var chatContainerKeys = []string{"messages", "history", "conversations", "prompts", "chatdata", "entries"}

// messageArrayKeys are the keys whose array values Tier-2 accepts as a
// message source.
var messageArrayKeys = []string{"messages", "chunks", "parts", "conversations", "entries"}

// terminalIndicatorKeys are diagnostic of IDE terminal-session state.
// Any one of them rejects a value regardless of positive signals;
// coincidental structural overlap with chat shapes must lose.
var terminalIndicatorKeys = []string{
	"pid",
	"shellIntegrationNonce",
	"isFeatureTerminal",
	"hasChildProcesses",
	"persistentProcessId",
	"shellLaunchConfig",
}

// IsValidChatData is the cheap Tier-1 structural pre-check used to
// filter store rows before shape parsing. It is deliberately looser
// than Classify: it rejects only unambiguous non-chat shapes, because
// false negatives lose data while false positives merely waste work
// downstream (chats with zero dialogues are discarded anyway).
func IsValidChatData(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case []interface{}:
		// Arrays are deferred to Tier 2 for real judgment, even empty.
		return true
	case map[string]interface{}:
		if len(v) == 0 {
			return true
		}
		for key := range v {
			lower := strings.ToLower(key)
			for _, want := range chatContainerKeys {
				if lower == want {
					return true
				}
			}
			if isNumericKey(key) {
				return true
			}
		}
		return false
	case string:
		return len(v) > minBareStringLen
	default:
		return false
	}
}

// Classify applies the Tier-2 shape judgment to a value that passed
// the pre-check. Rich chat data is detected first and wins over all
// other classifications so a rich representation of a conversation is
// never mistaken for a lesser prompts-only shape.
func Classify(value interface{}) Classification {
	switch v := value.(type) {
	case map[string]interface{}:
		if hasTerminalIndicators(v) {
			return Unrecognized
		}
		if hasRichChatData(v) {
			return RichChat
		}
		if isWorkbenchEntries(v) {
			return WorkbenchEntries
		}
		if isPromptObject(v) {
			return PromptsOnly
		}
		if hasNumericKeys(v) {
			return PromptsOnly
		}
		if hasMessageArray(v) && serializedSize(v) > minChatJSONSize {
			return PromptsOnly
		}
		return Unrecognized
	case []interface{}:
		if len(v) == 0 {
			return Unrecognized
		}
		// Array of prompt objects, or a bare message array.
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if isPromptObject(m) || hasMessageFields(m) {
				if serializedSize(v) > minChatJSONSize {
					return PromptsOnly
				}
			}
		}
		return Unrecognized
	default:
		return Unrecognized
	}
}

// hasTerminalIndicators reports whether any negative indicator key is
// present. Negative indicators always win.
func hasTerminalIndicators(m map[string]interface{}) bool {
	for _, key := range terminalIndicatorKeys {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}

// hasRichChatData reports whether m carries a nested chatData object
// itself containing a messages or chunks array.
func hasRichChatData(m map[string]interface{}) bool {
	chatData, ok := m["chatData"].(map[string]interface{})
	if !ok {
		return false
	}
	if _, ok := chatData["messages"].([]interface{}); ok {
		return true
	}
	if _, ok := chatData["chunks"].([]interface{}); ok {
		return true
	}
	return false
}

// isWorkbenchEntries validates the workbench container shape: an
// entries array where at least one entry has a conversation array
// containing at least one message with non-empty string content and a
// recognized sender.
func isWorkbenchEntries(m map[string]interface{}) bool {
	entries, ok := m["entries"].([]interface{})
	if !ok {
		return false
	}
	for _, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		conversation, ok := entry["conversation"].([]interface{})
		if !ok {
			continue
		}
		for _, c := range conversation {
			msg, ok := c.(map[string]interface{})
			if !ok {
				continue
			}
			text, _ := msg["message"].(string)
			sender, _ := msg["sender"].(string)
			if strings.TrimSpace(text) == "" {
				continue
			}
			switch sender {
			case RoleUser, RoleAssistant, RoleSystem:
				return true
			}
		}
	}
	return false
}

// isPromptObject reports whether m is a single prompt object, i.e. has
// a non-empty text field.
func isPromptObject(m map[string]interface{}) bool {
	text, ok := m["text"].(string)
	return ok && strings.TrimSpace(text) != ""
}

// hasMessageFields reports whether m looks like one standalone message.
func hasMessageFields(m map[string]interface{}) bool {
	_, hasRole := m["role"]
	_, hasContent := m["content"]
	return hasRole && hasContent
}

// hasNumericKeys reports whether any key of m is purely numeric, the
// positional-object convention for ordered prompt lists.
func hasNumericKeys(m map[string]interface{}) bool {
	for key := range m {
		if isNumericKey(key) {
			return true
		}
	}
	return false
}

// hasMessageArray reports whether m contains any recognized message
// array key holding an actual array.
func hasMessageArray(m map[string]interface{}) bool {
	for _, key := range messageArrayKeys {
		if _, ok := m[key].([]interface{}); ok {
			return true
		}
	}
	return false
}

func isNumericKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// serializedSize measures the JSON length of a value for the
// minimum-substance threshold.
func serializedSize(v interface{}) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}
