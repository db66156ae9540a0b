package testutil

// Sample stored values covering the chat shapes the pipeline
// recognizes, plus the noise it must reject.
const (
	// RichChatValue is the nested chatData shape with authorKind-tagged
	// messages and createTime in seconds.
	RichChatValue = `{
		"composerId": "rich-1",
		"name": "Fix the scanner",
		"createdAt": 1700000000000,
		"chatData": {
			"messages": [
				{"authorKind": 1, "parts": ["how do I fix the scanner?"], "createTime": 1700000000},
				{"authorKind": 2, "parts": ["You can ", {"text": "buffer the reads."}], "createTime": 1700000060}
			]
		}
	}`

	// PromptObjectValue is the single-prompt shape.
	PromptObjectValue = `{"text": "refactor the parser please", "createdAt": 1700000100000}`

	// PositionalValue is the numeric-keyed positional-object shape.
	PositionalValue = `{
		"0": {"text": "fix this bug", "createdAt": 5},
		"1": {"text": "ok now add tests", "createdAt": 10}
	}`

	// WorkbenchEntriesValue is the workbench entries container shape.
	WorkbenchEntriesValue = `{
		"entries": [
			{"conversation": [
				{"sender": "user", "message": "what does this error mean?", "timestamp": 1700000200000},
				{"sender": "assistant", "message": "The handle was closed twice.", "timestamp": 1700000260000}
			]}
		]
	}`

	// TerminalValue carries terminal-session indicator keys and must be
	// rejected even though it also has a messages array.
	TerminalValue = `{"pid": 42, "shellIntegrationNonce": "x", "messages": [{"role": "user", "content": "ls"}]}`

	// PromptsListValue is the aiService prompts-only array shape.
	PromptsListValue = `[
		{"text": "how do I fix the scanner so it stops dropping the last line of input?", "createdAt": 1700000000000},
		{"text": "now write a regression test that covers the missing-newline case", "createdAt": 1700000300000}
	]`
)
