// Package agentloop orchestrates the multi-turn tool-calling interaction
// with the LLM: it runs tool iterations until a stop condition is reached,
// builds a ranked evidence block from what the tools returned, and streams a
// synthesized final answer back to the caller.
package agentloop

import (
	"screenplay-core/pkg/agent/llm"
)

// EventKind identifies the kind of StreamEvent yielded to the transport layer.
type EventKind string

const (
	EventThinking  EventKind = "thinking"
	EventStatus    EventKind = "status"
	EventText      EventKind = "text"
	EventComplete  EventKind = "complete"
	EventStreamEnd EventKind = "stream_end"
)

// StreamEvent is one item in the ordered sequence of events the loop yields;
// transport serialization (SSE, WebSocket, etc.) is the caller's concern.
type StreamEvent struct {
	Kind           EventKind
	Thinking       string
	Status         string
	StatusTool     string
	Text           string
	Usage          llm.Usage
	ToolsUsed      []string
	ToolCallsMade  int
	StopReason     string
	RecoveryAttempts int
	ConversationID string
}

// ToolCallRecord describes one tool invocation (name and arguments). Loop
// does not build these; the complete event reports tool usage through
// ToolsUsed and ToolCallsMade.
type ToolCallRecord struct {
	Name string
	Args map[string]any
}

const (
	// DefaultMaxIterations bounds the tool-calling loop before forced synthesis.
	DefaultMaxIterations = 5
	// MaxRecoveryAttempts bounds max_tokens-truncation recovery retries.
	MaxRecoveryAttempts = 2
	// DefaultSynthesisMaxTokens is the output cap for the synthesis call.
	DefaultSynthesisMaxTokens = 1200
	// NonToolSynthesisMaxTokens is the output cap when no tools are enabled;
	// raised to DefaultSynthesisMaxTokens by contract once synthesis runs.
	NonToolSynthesisMaxTokens = 600
)

// stopReason mirrors the provider's stop_reason values the loop cares about.
const (
	stopReasonToolUse   = "tool_use"
	stopReasonMaxTokens = "max_tokens"
	stopReasonEndTurn   = "end_turn"
)
