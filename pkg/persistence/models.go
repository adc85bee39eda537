// Package persistence is the pgx-backed storage layer for the conversation
// core. It has two halves:
//
//   - the ingestion-owned read side: scripts, scenes, summaries, outlines,
//     character sheets, plot threads, and scene relationships, exposed
//     through screenplay.ScriptStore so the rest of the core never imports
//     a driver directly;
//   - the core-owned write side: conversations, messages, conversation
//     summaries, working sets, and token-usage rows, which only this
//     package and pkg/conversation ever touch.
//
// ScriptStore and ConversationStore each wrap a *pgxpool.Pool, InitSchema
// applies inline DDL, and queries go through plain pool.QueryRow/Query + Scan over
// hand-written SQL (no ORM).
package persistence

import "time"

// MessageRole identifies who authored a Message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Conversation is lazily created on first message and never reassigned to a
// different user or script once created.
type Conversation struct {
	CreatedAt time.Time
	ID        string
	UserID    string
	ScriptID  string
}

// Message is one turn in a Conversation, persisted in user/assistant pairs
// and ordered by CreatedAt.
type Message struct {
	CreatedAt      time.Time
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
}

// ConversationSummary is a rolling compression of the oldest messages in a
// Conversation. At most one exists per conversation at a time; it is
// replaced, not appended, each time it is regenerated. UpToMessageCount
// records the message count it covers, used to decide whether it's stale.
type ConversationSummary struct {
	GeneratedAt      time.Time
	ConversationID   string
	Text             string
	UpToMessageCount int
}

// WorkingSet tracks the conversation's current focus: which scenes,
// characters, and threads are active, and what the last exchange committed
// to. At most one exists per conversation; it is replaced wholesale after
// every assistant turn.
type WorkingSet struct {
	UpdatedAt               time.Time
	ConversationID          string
	LastUserIntent          string
	LastAssistantCommitment string
	ActiveScenePositions    []int
	ActiveCharacterNames    []string
	ActiveThreadNames       []string
}

// TokenUsageRow is an append-only record of one LLM call's token accounting
// and its computed cost.
type TokenUsageRow struct {
	CreatedAt           time.Time
	ID                  string
	ConversationID      string
	Model               string
	InputTokens         int
	CacheCreationTokens int
	CacheReadTokens     int
	OutputTokens        int
	CostUSD             float64
}
