// Package contextbuilder implements the Context Builder: it assembles the
// ordered system blocks and message turns that go into each LLM call,
// respects per-tier token budgets, and marks which blocks are eligible for
// provider-side prompt caching.
package contextbuilder

import (
	"screenplay-core/pkg/router"
	"screenplay-core/pkg/tools"
)

// Tier names a token budget tier; the caller picks one per request via the
// incoming message's budget_tier field.
type Tier string

const (
	TierQuick    Tier = "quick"
	TierStandard Tier = "standard"
	TierDeep     Tier = "deep"
)

// budgets maps each tier to its total token ceiling across every block.
var budgets = map[Tier]int{
	TierQuick:    1200,
	TierStandard: 5000,
	TierDeep:     20000,
}

// BudgetFor returns tier's total token ceiling, defaulting to standard for
// an unrecognized or empty tier.
func BudgetFor(tier Tier) int {
	if b, ok := budgets[tier]; ok {
		return b
	}
	return budgets[TierStandard]
}

// WorkingSetView is the narrow slice of the conversation's working set the
// builder needs to gate history injection — defined locally, rather than
// importing pkg/persistence's WorkingSet directly, so the builder depends
// only on the shape it actually uses.
type WorkingSetView struct {
	LastAssistantCommitment string
	ActiveCharacterNames    []string
}

// Request carries everything Build needs to assemble one call's context.
// The Router (§4.1), Retrieval Service (§4.2), and Conversation Service
// (§4.4) have already run by the time this is constructed; the Context
// Builder only composes their outputs into blocks and turns.
type Request struct {
	ScriptID             string
	Message              string
	Classification       router.Classification
	Tier                 Tier
	ToolsEnabled         bool
	AvailableTools       []string
	CurrentScenePosition *int
	RetrievedScenes      []tools.RetrievalResult
	ConversationHistory  string // pre-built by Conversation Service's build_history_block
	WorkingSet           *WorkingSetView
	CharacterName        string // resolved entity name when RefersTo == character
}

// Block is one ordered, optionally-cacheable unit of context. Kind
// identifies it for trimming decisions and tests; Text is its rendered
// content.
type Block struct {
	Kind      string
	Text      string
	Cacheable bool
}

// Block kinds, in emission order. Trim order (when over budget) removes
// scene cards first, then conversation context; system/local/user blocks
// are never trimmed.
const (
	KindSystemPrompt  = "system_prompt"
	KindGlobalContext = "global_context"
	KindSceneCards    = "scene_cards"
	KindConversation  = "conversation_context"
	KindLocalContext  = "local_context"
	KindUserMessage   = "user_message"
)

// Result is the assembled, budget-trimmed context for one LLM call.
type Result struct {
	Blocks      []Block
	TrimmedKinds []string // kinds that were dropped or truncated to fit budget
}
