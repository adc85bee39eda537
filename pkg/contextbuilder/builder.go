package contextbuilder

import (
	"context"
	"fmt"
	"strings"

	"screenplay-core/pkg/agent/llm"
	"screenplay-core/pkg/router"
	"screenplay-core/pkg/screenplay"
	"screenplay-core/pkg/tokencount"
	"screenplay-core/pkg/tools"
)

// maxCharacterSheetsInGlobalContext bounds how many character sheets the
// global-context block includes, to keep it within its ~400-token budget
// even on scripts with a large cast.
const maxCharacterSheetsInGlobalContext = 5

// Builder assembles context from a script's outline and character sheets
// plus whatever the Router/Retrieval/Conversation services have already
// computed for this request.
type Builder struct {
	store screenplay.ScriptStore
}

// New creates a Builder backed by store.
func New(store screenplay.ScriptStore) *Builder {
	return &Builder{store: store}
}

// Build assembles, orders, and budget-trims the blocks for one request.
func (b *Builder) Build(ctx context.Context, req Request) (Result, error) {
	var blocks []Block

	blocks = append(blocks, b.systemPromptBlock(req))

	if global, err := b.globalContextBlock(ctx, req.ScriptID); err == nil {
		blocks = append(blocks, global)
	}

	if req.Classification.Domain != router.DomainGeneral && !req.ToolsEnabled {
		if cards := sceneCardsBlock(req.RetrievedScenes); cards.Text != "" {
			blocks = append(blocks, cards)
		}
	}

	if convo := b.conversationContextBlock(req); convo.Text != "" {
		blocks = append(blocks, convo)
	}

	if local, err := b.localContextBlock(ctx, req); err == nil && local.Text != "" {
		blocks = append(blocks, local)
	}

	blocks = append(blocks, Block{Kind: KindUserMessage, Text: req.Message})

	return trimToBudget(blocks, BudgetFor(req.Tier)), nil
}

// systemPromptBlock composes the always-present system prompt, appending
// the tool-usage and response-contract sections according to the request's
// flags.
func (b *Builder) systemPromptBlock(req Request) Block {
	var sb strings.Builder
	sb.WriteString("You are a screenwriting assistant. Scenes are addressed internally by a 0-based position, ")
	sb.WriteString("but always shown to the user as a 1-based scene number (position 0 = \"Scene 1\").")

	if req.ToolsEnabled && req.Classification.Domain != router.DomainGeneral {
		sb.WriteString("\n\nYou have tools to read scenes, search the script, and inspect plot threads and character " +
			"arcs. Tool arguments use 0-based scene indices (Scene 5 = index 4). Weigh every tool result equally " +
			"regardless of the order it was returned in — do not over-weight the most recent result.")
		if len(req.AvailableTools) > 0 {
			sb.WriteString("\nAvailable tools: " + strings.Join(req.AvailableTools, ", ") + ".")
		}
	}

	if req.Classification.RequestType == router.RequestSuggest {
		sb.WriteString("\n\nWhen diagnosing a problem, suggest edits; do not produce a full rewrite unless the user explicitly asks for one.")
	}

	return Block{Kind: KindSystemPrompt, Text: sb.String(), Cacheable: true}
}

// globalContextBlock composes the script outline and top character sheets.
func (b *Builder) globalContextBlock(ctx context.Context, scriptID string) (Block, error) {
	var sb strings.Builder

	if outline, err := b.store.GetOutline(ctx, scriptID); err == nil && outline != nil {
		sb.WriteString("Script outline:\n")
		sb.WriteString(outline.Text)
	}

	sheets, err := b.store.ListCharacterSheets(ctx, scriptID)
	if err == nil && len(sheets) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Main characters:\n")
		for i, cs := range sheets {
			if i >= maxCharacterSheetsInGlobalContext {
				break
			}
			fmt.Fprintf(&sb, "- %s: %s\n", cs.Name, cs.Arc)
		}
	}

	if sb.Len() == 0 {
		return Block{}, fmt.Errorf("no global context available")
	}
	return Block{Kind: KindGlobalContext, Text: sb.String(), Cacheable: true}, nil
}

// sceneCardsBlock renders the retrieved scenes' summaries. Skipped entirely
// by the caller when tools are enabled, since the model can fetch scenes
// itself in that mode.
func sceneCardsBlock(results []tools.RetrievalResult) Block {
	if len(results) == 0 {
		return Block{}
	}
	var sb strings.Builder
	sb.WriteString("Relevant scenes:\n")
	for _, r := range results {
		summary := r.Summary
		if summary == "" {
			summary = r.Scene.Heading
		}
		fmt.Fprintf(&sb, "- Scene %d (%s): %s\n", r.Scene.Position+1, r.Scene.Heading, summary)
	}
	return Block{Kind: KindSceneCards, Text: sb.String(), Cacheable: true}
}

// conversationContextBlock applies the history-gating rules: omitted
// entirely on a new topic, and augmented with the working set's last
// commitment when the user follows up on prior advice. A message that
// refers to a character gets no character sheet here; req.CharacterName is
// not read.
func (b *Builder) conversationContextBlock(req Request) Block {
	if req.Classification.Continuity == router.ContinuityNewTopic {
		return Block{}
	}

	var sb strings.Builder
	if req.Classification.Continuity == router.ContinuityFollowUp && req.Classification.RefersTo == router.RefersToPriorAdvice &&
		req.WorkingSet != nil && req.WorkingSet.LastAssistantCommitment != "" {
		sb.WriteString("Your last suggestion was: " + req.WorkingSet.LastAssistantCommitment + "\n\n")
	}

	if req.ConversationHistory != "" {
		sb.WriteString(req.ConversationHistory)
	}

	if sb.Len() == 0 {
		return Block{}
	}
	return Block{Kind: KindConversation, Text: sb.String(), Cacheable: false}
}

// localContextBlock includes the full text of the current scene, but only
// for local_edit requests that name a current scene.
func (b *Builder) localContextBlock(ctx context.Context, req Request) (Block, error) {
	if req.Classification.Intent != router.IntentLocalEdit || req.CurrentScenePosition == nil {
		return Block{}, fmt.Errorf("local context not applicable")
	}
	scene, err := b.store.GetScene(ctx, req.ScriptID, *req.CurrentScenePosition)
	if err != nil {
		return Block{}, fmt.Errorf("get current scene: %w", err)
	}
	return Block{
		Kind:      KindLocalContext,
		Text:      fmt.Sprintf("Current scene (Scene %d):\n%s\n%s", scene.Position+1, scene.Heading, scene.Content),
		Cacheable: false,
	}, nil
}

// trimToBudget drops scene cards first, then truncates conversation
// context, to bring the block set under budget. System, local, and user
// blocks are never trimmed — if they alone exceed budget, they're kept
// anyway, since a maximally-trimmed-but-empty context serves the user worse
// than a slightly over-budget one.
func trimToBudget(blocks []Block, budget int) Result {
	total := func(bs []Block) int {
		sum := 0
		for _, b := range bs {
			sum += tokencount.Count(b.Text)
		}
		return sum
	}

	var trimmed []string

	if total(blocks) > budget {
		kept := blocks[:0:0]
		for _, b := range blocks {
			if b.Kind == KindSceneCards {
				trimmed = append(trimmed, b.Kind)
				continue
			}
			kept = append(kept, b)
		}
		blocks = kept
	}

	if total(blocks) > budget {
		for i, b := range blocks {
			if b.Kind != KindConversation {
				continue
			}
			remaining := budget - total(removeAt(blocks, i))
			if remaining < 0 {
				remaining = 0
			}
			blocks[i].Text = tokencount.TruncateToLimit(b.Text, remaining)
			trimmed = append(trimmed, KindConversation)
			break
		}
	}

	return Result{Blocks: blocks, TrimmedKinds: trimmed}
}

func removeAt(blocks []Block, i int) []Block {
	out := make([]Block, 0, len(blocks)-1)
	for j, b := range blocks {
		if j != i {
			out = append(out, b)
		}
	}
	return out
}

// ToMessages renders Result into the ordered CompletionMessage list the
// agent loop and synthesis calls consume: cacheable blocks get a
// CacheControl marker (the provider decides whether to actually cache;
// this core only emits the marker), and system-level blocks collapse into
// system-role messages ahead of the conversation/local/user turns.
func (r Result) ToMessages() []llm.CompletionMessage {
	var out []llm.CompletionMessage
	for _, b := range r.Blocks {
		role := llm.RoleUser
		if b.Kind == KindSystemPrompt || b.Kind == KindGlobalContext || b.Kind == KindSceneCards {
			role = llm.RoleSystem
		}
		msg := llm.CompletionMessage{Role: role, Content: b.Text}
		if b.Cacheable {
			msg.CacheControl = &llm.CacheControl{}
		}
		out = append(out, msg)
	}
	return out
}
