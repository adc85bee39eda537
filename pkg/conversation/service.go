// Package conversation implements the Conversation Service: it owns
// conversation lifecycle, recent-history retrieval, rolling summarization,
// and working-set maintenance, all backed by pkg/persistence's core-owned
// write side.
package conversation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"screenplay-core/pkg/agent/llm"
	"screenplay-core/pkg/logx"
	"screenplay-core/pkg/metrics"
	"screenplay-core/pkg/persistence"
	"screenplay-core/pkg/tokencount"
)

// summaryTriggerMessageCount is the message count at which a conversation
// becomes eligible for summarization.
const summaryTriggerMessageCount = 15

// summaryStalenessWindow is how many messages a summary may lag behind the
// current count before it's considered stale and due for regeneration.
const summaryStalenessWindow = 10

// recentMessagesLimit bounds how many raw messages the history block
// includes alongside the rolling summary.
const recentMessagesLimit = 10

// summaryMaxOutputTokens bounds the out-of-band summary generation call.
const summaryMaxOutputTokens = 300

// JobQueue is the narrow background-job interface this service enqueues
// summary generation onto — defined locally to avoid importing pkg/jobs
// just for this one method shape.
type JobQueue interface {
	Enqueue(ctx context.Context, kind, dedupeKey string, payload map[string]any) error
}

// Service implements the Conversation Service's five operations.
type Service struct {
	store  *persistence.ConversationStore
	jobs   JobQueue
	logger *logx.Logger
}

// New creates a Service. jobs may be nil, in which case MaybeSummarize
// becomes a no-op check with no enqueue (useful for tests and for runs
// without a job queue configured).
func New(store *persistence.ConversationStore, jobs JobQueue, logger *logx.Logger) *Service {
	if logger == nil {
		logger = logx.NewLogger("conversation")
	}
	return &Service{store: store, jobs: jobs, logger: logger}
}

// GetOrCreate returns the conversation by id if given, else lazily creates
// one bound to user and script. Conversations are immutable once created:
// GetOrCreate never rebinds an existing conversation to a different user
// or script.
func (s *Service) GetOrCreate(ctx context.Context, conversationID, userID, scriptID string) (*persistence.Conversation, error) {
	if conversationID != "" {
		conv, err := s.store.GetConversation(ctx, conversationID)
		if err == nil {
			return conv, nil
		}
		if err != persistence.ErrNotFound {
			return nil, fmt.Errorf("get conversation: %w", err)
		}
	}
	conv, err := s.store.CreateConversation(ctx, userID, scriptID)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// RecentMessages returns up to limit most-recent messages, oldest first.
func (s *Service) RecentMessages(ctx context.Context, conversationID string, limit int) ([]persistence.Message, error) {
	return s.store.RecentMessages(ctx, conversationID, limit)
}

// WorkingSet returns conversationID's current working set, or ErrNotFound if
// no turn has completed yet.
func (s *Service) WorkingSet(ctx context.Context, conversationID string) (*persistence.WorkingSet, error) {
	return s.store.GetWorkingSet(ctx, conversationID)
}

// RecordExchange persists one user/assistant turn and its token-usage row.
// Working-set maintenance is a separate call (UpdateWorkingSet) since it
// needs the script's character roster, which this method doesn't have.
func (s *Service) RecordExchange(ctx context.Context, conversationID, userContent, assistantContent string, usage llm.Usage, costUSD float64, model string) error {
	if _, _, err := s.store.AppendExchange(ctx, conversationID, userContent, assistantContent); err != nil {
		return fmt.Errorf("append exchange: %w", err)
	}
	err := s.store.AppendTokenUsage(ctx, persistence.TokenUsageRow{
		ConversationID:      conversationID,
		Model:               model,
		InputTokens:         usage.InputTokens,
		CacheCreationTokens: usage.CacheCreationTokens,
		CacheReadTokens:     usage.CacheReadTokens,
		OutputTokens:        usage.OutputTokens,
		CostUSD:             costUSD,
	})
	if err != nil {
		return fmt.Errorf("append token usage: %w", err)
	}
	return nil
}

// UsageSummary aggregates conversationID's token-usage ledger into one
// billing-facing total, for cost-accounting endpoints and client dashboards.
func (s *Service) UsageSummary(ctx context.Context, conversationID string) (metrics.ConversationUsage, error) {
	rows, err := s.store.TokenUsageForConversation(ctx, conversationID)
	if err != nil {
		return metrics.ConversationUsage{}, fmt.Errorf("token usage: %w", err)
	}
	usageRows := make([]metrics.UsageRow, len(rows))
	for i, r := range rows {
		usageRows[i] = metrics.UsageRow{
			InputTokens:         r.InputTokens,
			CacheCreationTokens: r.CacheCreationTokens,
			CacheReadTokens:     r.CacheReadTokens,
			OutputTokens:        r.OutputTokens,
			CostUSD:             r.CostUSD,
		}
	}
	return metrics.Aggregate(conversationID, usageRows), nil
}

// BuildHistoryBlock composes the rolling summary (if any) plus the last
// recentMessagesLimit messages into one text block, budget-constrained.
// Truncation drops the oldest messages first; the summary is never
// dropped, since it's the only memory of everything older than it covers.
func (s *Service) BuildHistoryBlock(ctx context.Context, conversationID string, budget int) (string, error) {
	var sb strings.Builder

	summary, err := s.store.GetSummary(ctx, conversationID)
	if err != nil && err != persistence.ErrNotFound {
		return "", fmt.Errorf("get summary: %w", err)
	}
	if summary != nil {
		sb.WriteString("Conversation so far: " + summary.Text + "\n\n")
	}

	messages, err := s.store.RecentMessages(ctx, conversationID, recentMessagesLimit)
	if err != nil {
		return "", fmt.Errorf("recent messages: %w", err)
	}

	summaryTokens := tokencount.Count(sb.String())
	remaining := budget - summaryTokens
	if remaining < 0 {
		remaining = 0
	}

	var lines []string
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	// Drop oldest messages first until what's left fits remaining budget.
	for len(lines) > 0 && tokencount.Count(strings.Join(lines, "\n")) > remaining {
		lines = lines[1:]
	}
	sb.WriteString(strings.Join(lines, "\n"))

	return sb.String(), nil
}

// MaybeSummarize checks whether conversationID is due for summarization and,
// if so, enqueues an out-of-band job to generate it. It never generates the
// summary inline: generation is a separate LLM call dispatched to the
// background queue so a slow or failed summarization never blocks the
// exchange that triggered it.
func (s *Service) MaybeSummarize(ctx context.Context, conversationID string) error {
	if s.jobs == nil {
		return nil
	}
	count, err := s.store.MessageCount(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("message count: %w", err)
	}
	if count < summaryTriggerMessageCount {
		return nil
	}

	existing, err := s.store.GetSummary(ctx, conversationID)
	if err != nil && err != persistence.ErrNotFound {
		return fmt.Errorf("get summary: %w", err)
	}
	if existing != nil && existing.UpToMessageCount >= count-summaryStalenessWindow {
		return nil
	}

	return s.jobs.Enqueue(ctx, "conversation_summary", "summary:"+conversationID, map[string]any{
		"conversation_id": conversationID,
	})
}

// GenerateSummary performs the actual out-of-band summarization call and
// persists the result. It's invoked by the background job worker, never
// from the request path.
func (s *Service) GenerateSummary(ctx context.Context, client llm.LLMClient, conversationID string) (*persistence.ConversationSummary, error) {
	count, err := s.store.MessageCount(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("message count: %w", err)
	}
	messages, err := s.store.RecentMessages(ctx, conversationID, count)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}

	var transcript strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	resp, err := client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			llm.NewSystemMessage("Summarize this screenwriting conversation in under 300 tokens, covering: " +
				"topics discussed, edits made, preferences stated, and open questions."),
			llm.NewUserMessage(transcript.String()),
		},
		MaxTokens: summaryMaxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate summary: %w", err)
	}

	cs := persistence.ConversationSummary{ConversationID: conversationID, Text: resp.Content, UpToMessageCount: count}

	if err := s.store.PutSummary(ctx, cs); err != nil {
		return nil, fmt.Errorf("put summary: %w", err)
	}
	return &cs, nil
}

var (
	sceneMentionPattern = regexp.MustCompile(`(?i)scene\s+(\d+)`)
	commitmentPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)i suggest[^.?!]*[.?!]`),
		regexp.MustCompile(`(?i)you could try[^.?!]*[.?!]`),
	}
)

// UpdateWorkingSet regex-parses the assistant's response for scene mentions,
// character names, plot-thread names, and suggestion commitments, and
// persists the refreshed working set. scriptCharacters and
// scriptThreads are the script's known character/plot-thread name sets, used
// to intersect against names mentioned in the response rather than guessing
// at proper nouns.
func (s *Service) UpdateWorkingSet(ctx context.Context, conversationID, userIntent, assistantResponse string, scriptCharacters, scriptThreads []string) (*persistence.WorkingSet, error) {
	positions := scenePositionsMentioned(assistantResponse)
	characters := charactersMentioned(assistantResponse, scriptCharacters)
	threads := namesMentioned(assistantResponse, scriptThreads)
	commitment := lastCommitment(assistantResponse)

	ws := persistence.WorkingSet{
		ConversationID:          conversationID,
		LastUserIntent:          userIntent,
		LastAssistantCommitment: commitment,
		ActiveScenePositions:    positions,
		ActiveCharacterNames:    characters,
		ActiveThreadNames:       threads,
	}
	if err := s.store.PutWorkingSet(ctx, ws); err != nil {
		return nil, fmt.Errorf("put working set: %w", err)
	}
	return &ws, nil
}

// scenePositionsMentioned finds every "Scene N" reference and converts the
// user-facing 1-based number back to a 0-based position.
func scenePositionsMentioned(text string) []int {
	matches := sceneMentionPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[int]struct{})
	var out []int
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			continue
		}
		pos := n - 1
		if _, ok := seen[pos]; ok {
			continue
		}
		seen[pos] = struct{}{}
		out = append(out, pos)
	}
	return out
}

// charactersMentioned intersects candidates against text's uppercase
// content, since screenplay character names are conventionally all-caps.
func charactersMentioned(text string, candidates []string) []string {
	upper := strings.ToUpper(text)
	var out []string
	for _, name := range candidates {
		if strings.Contains(upper, strings.ToUpper(name)) {
			out = append(out, name)
		}
	}
	return out
}

// namesMentioned matches candidates case-insensitively, like
// charactersMentioned but comparing in lower case, for candidates (like
// plot-thread names) that aren't conventionally all-caps.
func namesMentioned(text string, candidates []string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, name := range candidates {
		if strings.Contains(lower, strings.ToLower(name)) {
			out = append(out, name)
		}
	}
	return out
}

// lastCommitment returns the last suggestion-like sentence in text, if any.
func lastCommitment(text string) string {
	var last string
	lastStart := -1
	for _, re := range commitmentPatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if loc[0] > lastStart {
				lastStart = loc[0]
				last = text[loc[0]:loc[1]]
			}
		}
	}
	return strings.TrimSpace(last)
}
