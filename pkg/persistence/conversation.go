package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationStore is the core-owned write side: conversations, messages,
// conversation summaries, working sets, and token-usage rows. Only
// pkg/conversation uses this type directly; pkg/metrics aggregates its own
// UsageRow values and does not import this package.
type ConversationStore struct {
	pool *pgxpool.Pool
}

// NewConversationStore wraps pool for the conversation write side.
func NewConversationStore(pool *pgxpool.Pool) *ConversationStore {
	return &ConversationStore{pool: pool}
}

// GetConversation returns the conversation by id, or ErrNotFound.
func (s *ConversationStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT conversation_id, user_id, script_id, created_at FROM chat_conversations WHERE conversation_id = $1`, id,
	).Scan(&c.ID, &c.UserID, &c.ScriptID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// CreateConversation inserts a new conversation, generating its id.
// Conversations are immutable once created: a given (user, script) pair
// that wants a new conversation gets a new id, never a rebind of an
// existing one.
func (s *ConversationStore) CreateConversation(ctx context.Context, userID, scriptID string) (*Conversation, error) {
	id := uuid.NewString()
	var c Conversation
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_conversations (conversation_id, user_id, script_id)
		 VALUES ($1, $2, $3)
		 RETURNING conversation_id, user_id, script_id, created_at`,
		id, userID, scriptID,
	).Scan(&c.ID, &c.UserID, &c.ScriptID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &c, nil
}

// RecentMessages returns up to limit most-recent messages for conversationID,
// in chronological order (oldest first).
func (s *ConversationStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT message_id, conversation_id, role, content, created_at
		 FROM chat_messages WHERE conversation_id = $1
		 ORDER BY created_at DESC LIMIT $2`, conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var reversed []Message
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = MessageRole(role)
		reversed = append(reversed, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}

	out := make([]Message, len(reversed))
	for i, m := range reversed {
		out[len(reversed)-1-i] = m
	}
	return out, nil
}

// MessageCount returns the total number of messages in conversationID, used
// to decide when to trigger summarization.
func (s *ConversationStore) MessageCount(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM chat_messages WHERE conversation_id = $1`, conversationID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("message count: %w", err)
	}
	return n, nil
}

// AppendExchange persists the user message and the assistant reply in one
// transaction: both are written, or neither is.
func (s *ConversationStore) AppendExchange(ctx context.Context, conversationID string, userContent, assistantContent string) (userMsg, assistantMsg Message, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, Message{}, fmt.Errorf("begin exchange: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	userMsg, err = insertMessage(ctx, tx, conversationID, RoleUser, userContent)
	if err != nil {
		return Message{}, Message{}, err
	}
	assistantMsg, err = insertMessage(ctx, tx, conversationID, RoleAssistant, assistantContent)
	if err != nil {
		return Message{}, Message{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, Message{}, fmt.Errorf("commit exchange: %w", err)
	}
	return userMsg, assistantMsg, nil
}

func insertMessage(ctx context.Context, tx pgx.Tx, conversationID string, role MessageRole, content string) (Message, error) {
	var m Message
	err := tx.QueryRow(ctx,
		`INSERT INTO chat_messages (message_id, conversation_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, clock_timestamp())
		 RETURNING message_id, conversation_id, role, content, created_at`,
		uuid.NewString(), conversationID, string(role), content,
	).Scan(&m.ID, &m.ConversationID, (*string)(&m.Role), &m.Content, &m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert %s message: %w", role, err)
	}
	return m, nil
}

// GetSummary returns the conversation's rolling summary, or ErrNotFound if
// none has been generated yet.
func (s *ConversationStore) GetSummary(ctx context.Context, conversationID string) (*ConversationSummary, error) {
	var cs ConversationSummary
	err := s.pool.QueryRow(ctx,
		`SELECT conversation_id, text, up_to_message_count, generated_at
		 FROM chat_conversation_summaries WHERE conversation_id = $1`, conversationID,
	).Scan(&cs.ConversationID, &cs.Text, &cs.UpToMessageCount, &cs.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return &cs, nil
}

// PutSummary replaces the conversation's rolling summary wholesale.
func (s *ConversationStore) PutSummary(ctx context.Context, cs ConversationSummary) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_conversation_summaries (conversation_id, text, up_to_message_count)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (conversation_id) DO UPDATE
		 SET text = EXCLUDED.text, up_to_message_count = EXCLUDED.up_to_message_count, generated_at = now()`,
		cs.ConversationID, cs.Text, cs.UpToMessageCount,
	)
	if err != nil {
		return fmt.Errorf("put summary: %w", err)
	}
	return nil
}

// GetWorkingSet returns the conversation's working set, or ErrNotFound if
// no turn has completed yet.
func (s *ConversationStore) GetWorkingSet(ctx context.Context, conversationID string) (*WorkingSet, error) {
	var ws WorkingSet
	err := s.pool.QueryRow(ctx,
		`SELECT conversation_id, last_user_intent, last_assistant_commitment,
		        active_scene_positions, active_character_names, active_thread_names, updated_at
		 FROM chat_working_sets WHERE conversation_id = $1`, conversationID,
	).Scan(&ws.ConversationID, &ws.LastUserIntent, &ws.LastAssistantCommitment,
		&ws.ActiveScenePositions, &ws.ActiveCharacterNames, &ws.ActiveThreadNames, &ws.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get working set: %w", err)
	}
	return &ws, nil
}

// PutWorkingSet replaces the conversation's working set wholesale.
func (s *ConversationStore) PutWorkingSet(ctx context.Context, ws WorkingSet) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_working_sets (conversation_id, last_user_intent, last_assistant_commitment,
		                                active_scene_positions, active_character_names, active_thread_names)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (conversation_id) DO UPDATE
		 SET last_user_intent = EXCLUDED.last_user_intent,
		     last_assistant_commitment = EXCLUDED.last_assistant_commitment,
		     active_scene_positions = EXCLUDED.active_scene_positions,
		     active_character_names = EXCLUDED.active_character_names,
		     active_thread_names = EXCLUDED.active_thread_names,
		     updated_at = now()`,
		ws.ConversationID, ws.LastUserIntent, ws.LastAssistantCommitment,
		ws.ActiveScenePositions, ws.ActiveCharacterNames, ws.ActiveThreadNames,
	)
	if err != nil {
		return fmt.Errorf("put working set: %w", err)
	}
	return nil
}

// AppendTokenUsage records one LLM call's usage and cost. Append-only: rows
// are never updated.
func (s *ConversationStore) AppendTokenUsage(ctx context.Context, row TokenUsageRow) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_token_usage
		   (id, conversation_id, model, input_tokens, cache_creation_tokens, cache_read_tokens, output_tokens, cost_usd)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		row.ID, row.ConversationID, row.Model, row.InputTokens, row.CacheCreationTokens,
		row.CacheReadTokens, row.OutputTokens, row.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("append token usage: %w", err)
	}
	return nil
}

// TokenUsageForConversation returns every usage row recorded for
// conversationID, oldest first.
func (s *ConversationStore) TokenUsageForConversation(ctx context.Context, conversationID string) ([]TokenUsageRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, model, input_tokens, cache_creation_tokens, cache_read_tokens, output_tokens, cost_usd, created_at
		 FROM chat_token_usage WHERE conversation_id = $1 ORDER BY created_at ASC`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("token usage for conversation: %w", err)
	}
	defer rows.Close()

	var out []TokenUsageRow
	for rows.Next() {
		var r TokenUsageRow
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.Model, &r.InputTokens, &r.CacheCreationTokens,
			&r.CacheReadTokens, &r.OutputTokens, &r.CostUSD, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan token usage: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
