package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements are applied in order by InitSchema. Ingestion owns the
// first block (scripts through scene_relationships) in production — this
// core only reads those tables — but InitSchema creates them too so a
// single process can stand up a self-contained test or demo environment.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS scripts (
		script_id TEXT PRIMARY KEY,
		title     TEXT NOT NULL,
		owner     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS scenes (
		script_id  TEXT NOT NULL REFERENCES scripts(script_id),
		position   INTEGER NOT NULL,
		heading    TEXT NOT NULL,
		content    TEXT NOT NULL,
		characters TEXT[] NOT NULL DEFAULT '{}',
		word_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (script_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scenes_script_position ON scenes(script_id, position)`,
	`CREATE TABLE IF NOT EXISTS scene_summaries (
		script_id TEXT NOT NULL REFERENCES scripts(script_id),
		position  INTEGER NOT NULL,
		summary   TEXT NOT NULL,
		PRIMARY KEY (script_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scene_summaries_script ON scene_summaries(script_id)`,
	`CREATE TABLE IF NOT EXISTS script_outlines (
		script_id TEXT PRIMARY KEY REFERENCES scripts(script_id),
		text      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS character_sheets (
		script_id        TEXT NOT NULL REFERENCES scripts(script_id),
		name             TEXT NOT NULL,
		arc              TEXT NOT NULL DEFAULT '',
		relationships    TEXT NOT NULL DEFAULT '',
		appearance_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (script_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS plot_threads (
		script_id       TEXT NOT NULL REFERENCES scripts(script_id),
		name            TEXT NOT NULL,
		type            TEXT NOT NULL,
		scene_positions INTEGER[] NOT NULL DEFAULT '{}',
		PRIMARY KEY (script_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS scene_relationships (
		script_id TEXT NOT NULL REFERENCES scripts(script_id),
		type      TEXT NOT NULL,
		setup     INTEGER NOT NULL,
		payoff    INTEGER NOT NULL,
		PRIMARY KEY (script_id, type, setup, payoff),
		CHECK (setup < payoff)
	)`,
	`CREATE TABLE IF NOT EXISTS chat_conversations (
		conversation_id TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		script_id       TEXT NOT NULL REFERENCES scripts(script_id),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_conversations_script ON chat_conversations(script_id)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		message_id      TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES chat_conversations(conversation_id),
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_conversation ON chat_messages(conversation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_created_at ON chat_messages(created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS chat_conversation_summaries (
		conversation_id    TEXT PRIMARY KEY REFERENCES chat_conversations(conversation_id),
		text               TEXT NOT NULL,
		up_to_message_count INTEGER NOT NULL,
		generated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chat_working_sets (
		conversation_id            TEXT PRIMARY KEY REFERENCES chat_conversations(conversation_id),
		last_user_intent           TEXT NOT NULL DEFAULT '',
		last_assistant_commitment  TEXT NOT NULL DEFAULT '',
		active_scene_positions     INTEGER[] NOT NULL DEFAULT '{}',
		active_character_names     TEXT[] NOT NULL DEFAULT '{}',
		active_thread_names        TEXT[] NOT NULL DEFAULT '{}',
		updated_at                 TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chat_token_usage (
		id                    TEXT PRIMARY KEY,
		conversation_id       TEXT NOT NULL REFERENCES chat_conversations(conversation_id),
		model                 TEXT NOT NULL,
		input_tokens          INTEGER NOT NULL,
		cache_creation_tokens INTEGER NOT NULL,
		cache_read_tokens     INTEGER NOT NULL,
		output_tokens         INTEGER NOT NULL,
		cost_usd              DOUBLE PRECISION NOT NULL,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_token_usage_conversation ON chat_token_usage(conversation_id)`,
}

// InitSchema applies every schema statement, in order, idempotently.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
