package persistence

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"screenplay-core/pkg/screenplay"
)

// requirePool skips the test unless DATABASE_URL points at a real Postgres
// instance; these are integration tests, not unit tests with a fake driver,
// because pgx has no in-memory mode worth faking against.
func requirePool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if err := InitSchema(ctx, pool); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestScriptStore_RoundTrip(t *testing.T) {
	pool := requirePool(t)
	ctx := context.Background()
	store := NewScriptStore(pool)

	scriptID := "script-" + t.Name()
	if _, err := pool.Exec(ctx, `INSERT INTO scripts (script_id, title, owner) VALUES ($1, $2, $3)`, scriptID, "Test Script", "owner-1"); err != nil {
		t.Fatalf("seed script: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO scenes (script_id, position, heading, content, characters, word_count) VALUES ($1, 0, $2, $3, $4, 4)`,
		scriptID, "INT. HOUSE - DAY", "JANE enters the room.", []string{"JANE"},
	); err != nil {
		t.Fatalf("seed scene: %v", err)
	}

	sc, err := store.GetScript(ctx, scriptID)
	if err != nil {
		t.Fatalf("get script: %v", err)
	}
	if sc.Title != "Test Script" {
		t.Errorf("expected title %q, got %q", "Test Script", sc.Title)
	}

	scene, err := store.GetScene(ctx, scriptID, 0)
	if err != nil {
		t.Fatalf("get scene: %v", err)
	}
	if scene.Heading != "INT. HOUSE - DAY" {
		t.Errorf("unexpected heading %q", scene.Heading)
	}

	scenes, err := store.GetScenes(ctx, scriptID)
	if err != nil || len(scenes) != 1 {
		t.Fatalf("expected 1 scene, got %d (err %v)", len(scenes), err)
	}

	if _, err := store.GetScene(ctx, scriptID, 99); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for missing scene, got %v", err)
	}

	_ = screenplay.ScriptStore(store) // compile-time interface check, documented at call site too
}

func TestConversationStore_CreateAppendExchangeAndSummarize(t *testing.T) {
	pool := requirePool(t)
	ctx := context.Background()

	scriptID := "script-" + t.Name()
	if _, err := pool.Exec(ctx, `INSERT INTO scripts (script_id, title) VALUES ($1, 'T')`, scriptID); err != nil {
		t.Fatalf("seed script: %v", err)
	}

	store := NewConversationStore(pool)
	conv, err := store.CreateConversation(ctx, "user-1", scriptID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if conv.UserID != "user-1" || conv.ScriptID != scriptID {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	userMsg, assistantMsg, err := store.AppendExchange(ctx, conv.ID, "What happens in scene 1?", "Jane enters the house.")
	if err != nil {
		t.Fatalf("append exchange: %v", err)
	}
	if userMsg.Role != RoleUser || assistantMsg.Role != RoleAssistant {
		t.Fatalf("unexpected roles: %v %v", userMsg.Role, assistantMsg.Role)
	}

	count, err := store.MessageCount(ctx, conv.ID)
	if err != nil || count != 2 {
		t.Fatalf("expected message count 2, got %d (err %v)", count, err)
	}

	recent, err := store.RecentMessages(ctx, conv.ID, 10)
	if err != nil || len(recent) != 2 {
		t.Fatalf("expected 2 recent messages, got %d (err %v)", len(recent), err)
	}
	if recent[0].Role != RoleUser || recent[1].Role != RoleAssistant {
		t.Errorf("expected user-then-assistant order, got %v then %v", recent[0].Role, recent[1].Role)
	}

	if err := store.PutSummary(ctx, ConversationSummary{ConversationID: conv.ID, Text: "Discussed scene 1.", UpToMessageCount: 2}); err != nil {
		t.Fatalf("put summary: %v", err)
	}
	sum, err := store.GetSummary(ctx, conv.ID)
	if err != nil || sum.Text != "Discussed scene 1." {
		t.Fatalf("unexpected summary: %+v (err %v)", sum, err)
	}

	if err := store.PutWorkingSet(ctx, WorkingSet{
		ConversationID:          conv.ID,
		LastUserIntent:          "global_question",
		LastAssistantCommitment: "I suggest tightening the opening.",
		ActiveScenePositions:    []int{0},
		ActiveCharacterNames:    []string{"JANE"},
	}); err != nil {
		t.Fatalf("put working set: %v", err)
	}
	ws, err := store.GetWorkingSet(ctx, conv.ID)
	if err != nil || len(ws.ActiveScenePositions) != 1 || ws.ActiveScenePositions[0] != 0 {
		t.Fatalf("unexpected working set: %+v (err %v)", ws, err)
	}

	if err := store.AppendTokenUsage(ctx, TokenUsageRow{
		ConversationID: conv.ID, Model: "claude-sonnet-4-20250514",
		InputTokens: 100, OutputTokens: 50, CostUSD: 0.00105,
	}); err != nil {
		t.Fatalf("append token usage: %v", err)
	}
	usage, err := store.TokenUsageForConversation(ctx, conv.ID)
	if err != nil || len(usage) != 1 || usage[0].InputTokens != 100 {
		t.Fatalf("unexpected token usage: %+v (err %v)", usage, err)
	}
}
