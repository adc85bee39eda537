package tools

import (
	"context"
	"strings"
	"testing"
)

func TestGetCharacterScenesTool_FindsNormalizedName(t *testing.T) {
	deps := &Dependencies{Store: &fakeStore{scenes: testScenes()}, ScriptID: "script-1"}
	tool := NewGetCharacterScenesTool(deps)

	result, err := tool.Exec(context.Background(), map[string]any{"character_name": "mark (o.s.)"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %s", result.Content)
	}
	if !strings.Contains(result.Content, "Scene 2 (index 1)") || !strings.Contains(result.Content, "Scene 3 (index 2)") {
		t.Errorf("expected scenes 2 and 3, got %q", result.Content)
	}
}

func TestGetCharacterScenesTool_IncludesFullText(t *testing.T) {
	deps := &Dependencies{Store: &fakeStore{scenes: testScenes()}, ScriptID: "script-1"}
	tool := NewGetCharacterScenesTool(deps)

	result, err := tool.Exec(context.Background(), map[string]any{
		"character_name":    "JANE",
		"include_full_text": true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Content, "Jane enters the kitchen.") {
		t.Errorf("expected full scene content, got %q", result.Content)
	}
}

func TestGetCharacterScenesTool_MissingCharacterName(t *testing.T) {
	deps := &Dependencies{Store: &fakeStore{scenes: testScenes()}, ScriptID: "script-1"}
	tool := NewGetCharacterScenesTool(deps)

	result, err := tool.Exec(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected an error result when character_name is missing")
	}
}

func TestGetCharacterScenesTool_NotFound(t *testing.T) {
	deps := &Dependencies{Store: &fakeStore{scenes: testScenes()}, ScriptID: "script-1"}
	tool := NewGetCharacterScenesTool(deps)

	result, err := tool.Exec(context.Background(), map[string]any{"character_name": "NOBODY"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected an error result for a character with no scenes")
	}
}
