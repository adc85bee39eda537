package tools

import (
	"context"
	"strings"
	"testing"
)

func TestSearchScriptTool_RendersRankedResults(t *testing.T) {
	scenes := testScenes()
	deps := &Dependencies{
		Searcher: &fakeSearcher{results: []RetrievalResult{
			{Scene: scenes[1], Summary: "Jane runs down the street", Score: 0.91},
			{Scene: scenes[0], Summary: "Jane enters the kitchen", Score: 0.42},
		}},
		ScriptID: "script-1",
	}
	tool := NewSearchScriptTool(deps)

	result, err := tool.Exec(context.Background(), map[string]any{"query": "Jane running"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %s", result.Content)
	}
	if !strings.Contains(result.Content, "1. Scene 2 (index 1, score 0.910)") {
		t.Errorf("expected top-ranked result first, got %q", result.Content)
	}
}

func TestSearchScriptTool_MissingQuery(t *testing.T) {
	deps := &Dependencies{Searcher: &fakeSearcher{}, ScriptID: "script-1"}
	tool := NewSearchScriptTool(deps)

	result, err := tool.Exec(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected an error result when query is missing")
	}
}

func TestSearchScriptTool_NoResults(t *testing.T) {
	deps := &Dependencies{Searcher: &fakeSearcher{results: []RetrievalResult{}}, ScriptID: "script-1"}
	tool := NewSearchScriptTool(deps)

	result, err := tool.Exec(context.Background(), map[string]any{"query": "nothing matches"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected an error result when no scenes match")
	}
}
