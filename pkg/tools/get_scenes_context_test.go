package tools

import (
	"context"
	"strings"
	"testing"
)

func TestGetScenesContextTool_UnionsAndDedupesWindows(t *testing.T) {
	deps := &Dependencies{Store: &fakeStore{scenes: testScenes()}, ScriptID: "script-1"}
	tool := NewGetScenesContextTool(deps)

	result, err := tool.Exec(context.Background(), map[string]any{
		"scene_indices": []any{float64(0), float64(1)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %s", result.Content)
	}
	if strings.Count(result.Content, "SCENE 1 (index 0)") != 1 {
		t.Errorf("expected overlapping scene 0 to appear exactly once, got %q", result.Content)
	}
	if strings.Count(result.Content, "[TARGET]") != 2 {
		t.Errorf("expected two target markers, got %q", result.Content)
	}
}

func TestGetScenesContextTool_MissingSceneIndices(t *testing.T) {
	deps := &Dependencies{Store: &fakeStore{scenes: testScenes()}, ScriptID: "script-1"}
	tool := NewGetScenesContextTool(deps)

	result, err := tool.Exec(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected an error result when scene_indices is missing")
	}
}
