package tools

import (
	"context"
	"fmt"
	"strings"
)

const maxBatchScenes = 10

// GetScenesTool returns several scenes in one call.
type GetScenesTool struct {
	deps *Dependencies
}

// NewGetScenesTool creates a new get_scenes tool bound to deps.
func NewGetScenesTool(deps *Dependencies) *GetScenesTool {
	return &GetScenesTool{deps: deps}
}

// Name returns the tool name.
func (t *GetScenesTool) Name() string { return ToolGetScenes }

// Definition returns the tool's schema.
func (t *GetScenesTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGetScenes,
		Description: "Get multiple scenes by 0-based index in one call (at most 10).",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"scene_indices":       {Type: "array", Description: "0-based scene positions, at most 10"},
				"max_chars_per_scene": {Type: "integer", Description: "Character cap per scene. Defaults to 2000."},
			},
			Required: []string{"scene_indices"},
		},
	}
}

// Exec executes the tool.
func (t *GetScenesTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	positions, ok := intArrayArg(args, "scene_indices")
	if !ok || len(positions) == 0 {
		return errorResult("scene_indices is required and must be a non-empty array of integers")
	}
	if len(positions) > maxBatchScenes {
		positions = positions[:maxBatchScenes]
	}
	maxChars := intArgOrDefault(args, "max_chars_per_scene", maxContextChars)

	userNumbers := make([]string, len(positions))
	for i, p := range positions {
		userNumbers[i] = fmt.Sprintf("%d", userNumber(p))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Requested scenes (user numbers): %s\n", strings.Join(userNumbers, ", "))

	for _, position := range positions {
		scene, err := t.deps.Store.GetScene(ctx, t.deps.ScriptID, position)
		fmt.Fprintf(&sb, "\n--- SCENE %d (index %d): ", userNumber(position), position)
		if err != nil || scene == nil {
			sb.WriteString("not found ---\n[missing]\n")
			continue
		}
		sb.WriteString(scene.Heading + " ---\n")

		content := scene.Content
		if content == "" {
			if summary, sErr := t.deps.Store.GetSceneSummary(ctx, t.deps.ScriptID, position); sErr == nil && summary != nil {
				content = "[Summary] " + summary.Summary
			}
		}
		sb.WriteString(truncate(content, maxChars))
		sb.WriteString("\n")
	}

	return &ExecResult{Content: sb.String()}, nil
}

// intArrayArg extracts an integer array argument, handling []any of float64 (JSON decode shape).
func intArrayArg(args map[string]any, key string) ([]int, bool) {
	raw, ok := args[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case float64:
			out = append(out, int(n))
		case int:
			out = append(out, n)
		default:
			return nil, false
		}
	}
	return out, true
}
