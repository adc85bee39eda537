package tools

import (
	"context"
	"fmt"
)

// GetSceneTool returns a single scene's heading and full content.
type GetSceneTool struct {
	deps *Dependencies
}

// NewGetSceneTool creates a new get_scene tool bound to deps.
func NewGetSceneTool(deps *Dependencies) *GetSceneTool {
	return &GetSceneTool{deps: deps}
}

// Name returns the tool name.
func (t *GetSceneTool) Name() string { return ToolGetScene }

// Definition returns the tool's schema.
func (t *GetSceneTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGetScene,
		Description: "Get a single scene by its 0-based index: heading and full content, capped at a character limit.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"scene_index": {Type: "integer", Description: "0-based scene position"},
			},
			Required: []string{"scene_index"},
		},
	}
}

// Exec executes the tool.
func (t *GetSceneTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	position, ok := intArg(args, "scene_index")
	if !ok {
		return errorResult("scene_index is required and must be an integer")
	}

	scene, err := t.deps.Store.GetScene(ctx, t.deps.ScriptID, position)
	if err != nil || scene == nil {
		return errorResult("scene not found: no scene at index %d (user-facing Scene %d)", position, userNumber(position))
	}

	content := truncate(scene.Content, maxSceneChars)
	return &ExecResult{
		Content: fmt.Sprintf("Scene %d (index %d): %s\n\n%s", userNumber(position), position, scene.Heading, content),
	}, nil
}

// intArg extracts an integer argument, handling the float64 shape JSON decoding produces.
func intArg(args map[string]any, key string) (int, bool) {
	v, exists := args[key]
	if !exists {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

// intArgOrDefault is like intArg but returns defaultVal when absent or invalid.
func intArgOrDefault(args map[string]any, key string, defaultVal int) int {
	if n, ok := intArg(args, key); ok {
		return n
	}
	return defaultVal
}

// stringArg extracts a string argument.
func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok && v != ""
}

// boolArg extracts a bool argument, defaulting to false.
func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}
