package tools

import "context"

// GetScenesContextTool returns the union of context windows for several target scenes.
type GetScenesContextTool struct {
	deps *Dependencies
}

// NewGetScenesContextTool creates a new get_scenes_context tool bound to deps.
func NewGetScenesContextTool(deps *Dependencies) *GetScenesContextTool {
	return &GetScenesContextTool{deps: deps}
}

// Name returns the tool name.
func (t *GetScenesContextTool) Name() string { return ToolGetScenesContext }

// Definition returns the tool's schema.
func (t *GetScenesContextTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGetScenesContext,
		Description: "Get the union of context windows (target + neighbors) for several scenes, deduplicated.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"scene_indices":  {Type: "array", Description: "0-based target scene positions"},
				"neighbor_count": {Type: "integer", Description: "Neighbors on each side. Defaults to 1."},
			},
			Required: []string{"scene_indices"},
		},
	}
}

// Exec executes the tool.
func (t *GetScenesContextTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	targetPositions, ok := intArrayArg(args, "scene_indices")
	if !ok || len(targetPositions) == 0 {
		return errorResult("scene_indices is required and must be a non-empty array of integers")
	}
	neighbors := intArgOrDefault(args, "neighbor_count", defaultNeighborCount)

	targets := make(map[int]bool, len(targetPositions))
	var allPositions []int
	for _, target := range targetPositions {
		targets[target] = true
		allPositions = append(allPositions, contextWindow(target, neighbors)...)
	}

	return renderContextWindow(ctx, t.deps, allPositions, targets)
}
