package tools

import (
	"context"
	"fmt"
	"strings"
)

const defaultNeighborCount = 1

// GetSceneContextTool returns a target scene plus its neighbors.
type GetSceneContextTool struct {
	deps *Dependencies
}

// NewGetSceneContextTool creates a new get_scene_context tool bound to deps.
func NewGetSceneContextTool(deps *Dependencies) *GetSceneContextTool {
	return &GetSceneContextTool{deps: deps}
}

// Name returns the tool name.
func (t *GetSceneContextTool) Name() string { return ToolGetSceneContext }

// Definition returns the tool's schema.
func (t *GetSceneContextTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGetSceneContext,
		Description: "Get a target scene plus its neighboring scenes on each side.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"scene_index":    {Type: "integer", Description: "0-based target scene position"},
				"neighbor_count": {Type: "integer", Description: "Neighbors on each side. Defaults to 1."},
			},
			Required: []string{"scene_index"},
		},
	}
}

// Exec executes the tool.
func (t *GetSceneContextTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	target, ok := intArg(args, "scene_index")
	if !ok {
		return errorResult("scene_index is required and must be an integer")
	}
	neighbors := intArgOrDefault(args, "neighbor_count", defaultNeighborCount)

	positions := contextWindow(target, neighbors)
	return renderContextWindow(ctx, t.deps, positions, map[int]bool{target: true})
}

// contextWindow returns the positions within neighbors of target, target inclusive, clamped at 0.
func contextWindow(target, neighbors int) []int {
	start := target - neighbors
	if start < 0 {
		start = 0
	}
	positions := make([]int, 0, 2*neighbors+1)
	for p := start; p <= target+neighbors; p++ {
		positions = append(positions, p)
	}
	return positions
}

// renderContextWindow fetches and formats a deduplicated set of scenes, marking targets.
func renderContextWindow(ctx context.Context, deps *Dependencies, positions []int, targets map[int]bool) (*ExecResult, error) {
	positions = dedupePositions(positions)

	var sb strings.Builder
	for _, position := range positions {
		scene, err := deps.Store.GetScene(ctx, deps.ScriptID, position)
		if err != nil || scene == nil {
			continue
		}
		marker := ""
		if targets[position] {
			marker = " [TARGET]"
		}
		fmt.Fprintf(&sb, "--- SCENE %d (index %d)%s: %s ---\n%s\n\n",
			userNumber(position), position, marker, scene.Heading, truncate(scene.Content, maxContextChars))
	}

	if sb.Len() == 0 {
		return errorResult("no scenes found for the requested context window")
	}
	return &ExecResult{Content: sb.String()}, nil
}
