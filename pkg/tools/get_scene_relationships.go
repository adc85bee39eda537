package tools

import (
	"context"
	"fmt"
	"strings"

	"screenplay-core/pkg/screenplay"
)

// GetSceneRelationshipsTool lists pairwise scene relationships (setup/payoff,
// callback, parallel, echo) across the script.
type GetSceneRelationshipsTool struct {
	deps *Dependencies
}

// NewGetSceneRelationshipsTool creates a new get_scene_relationships tool bound to deps.
func NewGetSceneRelationshipsTool(deps *Dependencies) *GetSceneRelationshipsTool {
	return &GetSceneRelationshipsTool{deps: deps}
}

// Name returns the tool name.
func (t *GetSceneRelationshipsTool) Name() string { return ToolGetSceneRelationships }

// Definition returns the tool's schema.
func (t *GetSceneRelationshipsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGetSceneRelationships,
		Description: "List pairwise scene relationships (setup/payoff, callback, parallel, echo) across the script.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"relationship_type": {
					Type:        "string",
					Description: "Optional filter. Omit for all relationship types.",
					Enum:        []string{"setup_payoff", "callback", "parallel", "echo"},
				},
			},
		},
	}
}

// Exec executes the tool.
func (t *GetSceneRelationshipsTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	var relType screenplay.SceneRelationshipType
	if raw, ok := stringArg(args, "relationship_type"); ok {
		relType = screenplay.SceneRelationshipType(raw)
	}

	relationships, err := t.deps.Store.ListSceneRelationships(ctx, t.deps.ScriptID, relType)
	if err != nil {
		return errorResult("could not load scene relationships: %v", err)
	}
	if len(relationships) == 0 {
		return errorResult("no scene relationships found")
	}

	var sb strings.Builder
	for _, rel := range relationships {
		fmt.Fprintf(&sb, "[%s] scene %d (index %d) -> scene %d (index %d)\n",
			rel.Type, userNumber(rel.Setup), rel.Setup, userNumber(rel.Payoff), rel.Payoff)
	}
	return &ExecResult{Content: sb.String()}, nil
}
