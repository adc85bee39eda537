package tools

import (
	"context"
	"fmt"
	"strings"
)

const defaultSearchLimit = 10

// SearchScriptTool delegates semantic search to the Retrieval Service.
type SearchScriptTool struct {
	deps *Dependencies
}

// NewSearchScriptTool creates a new search_script tool bound to deps.
func NewSearchScriptTool(deps *Dependencies) *SearchScriptTool {
	return &SearchScriptTool{deps: deps}
}

// Name returns the tool name.
func (t *SearchScriptTool) Name() string { return ToolSearchScript }

// Definition returns the tool's schema.
func (t *SearchScriptTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolSearchScript,
		Description: "Semantically search the script for scenes matching a natural-language query.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"query":     {Type: "string", Description: "Natural-language search query"},
				"limit":     {Type: "integer", Description: "Maximum results. Defaults to 10."},
				"act":       {Type: "string", Description: "Accepted but not applied: results are not filtered by act"},
				"character": {Type: "string", Description: "Optional character-membership filter"},
			},
			Required: []string{"query"},
		},
	}
}

// Exec executes the tool.
func (t *SearchScriptTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	query, ok := stringArg(args, "query")
	if !ok {
		return errorResult("query is required")
	}
	limit := intArgOrDefault(args, "limit", defaultSearchLimit)

	filters := SearchFilters{}
	if act, ok := stringArg(args, "act"); ok {
		filters.Act = act
	}
	if character, ok := stringArg(args, "character"); ok {
		filters.Character = character
	}

	results, err := t.deps.Searcher.Search(ctx, t.deps.ScriptID, query, limit, filters)
	if err != nil {
		return errorResult("search failed: %v", err)
	}
	if len(results) == 0 {
		return errorResult("no matching scenes found for query %q", query)
	}

	var sb strings.Builder
	for rank, r := range results {
		fmt.Fprintf(&sb, "%d. Scene %d (index %d, score %.3f): %s\n   %s\n",
			rank+1, userNumber(r.Scene.Position), r.Scene.Position, r.Score, r.Scene.Heading, r.Summary)
	}
	return &ExecResult{Content: sb.String()}, nil
}
