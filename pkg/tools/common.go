package tools

import (
	"context"
	"fmt"

	"screenplay-core/pkg/screenplay"
)

// maxSceneChars is the default cap on a single scene's content in get_scene output.
const maxSceneChars = 3000

// maxContextChars is the default cap on each scene's content in context-window output.
const maxContextChars = 2000

// SearchFilters narrows a search_script query. The Retrieval Service applies
// only Character; Act and KeySceneOnly are carried but do not filter results.
type SearchFilters struct {
	Act          string
	Character    string
	KeySceneOnly bool
}

// RetrievalResult is one ranked hit from the script searcher.
type RetrievalResult struct {
	Scene   screenplay.Scene
	Summary string
	Score   float64
}

// ScriptSearcher is the narrow slice of the Retrieval Service that
// search_script delegates to — semantic search over one script's scenes.
type ScriptSearcher interface {
	Search(ctx context.Context, scriptID, query string, limit int, filters SearchFilters) ([]RetrievalResult, error)
}

// Dependencies bundles the collaborators tools need, bound to one script for
// the lifetime of a request. The agent loop constructs one Dependencies per
// request and passes it to NewProvider.
type Dependencies struct {
	Store    screenplay.ScriptStore
	Searcher ScriptSearcher
	ScriptID string
}

// errorResult wraps msg as a failed ExecResult rather than a Go error, so the
// model sees a clear "not found"/"invalid" message instead of a transport-level failure.
func errorResult(format string, args ...any) (*ExecResult, error) {
	return &ExecResult{Content: fmt.Sprintf(format, args...), IsError: true}, nil
}

// userNumber converts a 0-based scene position to the 1-based number shown to users.
func userNumber(position int) int {
	return position + 1
}

// truncate caps s at n characters, marking truncation explicitly.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n[... truncated ...]"
}

// dedupePositions returns positions in first-seen order with duplicates removed.
func dedupePositions(positions []int) []int {
	seen := make(map[int]struct{}, len(positions))
	out := make([]int, 0, len(positions))
	for _, p := range positions {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
