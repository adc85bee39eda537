// Package evidence converts raw tool-result accumulation from the agent loop
// into a ranked, truncated block suitable for a synthesis prompt.
package evidence

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	// maxItemChars caps a single evidence item's content before scoring and assembly.
	maxItemChars = 1500
	// maxTotalChars caps the cumulative size of the assembled evidence block.
	maxTotalChars = 8000
	// maxItems caps the number of items included regardless of remaining budget.
	maxItems = 10
	// phraseBonusLen is how much of the question's prefix counts for the phrase-match bonus.
	phraseBonusLen = 20
)

// RawResult is one tool invocation's raw output, as accumulated by the agent loop.
type RawResult struct {
	ToolName string
	ToolArgs map[string]any
	Result   string
}

// Item is one piece of evidence extracted from a tool result, scored against
// the user's question.
type Item struct {
	ToolName  string
	Content   string
	Positions []int
	Score     float64
}

// Evidence is the ranked, truncated, formatted evidence block handed to the
// synthesis prompt.
type Evidence struct {
	Items     []Item
	Block     string
	TotalChars int
	Truncated bool
	Omitted   int
}

var sceneHeaderPattern = regexp.MustCompile(`(?m)^--- SCENE (\d+) \(index (\d+)\)`)

// Build parses, scores, sorts, and truncates raw tool results into an
// Evidence block for the given user question.
func Build(question string, raw []RawResult) Evidence {
	items := make([]Item, 0, len(raw)*2)
	for _, r := range raw {
		items = append(items, parseResult(r)...)
	}

	for i := range items {
		items[i].Score = score(question, items[i].Content)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})

	return assemble(question, items)
}

// parseResult splits a batch tool's result on its "--- SCENE k ---" delimiters
// into one Item per scene; other tools produce a single Item.
func parseResult(r RawResult) []Item {
	matches := sceneHeaderPattern.FindAllStringSubmatchIndex(r.Result, -1)
	if len(matches) == 0 {
		return []Item{{
			ToolName:  r.ToolName,
			Content:   truncate(r.Result, maxItemChars),
			Positions: positionsFromArgs(r.ToolArgs),
		}}
	}

	items := make([]Item, 0, len(matches))
	for i, m := range matches {
		start := m[0]
		end := len(r.Result)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		position := atoiSafe(r.Result[m[4]:m[5]])
		items = append(items, Item{
			ToolName:  r.ToolName,
			Content:   truncate(strings.TrimSpace(r.Result[start:end]), maxItemChars),
			Positions: []int{position},
		})
	}
	return items
}

// positionsFromArgs best-effort extracts scene positions from a tool's input
// arguments (e.g. scene_index, scene_indices) for non-batch tool results.
func positionsFromArgs(args map[string]any) []int {
	if args == nil {
		return nil
	}
	if v, ok := args["scene_index"]; ok {
		if n, ok := toInt(v); ok {
			return []int{n}
		}
	}
	if v, ok := args["scene_indices"]; ok {
		if arr, ok := v.([]any); ok {
			positions := make([]int, 0, len(arr))
			for _, e := range arr {
				if n, ok := toInt(e); ok {
					positions = append(positions, n)
				}
			}
			return positions
		}
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// score is the baseline relevance scorer: normalized token-set overlap
// between question and content, plus a phrase-match bonus.
func score(question, content string) float64 {
	qTokens := tokenSet(question)
	cTokens := tokenSet(content)
	if len(qTokens) == 0 {
		return 0
	}

	overlap := 0
	for t := range qTokens {
		if cTokens[t] {
			overlap++
		}
	}
	overlapScore := float64(overlap) / float64(len(qTokens))

	bonus := 0.0
	prefix := question
	if len(prefix) > phraseBonusLen {
		prefix = prefix[:phraseBonusLen]
	}
	if prefix != "" && strings.Contains(strings.ToLower(content), strings.ToLower(prefix)) {
		bonus = 0.5
	}

	return overlapScore + bonus
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[strings.Trim(f, ".,!?;:\"'()")] = true
	}
	return set
}

// assemble takes items in score order and renders the final evidence block,
// stopping at the item or char budget and recording what was omitted.
func assemble(question string, items []Item) Evidence {
	var kept []Item
	total := 0
	truncated := false

	for _, item := range items {
		if len(kept) >= maxItems {
			truncated = true
			break
		}
		if total+len(item.Content) > maxTotalChars {
			truncated = true
			break
		}
		kept = append(kept, item)
		total += len(item.Content)
	}

	omitted := len(items) - len(kept)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Evidence for: %q (%d sources)\n\n", question, len(kept))
	for i, item := range kept {
		fmt.Fprintf(&sb, "[%d] From %s (Scenes: %s): %s\n\n", i+1, item.ToolName, formatPositions(item.Positions), item.Content)
	}
	if truncated && omitted > 0 {
		fmt.Fprintf(&sb, "...%d lower-relevance results omitted\n", omitted)
	}

	return Evidence{
		Items:      kept,
		Block:      sb.String(),
		TotalChars: total,
		Truncated:  truncated,
		Omitted:    omitted,
	}
}

func formatPositions(positions []int) string {
	if len(positions) == 0 {
		return "n/a"
	}
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = fmt.Sprintf("%d", p+1)
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + " [...truncated...]"
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}
