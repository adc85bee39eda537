package tools

import (
	"context"
	"fmt"
	"strings"

	"screenplay-core/pkg/screenplay"
)

// GetPlotThreadsTool lists longitudinal plot threads across the script.
type GetPlotThreadsTool struct {
	deps *Dependencies
}

// NewGetPlotThreadsTool creates a new get_plot_threads tool bound to deps.
func NewGetPlotThreadsTool(deps *Dependencies) *GetPlotThreadsTool {
	return &GetPlotThreadsTool{deps: deps}
}

// Name returns the tool name.
func (t *GetPlotThreadsTool) Name() string { return ToolGetPlotThreads }

// Definition returns the tool's schema.
func (t *GetPlotThreadsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGetPlotThreads,
		Description: "List longitudinal plot threads (character arcs, plot, subplot, theme) and the scenes each touches.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"thread_type": {
					Type:        "string",
					Description: "Optional filter. Omit for all thread types.",
					Enum:        []string{"character_arc", "plot", "subplot", "theme"},
				},
			},
		},
	}
}

// Exec executes the tool.
func (t *GetPlotThreadsTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	var threadType screenplay.PlotThreadType
	if raw, ok := stringArg(args, "thread_type"); ok {
		threadType = screenplay.PlotThreadType(raw)
	}

	threads, err := t.deps.Store.ListPlotThreads(ctx, t.deps.ScriptID, threadType)
	if err != nil {
		return errorResult("could not load plot threads: %v", err)
	}
	if len(threads) == 0 {
		return errorResult("no plot threads found")
	}

	var sb strings.Builder
	for _, thread := range threads {
		numbers := make([]string, len(thread.ScenePositions))
		for i, p := range thread.ScenePositions {
			numbers[i] = fmt.Sprintf("%d (index %d)", userNumber(p), p)
		}
		fmt.Fprintf(&sb, "%s [%s]: %s\n", thread.Name, thread.Type, strings.Join(numbers, ", "))
	}
	return &ExecResult{Content: sb.String()}, nil
}
