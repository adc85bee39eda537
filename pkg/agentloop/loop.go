package agentloop

import (
	"context"
	"fmt"
	"strings"

	"screenplay-core/pkg/agent/llm"
	"screenplay-core/pkg/evidence"
	"screenplay-core/pkg/logx"
	"screenplay-core/pkg/tools"
)

// ToolExecutor is the narrow tool-provider slice the loop depends on.
type ToolExecutor interface {
	Get(name string) (tools.Tool, error)
	List() []tools.ToolMeta
}

// Request carries everything one invocation of the loop needs beyond the
// already-assembled initial messages (built by the Context Builder, §4.3).
type Request struct {
	Question       string
	Intent         string
	ConversationID string
	Messages       []llm.CompletionMessage
	MaxIterations  int
	ToolsEnabled   bool
}

// Loop runs the multi-turn tool-calling agent loop against an LLMClient.
type Loop struct {
	client   llm.LLMClient
	executor ToolExecutor
	logger   *logx.Logger
}

// New creates a Loop bound to client and executor.
func New(client llm.LLMClient, executor ToolExecutor, logger *logx.Logger) *Loop {
	return &Loop{client: client, executor: executor, logger: logger}
}

// Run executes the agent loop and emits StreamEvents on the returned
// channel. The channel is closed after the stream_end event.
func (l *Loop) Run(ctx context.Context, req Request) <-chan StreamEvent {
	out := make(chan StreamEvent, 8)
	go func() {
		defer close(out)
		l.run(ctx, req, out)
	}()
	return out
}

func (l *Loop) run(ctx context.Context, req Request, out chan<- StreamEvent) {
	if !req.ToolsEnabled {
		l.synthesize(ctx, req, nil, stopReasonEndTurn, 0, llm.Usage{}, nil, out)
		return
	}

	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	toolDefs := l.toolDefinitions()
	messages := append([]llm.CompletionMessage{}, req.Messages...)

	var (
		rawResults    []evidence.RawResult
		toolsUsed     []string
		toolCallsMade int
		totalUsage    llm.Usage
		recovery      int
		finalReason   string
	)

	out <- StreamEvent{Kind: EventThinking, Thinking: "Reviewing the script to answer your question…"}

	for iteration := 0; iteration < maxIterations; iteration++ {
		resp, err := l.client.Complete(ctx, llm.CompletionRequest{
			Messages: messages,
			Tools:    toolDefs,
		})
		if err != nil {
			out <- StreamEvent{Kind: EventText, Text: fmt.Sprintf("I ran into an error answering that: %v", err)}
			out <- StreamEvent{Kind: EventStreamEnd, ConversationID: req.ConversationID}
			return
		}
		accumulateUsage(&totalUsage, resp.Usage)

		if resp.StopReason == stopReasonMaxTokens && recovery < MaxRecoveryAttempts {
			recovery++
			messages = append(messages, assistantMessage(resp))
			messages = append(messages, llm.CompletionMessage{
				Role:    llm.RoleUser,
				Content: "Continue your tool planning. Output ONLY tool calls.",
			})
			continue
		}

		if resp.StopReason != stopReasonToolUse {
			finalReason = resp.StopReason
			if len(rawResults) == 0 {
				// Natural end with no tool activity: the response text is the final answer.
				out <- StreamEvent{Kind: EventText, Text: resp.Content}
				out <- StreamEvent{
					Kind:             EventComplete,
					Usage:            totalUsage,
					ToolsUsed:        toolsUsed,
					ToolCallsMade:    toolCallsMade,
					StopReason:       resp.StopReason,
					RecoveryAttempts: recovery,
				}
				out <- StreamEvent{Kind: EventStreamEnd, ConversationID: req.ConversationID}
				return
			}
			break
		}

		results := l.executeTools(ctx, resp.ToolCalls, out)
		for i, tc := range resp.ToolCalls {
			toolCallsMade++
			toolsUsed = appendUnique(toolsUsed, tc.Name)
			rawResults = append(rawResults, evidence.RawResult{
				ToolName: tc.Name,
				ToolArgs: tc.Parameters,
				Result:   results[i].Content,
			})
		}

		messages = append(messages, assistantMessage(resp))
		messages = append(messages, toolResultMessage(resp.ToolCalls, results))

		if iteration == maxIterations-1 {
			finalReason = "max_iterations"
		}
	}

	if finalReason == "" {
		finalReason = "max_iterations"
	}

	l.synthesize(ctx, req, rawResults, finalReason, recovery, totalUsage, toolsUsed, out)
	_ = toolCallsMade
}

// synthesize builds the evidence block (if any tool results were collected)
// and streams a final synthesized answer.
func (l *Loop) synthesize(
	ctx context.Context,
	req Request,
	raw []evidence.RawResult,
	stopReason string,
	recovery int,
	usage llm.Usage,
	toolsUsed []string,
	out chan<- StreamEvent,
) {
	maxTokens := DefaultSynthesisMaxTokens
	var prompt string

	if len(raw) > 0 {
		ev := evidence.Build(req.Question, raw)
		prompt = fmt.Sprintf(
			"Answer this question: %s\n\nUsing this evidence:\n%s\n\n%s\n\nCRITICAL: start directly with the answer, cite scene numbers, do not mention the tools.",
			req.Question, ev.Block, formatInstructions(req.Intent),
		)
	} else {
		prompt = fmt.Sprintf(
			"Answer this question: %s\n\n%s\n\nCRITICAL: start directly with the answer, cite scene numbers, do not mention the tools.",
			req.Question, formatInstructions(req.Intent),
		)
	}

	messages := append([]llm.CompletionMessage{}, req.Messages...)
	messages = append(messages, llm.CompletionMessage{Role: llm.RoleUser, Content: prompt})

	stream, err := l.client.Stream(ctx, llm.CompletionRequest{
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		out <- StreamEvent{Kind: EventText, Text: fmt.Sprintf("I ran into an error composing the answer: %v", err)}
		out <- StreamEvent{Kind: EventStreamEnd, ConversationID: req.ConversationID}
		return
	}

	toolCallsMade := len(raw)
	for chunk := range stream {
		if chunk.Error != nil {
			l.logger.Error("synthesis stream error: %v", chunk.Error)
			break
		}
		if chunk.Content != "" {
			out <- StreamEvent{Kind: EventText, Text: chunk.Content}
		}
		if chunk.Done {
			break
		}
	}

	out <- StreamEvent{
		Kind:             EventComplete,
		Usage:            usage,
		ToolsUsed:        toolsUsed,
		ToolCallsMade:    toolCallsMade,
		StopReason:       stopReason,
		RecoveryAttempts: recovery,
	}
	out <- StreamEvent{Kind: EventStreamEnd, ConversationID: req.ConversationID}
}

// executeTools runs every requested tool call, emitting a status event per
// call, and returns results in the same order as calls.
func (l *Loop) executeTools(ctx context.Context, calls []llm.ToolCall, out chan<- StreamEvent) []*tools.ExecResult {
	results := make([]*tools.ExecResult, len(calls))
	for i := range calls {
		call := &calls[i]
		out <- StreamEvent{Kind: EventStatus, Status: statusTemplate(call), StatusTool: call.Name}

		tool, err := l.executor.Get(call.Name)
		if err != nil {
			results[i] = &tools.ExecResult{Content: fmt.Sprintf("tool %q is not available: %v", call.Name, err), IsError: true}
			continue
		}

		result, err := tool.Exec(ctx, call.Parameters)
		if err != nil {
			results[i] = &tools.ExecResult{Content: fmt.Sprintf("tool %q failed: %v", call.Name, err), IsError: true}
			continue
		}
		results[i] = result
	}
	return results
}

func (l *Loop) toolDefinitions() []tools.ToolDefinition {
	metas := l.executor.List()
	defs := make([]tools.ToolDefinition, len(metas))
	for i, m := range metas {
		defs[i] = tools.ToolDefinition{Name: m.Name, Description: m.Description, InputSchema: m.InputSchema}
	}
	return defs
}

func assistantMessage(resp llm.CompletionResponse) llm.CompletionMessage {
	return llm.CompletionMessage{
		Role:      llm.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	}
}

// toolResultMessage emits tool_result blocks in reversed order relative to
// the model's call order, so the oldest result lands last in the context
// window rather than first — a recency-bias mitigation.
func toolResultMessage(calls []llm.ToolCall, results []*tools.ExecResult) llm.CompletionMessage {
	toolResults := make([]llm.ToolResult, len(calls))
	for i := range calls {
		j := len(calls) - 1 - i
		toolResults[i] = llm.ToolResult{
			ToolCallID: calls[j].ID,
			Content:    results[j].Content,
			IsError:    results[j].IsError,
		}
	}
	return llm.CompletionMessage{Role: llm.RoleUser, ToolResults: toolResults}
}

func accumulateUsage(total *llm.Usage, delta llm.Usage) {
	total.InputTokens += delta.InputTokens
	total.CacheCreationTokens += delta.CacheCreationTokens
	total.CacheReadTokens += delta.CacheReadTokens
	total.OutputTokens += delta.OutputTokens
}

func appendUnique(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names
		}
	}
	return append(names, name)
}

// statusTemplate renders a human-readable status line for a tool call.
func statusTemplate(call *llm.ToolCall) string {
	switch call.Name {
	case tools.ToolGetScene:
		return fmt.Sprintf("Reading scene %v…", call.Parameters["scene_index"])
	case tools.ToolGetScenes, tools.ToolGetScenesContext:
		return "Reading scenes…"
	case tools.ToolGetSceneContext:
		return fmt.Sprintf("Reading context around scene %v…", call.Parameters["scene_index"])
	case tools.ToolGetCharacterScenes:
		return fmt.Sprintf("Looking up scenes for %v…", call.Parameters["character_name"])
	case tools.ToolSearchScript:
		return "Searching the script…"
	case tools.ToolAnalyzePacing:
		return "Analyzing pacing…"
	case tools.ToolGetPlotThreads:
		return "Gathering plot threads…"
	case tools.ToolGetSceneRelationships:
		return "Gathering scene relationships…"
	default:
		return fmt.Sprintf("Running %s…", call.Name)
	}
}

// formatInstructions returns the response-format instructions appended to
// the synthesis prompt for the given intent.
func formatInstructions(intent string) string {
	switch intent {
	case "local_edit":
		return "Provide one revised version if requested, with at most 3 sentences of rationale."
	case "scene_feedback":
		return "Structure as strength / improvement / specific suggestion, at most 150 words."
	case "global_question":
		return "At most 5 bullets, each referencing a scene number, at most 200 words total."
	case "brainstorm":
		return "Offer 3-5 options, 1-2 sentences each, at most 200 words total."
	case "narrative_analysis":
		return "Structure as finding / evidence with scene numbers / implication, at most 200 words."
	default:
		return strings.TrimSpace("Answer directly and concisely, citing scene numbers where relevant.")
	}
}
