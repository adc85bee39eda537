package agentloop

import (
	"context"
	"testing"
	"time"

	"screenplay-core/pkg/agent/llm"
	"screenplay-core/pkg/tools"
)

func drain(t *testing.T, ch <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for stream events")
		}
	}
}

func lastEvent(events []StreamEvent) StreamEvent {
	return events[len(events)-1]
}

func TestLoop_NoToolsGoesStraightToSynthesis(t *testing.T) {
	client := &fakeLLMClient{streamChunks: []string{"The answer is ", "forty-two."}}
	executor := &fakeExecutor{}
	loop := New(client, executor, testLogger())

	events := drain(t, loop.Run(context.Background(), Request{
		Question:     "What is the answer?",
		ToolsEnabled: false,
	}))

	if lastEvent(events).Kind != EventStreamEnd {
		t.Fatalf("expected stream to end with EventStreamEnd, got %v", lastEvent(events).Kind)
	}
	var text string
	for _, ev := range events {
		if ev.Kind == EventText {
			text += ev.Text
		}
	}
	if text != "The answer is forty-two." {
		t.Errorf("expected synthesized text, got %q", text)
	}
}

func TestLoop_DirectAnswerOnEndTurnWithNoToolActivity(t *testing.T) {
	client := &fakeLLMClient{
		responses: []llm.CompletionResponse{
			{StopReason: "end_turn", Content: "Jane is the protagonist."},
		},
	}
	executor := &fakeExecutor{metas: []tools.ToolMeta{{Name: tools.ToolGetScene}}}
	loop := New(client, executor, testLogger())

	events := drain(t, loop.Run(context.Background(), Request{
		Question:     "Who is the protagonist?",
		ToolsEnabled: true,
	}))

	found := false
	for _, ev := range events {
		if ev.Kind == EventText && ev.Text == "Jane is the protagonist." {
			found = true
		}
	}
	if !found {
		t.Errorf("expected direct answer text in events, got %+v", events)
	}
	if lastEvent(events).Kind != EventStreamEnd {
		t.Fatalf("expected final event to be EventStreamEnd, got %v", lastEvent(events).Kind)
	}
}

func TestLoop_ExecutesToolsThenSynthesizes(t *testing.T) {
	client := &fakeLLMClient{
		responses: []llm.CompletionResponse{
			{
				StopReason: "tool_use",
				ToolCalls: []llm.ToolCall{
					{ID: "call-1", Name: tools.ToolGetScene, Parameters: map[string]any{"scene_index": float64(0)}},
				},
			},
			{StopReason: "end_turn", Content: ""},
		},
		streamChunks: []string{"Scene one establishes Jane."},
	}
	executor := &fakeExecutor{
		impls: map[string]tools.Tool{
			tools.ToolGetScene: &fakeTool{name: tools.ToolGetScene, content: "Scene 1: INT. HOUSE - DAY"},
		},
		metas: []tools.ToolMeta{{Name: tools.ToolGetScene}},
	}
	loop := New(client, executor, testLogger())

	events := drain(t, loop.Run(context.Background(), Request{
		Question:     "Describe the opening scene.",
		ToolsEnabled: true,
	}))

	var sawStatus, sawText bool
	var complete StreamEvent
	for _, ev := range events {
		switch ev.Kind {
		case EventStatus:
			sawStatus = true
		case EventText:
			sawText = true
		case EventComplete:
			complete = ev
		}
	}
	if !sawStatus {
		t.Error("expected a status event for the tool call")
	}
	if !sawText {
		t.Error("expected synthesized answer text")
	}
	if complete.ToolCallsMade != 1 {
		t.Errorf("expected 1 tool call recorded, got %d", complete.ToolCallsMade)
	}
	if len(complete.ToolsUsed) != 1 || complete.ToolsUsed[0] != tools.ToolGetScene {
		t.Errorf("expected get_scene recorded as used, got %v", complete.ToolsUsed)
	}
}

func TestLoop_RecoversFromMaxTokensThenSucceeds(t *testing.T) {
	client := &fakeLLMClient{
		responses: []llm.CompletionResponse{
			{StopReason: "max_tokens", Content: "partial"},
			{StopReason: "end_turn", Content: "Final answer after recovery."},
		},
		streamChunks: []string{"unused"},
	}
	executor := &fakeExecutor{metas: []tools.ToolMeta{{Name: tools.ToolGetScene}}}
	loop := New(client, executor, testLogger())

	events := drain(t, loop.Run(context.Background(), Request{
		Question:     "Tell me about the script.",
		ToolsEnabled: true,
	}))

	var complete StreamEvent
	for _, ev := range events {
		if ev.Kind == EventComplete {
			complete = ev
		}
	}
	if complete.RecoveryAttempts != 1 {
		t.Errorf("expected 1 recovery attempt recorded, got %d", complete.RecoveryAttempts)
	}
	found := false
	for _, ev := range events {
		if ev.Kind == EventText && ev.Text == "Final answer after recovery." {
			found = true
		}
	}
	if !found {
		t.Error("expected the post-recovery answer to stream as the direct response")
	}
}

func TestLoop_StopsAfterMaxIterationsAndSynthesizesFromCollectedEvidence(t *testing.T) {
	toolCall := llm.CompletionResponse{
		StopReason: "tool_use",
		ToolCalls: []llm.ToolCall{
			{ID: "call-x", Name: tools.ToolGetScene, Parameters: map[string]any{"scene_index": float64(0)}},
		},
	}
	client := &fakeLLMClient{
		responses:    []llm.CompletionResponse{toolCall, toolCall},
		streamChunks: []string{"Synthesized from gathered evidence."},
	}
	executor := &fakeExecutor{
		impls: map[string]tools.Tool{
			tools.ToolGetScene: &fakeTool{name: tools.ToolGetScene, content: "Scene content here"},
		},
		metas: []tools.ToolMeta{{Name: tools.ToolGetScene}},
	}
	loop := New(client, executor, testLogger())

	events := drain(t, loop.Run(context.Background(), Request{
		Question:      "Analyze everything.",
		ToolsEnabled:  true,
		MaxIterations: 2,
	}))

	var complete StreamEvent
	for _, ev := range events {
		if ev.Kind == EventComplete {
			complete = ev
		}
	}
	if complete.StopReason != "max_iterations" {
		t.Errorf("expected stop_reason max_iterations, got %q", complete.StopReason)
	}
	if complete.ToolCallsMade != 2 {
		t.Errorf("expected 2 tool calls across both iterations, got %d", complete.ToolCallsMade)
	}
}
