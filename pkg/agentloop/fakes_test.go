package agentloop

import (
	"context"

	"screenplay-core/pkg/agent/llm"
	"screenplay-core/pkg/config"
	"screenplay-core/pkg/logx"
	"screenplay-core/pkg/tools"
)

func testLogger() *logx.Logger {
	return logx.NewLogger("agentloop-test")
}

// fakeLLMClient returns a scripted sequence of CompletionResponses and a
// fixed streamed answer for the synthesis call.
type fakeLLMClient struct {
	responses    []llm.CompletionResponse
	call         int
	streamChunks []string
}

func (f *fakeLLMClient) Complete(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	if f.call >= len(f.responses) {
		return llm.CompletionResponse{StopReason: "end_turn", Content: "(no more scripted responses)"}, nil
	}
	resp := f.responses[f.call]
	f.call++
	return resp, nil
}

func (f *fakeLLMClient) Stream(_ context.Context, _ llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, len(f.streamChunks)+1)
	for _, c := range f.streamChunks {
		ch <- llm.StreamChunk{Content: c}
	}
	ch <- llm.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (f *fakeLLMClient) GetDefaultConfig() config.Model {
	return config.Model{Name: "fake-model"}
}

// fakeExecutor is a minimal ToolExecutor backed by an in-memory tool map.
type fakeExecutor struct {
	impls map[string]tools.Tool
	metas []tools.ToolMeta
}

func (f *fakeExecutor) Get(name string) (tools.Tool, error) {
	if t, ok := f.impls[name]; ok {
		return t, nil
	}
	return nil, errNotFound(name)
}

func (f *fakeExecutor) List() []tools.ToolMeta { return f.metas }

type errNotFound string

func (e errNotFound) Error() string { return "tool not found: " + string(e) }

// fakeTool returns a fixed result regardless of arguments.
type fakeTool struct {
	name    string
	content string
}

func (t *fakeTool) Name() string { return t.name }
func (t *fakeTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{Name: t.name, Description: "fake tool"}
}
func (t *fakeTool) Exec(_ context.Context, _ map[string]any) (*tools.ExecResult, error) {
	return &tools.ExecResult{Content: t.content}, nil
}
