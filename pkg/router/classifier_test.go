package router

import (
	"context"
	"testing"

	"screenplay-core/pkg/agent/llm"
	"screenplay-core/pkg/config"
)

// fakeLLMClient scripts a single Complete response for the classification
// fallback call.
type fakeLLMClient struct {
	content string
	err     error
}

func (f *fakeLLMClient) Complete(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	if f.err != nil {
		return llm.CompletionResponse{}, f.err
	}
	return llm.CompletionResponse{Content: f.content, StopReason: "end_turn"}, nil
}

func (f *fakeLLMClient) Stream(_ context.Context, _ llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, 1)
	ch <- llm.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (f *fakeLLMClient) GetDefaultConfig() config.Model { return config.Model{Name: "fake"} }

func TestClassify_HeuristicRewriteTrigger(t *testing.T) {
	c := New(nil, nil)
	got := c.Classify(context.Background(), Request{Message: "Please rewrite this scene to be punchier."})

	if got.RequestType != RequestRewrite {
		t.Errorf("expected request_type rewrite, got %q", got.RequestType)
	}
}

func TestClassify_NoExplicitRewriteTriggerDefaultsToSuggest(t *testing.T) {
	c := New(nil, nil)
	got := c.Classify(context.Background(), Request{Message: "Can you improve this scene's dialogue?"})

	if got.RequestType != RequestSuggest {
		t.Errorf("expected request_type suggest without explicit rewrite trigger, got %q", got.RequestType)
	}
}

func TestClassify_FollowUpMarkerDetected(t *testing.T) {
	c := New(nil, nil)
	got := c.Classify(context.Background(), Request{
		Message:               "Also, what about Jane's motivation in scene 3?",
		HasActiveConversation: true,
	})

	if got.Continuity != ContinuityFollowUp {
		t.Errorf("expected follow_up continuity, got %q", got.Continuity)
	}
}

func TestClassify_NoActiveConversationDefaultsNewTopic(t *testing.T) {
	c := New(nil, nil)
	got := c.Classify(context.Background(), Request{Message: "Tell me about three-act structure in general."})

	if got.Continuity != ContinuityNewTopic {
		t.Errorf("expected new_topic with no active conversation, got %q", got.Continuity)
	}
}

func TestClassify_UserOverrideBypassesContinuityDetection(t *testing.T) {
	c := New(nil, nil)
	got := c.Classify(context.Background(), Request{
		Message:               "Also, going back to what you said before about the ending",
		HasActiveConversation: true,
		TopicModeOverride:     TopicModeNewTopic,
	})

	if got.Continuity != ContinuityNewTopic {
		t.Errorf("expected override to force new_topic despite follow-up markers, got %q", got.Continuity)
	}
}

func TestClassify_LowConfidenceFallsBackToLLM(t *testing.T) {
	c := New(&fakeLLMClient{content: `{"intent":"narrative_analysis","domain":"script","request_type":"diagnose","continuity":"follow_up","refers_to":"thread","confidence":0.9}`}, nil)

	got := c.Classify(context.Background(), Request{Message: "what do you think", HasActiveConversation: true})

	if got.Intent != IntentNarrativeAnalysis || got.RequestType != RequestDiagnose {
		t.Errorf("expected LLM fallback result, got %+v", got)
	}
}

func TestClassify_LLMErrorDegradesToHeuristic(t *testing.T) {
	heuristicOnly := New(nil, nil).Classify(context.Background(), Request{Message: "ok"})

	c := New(&fakeLLMClient{err: errBoom{}}, nil)
	got := c.Classify(context.Background(), Request{Message: "ok"})

	if got.Intent != heuristicOnly.Intent || got.RequestType != heuristicOnly.RequestType {
		t.Errorf("expected degrade to heuristic result on LLM error, got %+v want %+v", got, heuristicOnly)
	}
}

func TestClassify_InvalidLLMJSONDegradesToHeuristic(t *testing.T) {
	heuristicOnly := New(nil, nil).Classify(context.Background(), Request{Message: "ok"})

	c := New(&fakeLLMClient{content: "not json"}, nil)
	got := c.Classify(context.Background(), Request{Message: "ok"})

	if got.Intent != heuristicOnly.Intent {
		t.Errorf("expected degrade to heuristic result on invalid JSON, got %+v", got)
	}
}

func TestClassify_OutOfDomainLLMValueDegradesToHeuristic(t *testing.T) {
	heuristicOnly := New(nil, nil).Classify(context.Background(), Request{Message: "ok"})

	c := New(&fakeLLMClient{content: `{"intent":"not_a_real_intent","domain":"script","request_type":"suggest","continuity":"follow_up","refers_to":"none","confidence":0.9}`}, nil)
	got := c.Classify(context.Background(), Request{Message: "ok"})

	if got.Intent != heuristicOnly.Intent {
		t.Errorf("expected degrade to heuristic result on out-of-domain value, got %+v", got)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
