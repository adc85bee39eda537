package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"screenplay-core/pkg/agent/llm"
	"screenplay-core/pkg/logx"
)

// classifyPrompt is the system prompt for the fallback LLM call. It asks for
// strict JSON covering all five dimensions so a single round trip resolves
// every dimension that the heuristic pass was unsure about, not just the
// weak ones — simpler to validate and cheaper than asking dimension by
// dimension.
const classifyPrompt = `Classify the user's message along five dimensions and respond with ONLY a JSON object, no prose, matching exactly this shape:
{"intent":"...","domain":"...","request_type":"...","continuity":"...","refers_to":"...","confidence":0.0}

intent: one of local_edit, scene_feedback, global_question, brainstorm, narrative_analysis
domain: one of script, general, hybrid
request_type: one of suggest, rewrite, diagnose, brainstorm, factual (rewrite only if the user explicitly asked for a rewrite)
continuity: one of follow_up, new_topic, uncertain
refers_to: one of scene, character, thread, prior_advice, none
confidence: your overall confidence in this classification, 0 to 1`

// Classifier maps an incoming message to a five-dimension Classification.
// It never returns an error: on any failure of the LLM fallback call it
// degrades to the heuristic pass's result instead.
type Classifier struct {
	client    llm.LLMClient
	logger    *logx.Logger
	threshold float64
}

// New creates a Classifier. client may be nil, in which case Classify never
// attempts the LLM fallback and returns the heuristic pass's result as-is —
// useful for tests and for heuristic-only deployments.
func New(client llm.LLMClient, logger *logx.Logger) *Classifier {
	if logger == nil {
		logger = logx.NewLogger("router")
	}
	return &Classifier{client: client, logger: logger, threshold: confidenceThreshold}
}

// Classify runs the heuristic pass, and — unless a user override resolves
// continuity outright and every other dimension already cleared the
// confidence threshold — issues one small LLM call to resolve the rest.
func (c *Classifier) Classify(ctx context.Context, req Request) Classification {
	result, _ := c.ClassifyObserved(ctx, req)
	return result
}

// FallbackReason says why Classify needed more than the zero-token heuristic
// pass, for the classification-fallback-rate telemetry counter.
type FallbackReason string

const (
	// FallbackNone means the heuristic pass alone cleared the confidence
	// threshold on every dimension; no LLM call was made.
	FallbackNone FallbackReason = "none"
	// FallbackLLM means the heuristic pass was under-confident and the LLM
	// fallback call resolved it successfully.
	FallbackLLM FallbackReason = "llm"
	// FallbackLLMError means the LLM fallback call was attempted but failed
	// or returned an unusable result, so the heuristic pass's result was
	// used despite being under-confident.
	FallbackLLMError FallbackReason = "llm_error"
)

// ClassifyObserved is Classify plus the FallbackReason, so callers can record
// accurate fallback-rate telemetry without Classify itself needing to carry
// a telemetry dependency.
func (c *Classifier) ClassifyObserved(ctx context.Context, req Request) (Classification, FallbackReason) {
	heuristic := runHeuristics(req)

	if req.TopicModeOverride != "" {
		heuristic.continuity = overrideContinuity(req.TopicModeOverride)
	}

	if heuristic.minConfidence() >= c.threshold || c.client == nil {
		return heuristic.toClassification(), FallbackNone
	}

	llmResult, err := c.classifyWithLLM(ctx, req.Message)
	if err != nil {
		c.logger.Warn("router: LLM classification fallback failed, using heuristic defaults: %v", err)
		return heuristic.toClassification(), FallbackLLMError
	}

	if req.TopicModeOverride != "" {
		llmResult.Continuity = heuristic.continuity.value
	}
	return llmResult, FallbackLLM
}

func overrideContinuity(mode TopicModeOverride) dimension[Continuity] {
	switch mode {
	case TopicModeContinue:
		return dimension[Continuity]{ContinuityFollowUp, 1.0}
	case TopicModeNewTopic:
		return dimension[Continuity]{ContinuityNewTopic, 1.0}
	default:
		return dimension[Continuity]{ContinuityUncertain, 1.0}
	}
}

// classifyWithLLM issues the fallback call and validates the result. An
// invalid or malformed response is an error here; the caller degrades to
// the heuristic pass rather than propagating it.
func (c *Classifier) classifyWithLLM(ctx context.Context, message string) (Classification, error) {
	resp, err := c.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			llm.NewSystemMessage(classifyPrompt),
			llm.NewUserMessage(message),
		},
		MaxTokens: 200,
	})
	if err != nil {
		return Classification{}, fmt.Errorf("classification call: %w", err)
	}

	var raw struct {
		Intent      string  `json:"intent"`
		Domain      string  `json:"domain"`
		RequestType string  `json:"request_type"`
		Continuity  string  `json:"continuity"`
		RefersTo    string  `json:"refers_to"`
		Confidence  float64 `json:"confidence"`
	}
	content := strings.TrimSpace(resp.Content)
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Classification{}, fmt.Errorf("parse classification JSON: %w", err)
	}

	result := Classification{
		Intent:      Intent(raw.Intent),
		Domain:      Domain(raw.Domain),
		RequestType: RequestType(raw.RequestType),
		Continuity:  Continuity(raw.Continuity),
		RefersTo:    RefersTo(raw.RefersTo),
		Confidence:  raw.Confidence,
	}
	if err := validate(result); err != nil {
		return Classification{}, err
	}
	return result, nil
}

func validate(c Classification) error {
	switch c.Intent {
	case IntentLocalEdit, IntentSceneFeedback, IntentGlobalQuestion, IntentBrainstorm, IntentNarrativeAnalysis:
	default:
		return fmt.Errorf("invalid intent %q", c.Intent)
	}
	switch c.Domain {
	case DomainScript, DomainGeneral, DomainHybrid:
	default:
		return fmt.Errorf("invalid domain %q", c.Domain)
	}
	switch c.RequestType {
	case RequestSuggest, RequestRewrite, RequestDiagnose, RequestBrainstorm, RequestFactual:
	default:
		return fmt.Errorf("invalid request_type %q", c.RequestType)
	}
	switch c.Continuity {
	case ContinuityFollowUp, ContinuityNewTopic, ContinuityUncertain:
	default:
		return fmt.Errorf("invalid continuity %q", c.Continuity)
	}
	switch c.RefersTo {
	case RefersToScene, RefersToCharacter, RefersToThread, RefersToPriorAdvice, RefersToNone:
	default:
		return fmt.Errorf("invalid refers_to %q", c.RefersTo)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("invalid confidence %v", c.Confidence)
	}
	return nil
}
