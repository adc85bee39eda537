package router

import "strings"

// confidenceThreshold is the default per-dimension confidence below which
// Classify issues a small LLM call rather than trusting the heuristic pass.
const confidenceThreshold = 0.6

// shortMessageWords is the word-count cutoff below which a message is a
// strong follow-up signal on its own.
const shortMessageWords = 8

var followUpMarkers = []string{"also", "what about", "you mentioned", "going back to"}

var disagreementMarkers = []string{"i don't know", "i disagree", "but i", "why doesn't"}

var referentialPronouns = []string{"this ", "that ", "these ", "those "}

var rewriteTriggers = []string{"rewrite", "rewrite this", "revise this", "give me a rewrite"}

var diagnoseTriggers = []string{"what's wrong", "diagnose", "problem with", "what is wrong"}

var brainstormTriggers = []string{"brainstorm", "ideas for", "what if", "options for"}

var factualTriggers = []string{"what is a", "what is the", "define ", "how do you", "how does one"}

var narrativeTriggers = []string{"pacing", "structure", "theme", "arc", "overall"}

var sceneFeedbackTriggers = []string{"feedback", "thoughts on this scene", "how is this scene", "does this scene work"}

var priorAdviceTriggers = []string{"you mentioned", "earlier you said", "that suggestion", "your suggestion"}

// dimension pairs a classified value with the heuristic pass's confidence
// in it.
type dimension[T any] struct {
	value      T
	confidence float64
}

// heuristicPass classifies all five dimensions using zero-token keyword and
// pattern matching. Each dimension carries its own confidence so Classify
// can decide, per-dimension, whether an LLM fallback call is warranted.
type heuristicPass struct {
	intent      dimension[Intent]
	domain      dimension[Domain]
	requestType dimension[RequestType]
	continuity  dimension[Continuity]
	refersTo    dimension[RefersTo]
}

func runHeuristics(req Request) heuristicPass {
	lower := strings.ToLower(req.Message)
	wordCount := len(strings.Fields(req.Message))

	return heuristicPass{
		intent:      classifyIntent(lower),
		domain:      classifyDomain(lower),
		requestType: classifyRequestType(lower),
		continuity:  classifyContinuity(req, lower, wordCount),
		refersTo:    classifyRefersTo(req, lower),
	}
}

func classifyIntent(lower string) dimension[Intent] {
	switch {
	case containsAny(lower, brainstormTriggers):
		return dimension[Intent]{IntentBrainstorm, 0.75}
	case containsAny(lower, narrativeTriggers):
		return dimension[Intent]{IntentNarrativeAnalysis, 0.7}
	case containsAny(lower, sceneFeedbackTriggers):
		return dimension[Intent]{IntentSceneFeedback, 0.7}
	case containsAny(lower, []string{"rewrite", "change this", "fix this", "tighten this", "edit this"}):
		return dimension[Intent]{IntentLocalEdit, 0.7}
	default:
		return dimension[Intent]{IntentGlobalQuestion, 0.5}
	}
}

func classifyDomain(lower string) dimension[Domain] {
	switch {
	case containsAny(lower, []string{"scene", "character", "the script", "my screenplay", "this draft"}):
		return dimension[Domain]{DomainScript, 0.7}
	case containsAny(lower, []string{"three act structure", "what is a logline", "screenwriting in general", "industry standard"}):
		return dimension[Domain]{DomainGeneral, 0.7}
	default:
		return dimension[Domain]{DomainScript, 0.5}
	}
}

func classifyRequestType(lower string) dimension[RequestType] {
	switch {
	case containsAny(lower, rewriteTriggers):
		return dimension[RequestType]{RequestRewrite, 0.9}
	case containsAny(lower, diagnoseTriggers):
		return dimension[RequestType]{RequestDiagnose, 0.75}
	case containsAny(lower, brainstormTriggers):
		return dimension[RequestType]{RequestBrainstorm, 0.75}
	case containsAny(lower, factualTriggers):
		return dimension[RequestType]{RequestFactual, 0.7}
	default:
		// Rewrite requires an explicit trigger word; absent one, default to
		// suggest regardless of how the rest of the message reads.
		return dimension[RequestType]{RequestSuggest, 0.5}
	}
}

func classifyContinuity(req Request, lower string, wordCount int) dimension[Continuity] {
	switch {
	case containsAny(lower, followUpMarkers):
		return dimension[Continuity]{ContinuityFollowUp, 0.8}
	case containsAny(lower, disagreementMarkers):
		return dimension[Continuity]{ContinuityFollowUp, 0.8}
	case hasPrefix(lower, referentialPronouns):
		return dimension[Continuity]{ContinuityFollowUp, 0.7}
	case len(req.LastAssistantScenes) > 0 && req.CurrentSceneNumber != 0 && containsInt(req.LastAssistantScenes, req.CurrentSceneNumber):
		return dimension[Continuity]{ContinuityFollowUp, 0.75}
	case wordCount > 0 && wordCount < shortMessageWords && req.HasActiveConversation:
		return dimension[Continuity]{ContinuityFollowUp, 0.6}
	case req.HasActiveConversation:
		// Losing context is worse than redundant context: default to
		// follow_up within an active conversation rather than new_topic.
		return dimension[Continuity]{ContinuityFollowUp, 0.5}
	default:
		return dimension[Continuity]{ContinuityNewTopic, 0.6}
	}
}

func classifyRefersTo(req Request, lower string) dimension[RefersTo] {
	switch {
	case containsAny(lower, priorAdviceTriggers):
		return dimension[RefersTo]{RefersToPriorAdvice, 0.7}
	case req.CurrentSceneNumber != 0 || containsAny(lower, []string{"scene "}):
		return dimension[RefersTo]{RefersToScene, 0.6}
	default:
		return dimension[RefersTo]{RefersToNone, 0.5}
	}
}

// minConfidence returns the lowest confidence across all five dimensions.
func (h heuristicPass) minConfidence() float64 {
	min := h.intent.confidence
	for _, c := range []float64{h.domain.confidence, h.requestType.confidence, h.continuity.confidence, h.refersTo.confidence} {
		if c < min {
			min = c
		}
	}
	return min
}

func (h heuristicPass) toClassification() Classification {
	return Classification{
		Intent:      h.intent.value,
		Domain:      h.domain.value,
		RequestType: h.requestType.value,
		Continuity:  h.continuity.value,
		RefersTo:    h.refersTo.value,
		Confidence:  h.minConfidence(),
	}
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
