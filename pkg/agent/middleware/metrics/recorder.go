// Package metrics provides metrics recording for LLM client operations.
package metrics

import "time"

// RequestMeta labels a single LLM call with the telemetry dimensions this
// domain cares about: which conversation it belongs to and which router
// intent triggered it. This replaces the agent-FSM StateProvider concept
// (story/agent/state) with the conversation-core equivalent.
type RequestMeta struct {
	ConversationID string
	Intent         string
}

// Recorder defines the interface for recording LLM operation metrics.
type Recorder interface {
	// ObserveRequest records metrics for a completed LLM request.
	ObserveRequest(
		model string,
		meta RequestMeta,
		promptTokens, completionTokens int,
		success bool,
		errorType string,
		duration time.Duration,
	)

	// IncThrottle records a rate-limit or backpressure event for model.
	IncThrottle(model, reason string)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder { return &NoopRecorder{} }

// ObserveRequest does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveRequest(string, RequestMeta, int, int, bool, string, time.Duration) {}

// IncThrottle does nothing in the no-op recorder.
func (n *NoopRecorder) IncThrottle(string, string) {}
