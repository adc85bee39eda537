// Package metrics is the Telemetry collaborator: it computes the per-call
// pricing formula, records token usage and cost as Prometheus metrics, and
// tracks the operational counters (tool calls, agent-loop iterations,
// classification fallback rate) the rest of the system emits into. It's
// distinct from pkg/agent/middleware/metrics, which instruments individual
// LLM client calls for retry/latency purposes; this package owns the
// domain-level accounting built on persistence.TokenUsageRow and the
// pricing model below.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"screenplay-core/pkg/agent/llm"
	"screenplay-core/pkg/config"
)

// cacheCreationMultiplier and cacheReadMultiplier implement the premium/discount
// the pricing formula applies to cache-creation and cache-read tokens
// relative to the model's plain input-token rate.
const (
	cacheCreationMultiplier = 1.25
	cacheReadMultiplier     = 0.1
)

// ComputeCost implements the billing pricing formula:
//
//	cost = input_tokens*p_in + cache_creation*1.25*p_in + cache_read*0.1*p_in + output_tokens*p_out
//
// Rates are per-token; config.Model's CostInputPerMTok/CostOutputPerMTok are
// per-million-tokens, so they're divided down before multiplying.
func ComputeCost(usage llm.Usage, model config.Model) float64 {
	pIn := model.CostInputPerMTok / 1_000_000
	pOut := model.CostOutputPerMTok / 1_000_000

	cost := float64(usage.InputTokens) * pIn
	cost += float64(usage.CacheCreationTokens) * cacheCreationMultiplier * pIn
	cost += float64(usage.CacheReadTokens) * cacheReadMultiplier * pIn
	cost += float64(usage.OutputTokens) * pOut
	return cost
}

// Telemetry records the domain-level counters and histograms for one
// process: tool execution outcomes, agent-loop completions, classification
// fallback rate, and token usage/cost broken out by model and intent.
type Telemetry struct {
	toolCallsTotal          *prometheus.CounterVec
	agentLoopIterations     *prometheus.HistogramVec
	agentLoopCompletions    *prometheus.CounterVec
	classificationFallbacks *prometheus.CounterVec
	tokenUsageTotal         *prometheus.CounterVec
	costTotalUSD            *prometheus.CounterVec
}

// New registers and returns a Telemetry instance. Callers construct exactly
// one per process (Prometheus collectors panic on duplicate registration).
func New() *Telemetry {
	return &Telemetry{
		toolCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenplay_tool_calls_total",
				Help: "Total tool executions by tool name and outcome",
			},
			[]string{"tool", "status"},
		),
		agentLoopIterations: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screenplay_agent_loop_iterations",
				Help:    "Number of tool-calling iterations per agent-loop run",
				Buckets: []float64{1, 2, 3, 4, 5, 8, 10},
			},
			[]string{"stop_reason"},
		),
		agentLoopCompletions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenplay_agent_loop_completions_total",
				Help: "Total agent-loop runs by final stop reason",
			},
			[]string{"stop_reason"},
		),
		classificationFallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenplay_classification_fallback_total",
				Help: "Router classifications by whether they fell back to heuristic defaults",
			},
			[]string{"reason"},
		),
		tokenUsageTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenplay_llm_tokens_total",
				Help: "Total tokens by model, intent, and token type",
			},
			[]string{"model", "intent", "token_type"},
		),
		costTotalUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenplay_llm_cost_usd_total",
				Help: "Total computed cost in USD by model and intent",
			},
			[]string{"model", "intent"},
		),
	}
}

// RecordToolCall records one tool execution's outcome.
func (t *Telemetry) RecordToolCall(tool string, isError bool) {
	status := "ok"
	if isError {
		status = "error"
	}
	t.toolCallsTotal.WithLabelValues(tool, status).Inc()
}

// RecordAgentLoopComplete records one finished agent-loop run: how many
// tool-calling iterations it took and why it stopped.
func (t *Telemetry) RecordAgentLoopComplete(stopReason string, iterations int) {
	t.agentLoopIterations.WithLabelValues(stopReason).Observe(float64(iterations))
	t.agentLoopCompletions.WithLabelValues(stopReason).Inc()
}

// RecordClassification records whether the router's dimension-confidence
// heuristic pass was sufficient, or it fell back to an LLM call (or, on LLM
// error, to heuristic defaults).
func (t *Telemetry) RecordClassification(fellBack bool, reason string) {
	if !fellBack {
		reason = "none"
	}
	t.classificationFallbacks.WithLabelValues(reason).Inc()
}

// RecordTokenUsage computes the cost of usage under model's rates and
// records both the raw token counts and the cost as Prometheus series,
// returning the computed cost so the caller can persist it on the
// persistence.TokenUsageRow.
func (t *Telemetry) RecordTokenUsage(model config.Model, intent string, usage llm.Usage) float64 {
	cost := ComputeCost(usage, model)

	t.tokenUsageTotal.WithLabelValues(model.Name, intent, "input").Add(float64(usage.InputTokens))
	t.tokenUsageTotal.WithLabelValues(model.Name, intent, "cache_creation").Add(float64(usage.CacheCreationTokens))
	t.tokenUsageTotal.WithLabelValues(model.Name, intent, "cache_read").Add(float64(usage.CacheReadTokens))
	t.tokenUsageTotal.WithLabelValues(model.Name, intent, "output").Add(float64(usage.OutputTokens))
	t.costTotalUSD.WithLabelValues(model.Name, intent).Add(cost)

	return cost
}
