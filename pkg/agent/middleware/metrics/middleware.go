// Package metrics provides metrics middleware for LLM clients.
package metrics

import (
	"context"
	"time"

	"screenplay-core/pkg/agent/llm"
	"screenplay-core/pkg/config"
	"screenplay-core/pkg/logx"
)

// MetaProvider supplies the RequestMeta (conversation id, intent) for the
// call currently in flight. A caller constructs one bound to the request it
// is handling, since the LLM client itself carries no ambient state.
type MetaProvider func() RequestMeta

// UsageExtractor is a function that extracts token usage from a request and response.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor reads token counts directly from the response's usage
// block (populated by the LLM collaborator), falling back to zero if absent.
func DefaultUsageExtractor(_ llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	return resp.Usage.InputTokens, resp.Usage.OutputTokens
}

// Middleware returns a middleware function that records metrics for LLM operations.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, metaProvider MetaProvider, log *logx.Logger) llm.Middleware {
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}
	if log == nil {
		log = logx.NewLogger("metrics")
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				modelConfig := next.GetDefaultConfig()
				meta := metaProvider()

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
				}

				errorType := ""
				if err != nil {
					errorType = getErrorType(err)
				}

				recorder.ObserveRequest(modelConfig.Name, meta, promptTokens, completionTokens, err == nil, errorType, duration)

				if err == nil {
					log.Debug("llm call model=%s conversation=%s intent=%s latency=%.3gs prompt_tokens=%d completion_tokens=%d",
						modelConfig.Name, meta.ConversationID, meta.Intent, duration.Seconds(), promptTokens, completionTokens)
				} else {
					log.Warn("llm call failed model=%s conversation=%s intent=%s error_type=%s: %v",
						modelConfig.Name, meta.ConversationID, meta.Intent, errorType, err)
				}

				return resp, err //nolint:wrapcheck // middleware passes errors through unchanged
			},
			func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
				start := time.Now()
				modelConfig := next.GetDefaultConfig()
				meta := metaProvider()

				ch, err := next.Stream(ctx, req)
				duration := time.Since(start)

				errorType := ""
				if err != nil {
					errorType = getErrorType(err)
				}

				recorder.ObserveRequest(modelConfig.Name, meta, 0, 0, err == nil, errorType, duration)

				if err != nil {
					log.Warn("llm stream setup failed model=%s conversation=%s: %v", modelConfig.Name, meta.ConversationID, err)
				}

				return ch, err //nolint:wrapcheck // middleware passes errors through unchanged
			},
			func() config.Model {
				return next.GetDefaultConfig()
			},
		)
	}
}

// getErrorType classifies errors for metrics labeling.
func getErrorType(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	switch {
	case errStr == "circuit breaker is OPEN" || errStr == "circuit breaker is HALF_OPEN":
		return "circuit_breaker"
	case errStr == "context deadline exceeded":
		return "timeout"
	case errStr == "context canceled":
		return "canceled"
	default:
		return "unknown"
	}
}
