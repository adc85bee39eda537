// Package ratelimit provides rate limiting middleware for LLM clients.
package ratelimit

import (
	"context"

	"screenplay-core/pkg/agent/llm"
	"screenplay-core/pkg/agent/middleware/metrics"
	"screenplay-core/pkg/config"
)

// Middleware returns a middleware function that wraps an LLM client with rate limiting.
// It estimates token usage and acquires tokens before making requests.
func Middleware(limiterMap *ProviderLimiterMap, estimator TokenEstimator, recorder metrics.Recorder) llm.Middleware {
	if estimator == nil {
		estimator = NewDefaultTokenEstimator()
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				modelConfig := next.GetDefaultConfig()

				limiter, err := limiterMap.GetLimiter(modelConfig.Name)
				if err != nil {
					recorder.IncThrottle(modelConfig.Name, "no_limiter")
					return llm.CompletionResponse{}, err //nolint:wrapcheck // middleware passes errors through unchanged
				}

				promptTokens := estimator.EstimatePrompt(req)
				totalTokens := promptTokens + req.MaxTokens

				release, err := limiter.Acquire(ctx, totalTokens, "")
				if err != nil {
					recorder.IncThrottle(modelConfig.Name, "rate_limit")
					return llm.CompletionResponse{}, err //nolint:wrapcheck // middleware passes errors through unchanged
				}
				defer release()

				return next.Complete(ctx, req)
			},
			func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
				modelConfig := next.GetDefaultConfig()

				limiter, err := limiterMap.GetLimiter(modelConfig.Name)
				if err != nil {
					recorder.IncThrottle(modelConfig.Name, "no_limiter")
					return nil, err //nolint:wrapcheck // middleware passes errors through unchanged
				}

				promptTokens := estimator.EstimatePrompt(req)
				totalTokens := promptTokens + req.MaxTokens

				release, err := limiter.Acquire(ctx, totalTokens, "")
				if err != nil {
					recorder.IncThrottle(modelConfig.Name, "rate_limit")
					return nil, err //nolint:wrapcheck // middleware passes errors through unchanged
				}

				ch, err := next.Stream(ctx, req)
				release()
				return ch, err //nolint:wrapcheck // middleware passes errors through unchanged
			},
			func() config.Model {
				return next.GetDefaultConfig()
			},
		)
	}
}
