// Package validation provides response validation middleware for LLM clients.
package validation

import (
	"context"
	"fmt"
	"strings"

	"screenplay-core/pkg/agent/llm"
	"screenplay-core/pkg/agent/llmerrors"
	"screenplay-core/pkg/config"
	"screenplay-core/pkg/logx"
	"screenplay-core/pkg/tools"
)

// EmptyResponseValidator provides validation and retry-with-guidance for LLM
// responses in the agent loop: a response with neither content nor a tool
// call can't be surfaced to the user or drive the next loop iteration.
type EmptyResponseValidator struct{}

// NewEmptyResponseValidator creates a new empty-response validator.
func NewEmptyResponseValidator() *EmptyResponseValidator {
	return &EmptyResponseValidator{}
}

// Middleware returns a middleware function that validates LLM responses and
// retries once with guidance before giving up.
//
// - First occurrence: appends a guidance message to the request and retries immediately.
// - Second occurrence: returns ErrorTypeEmptyResponse for the agent loop to handle as a failure exit.
func (v *EmptyResponseValidator) Middleware() llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				const maxEmptyAttempts = 2

				logger := logx.NewLogger("empty-response-validator")

				for attempt := 1; attempt <= maxEmptyAttempts; attempt++ {
					resp, err := next.Complete(ctx, req)

					if err != nil && !llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse) {
						//nolint:wrapcheck // Middleware intentionally passes through errors unchanged
						return resp, err
					}

					isEmpty := err != nil || isEmptyResponse(resp)
					if !isEmpty {
						return resp, nil
					}

					logEmptyResponseDetails(logger, attempt, resp, err)

					if attempt == 1 {
						logger.Warn("retrying with guidance after empty response (attempt 1/2)")
						req = withGuidanceMessage(req)
						continue
					}

					logger.Error("empty response persisted after guidance, escalating")
					break
				}

				return llm.CompletionResponse{}, llmerrors.NewError(
					llmerrors.ErrorTypeEmptyResponse,
					"received no content or tool call after guidance retry",
				)
			},
			func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
				return next.Stream(ctx, req)
			},
			func() config.Model {
				return next.GetDefaultConfig()
			},
		)
	}
}

// isEmptyResponse reports whether a response carries neither a tool call nor
// non-whitespace content — the one shape the agent loop can't act on.
func isEmptyResponse(resp llm.CompletionResponse) bool {
	if len(resp.ToolCalls) > 0 {
		return false
	}
	return strings.TrimSpace(resp.Content) == ""
}

// withGuidanceMessage returns req with a user-role guidance message appended,
// nudging the model toward a tool call or a direct answer.
func withGuidanceMessage(req llm.CompletionRequest) llm.CompletionRequest {
	toolNames := extractToolNames(req.Tools)

	var guidance string
	switch {
	case len(toolNames) == 0:
		guidance = "No response was received. Please answer the question directly."
	default:
		guidance = fmt.Sprintf(
			"Your previous response had no content and no tool call. "+
				"Either call one of the available tools (for example %s) to gather evidence, "+
				"or answer the question directly if no evidence is needed.",
			strings.Join(toolNames[:min(3, len(toolNames))], ", "),
		)
	}

	modifiedReq := req
	modifiedReq.Messages = append(append([]llm.CompletionMessage{}, req.Messages...), llm.CompletionMessage{
		Role:    llm.RoleUser,
		Content: guidance,
	})
	return modifiedReq
}

// extractToolNames extracts tool names from tool definitions.
func extractToolNames(toolDefs []tools.ToolDefinition) []string {
	names := make([]string, len(toolDefs))
	for i := range toolDefs {
		names[i] = toolDefs[i].Name
	}
	return names
}

// logEmptyResponseDetails logs the reason a response was considered empty.
func logEmptyResponseDetails(logger *logx.Logger, attempt int, resp llm.CompletionResponse, err error) {
	hasContent := strings.TrimSpace(resp.Content) != ""
	hasToolCalls := len(resp.ToolCalls) > 0

	var reason string
	switch {
	case err != nil:
		reason = fmt.Sprintf("llm client returned ErrorTypeEmptyResponse: %v", err)
	case !hasContent && !hasToolCalls:
		reason = "response has no content and no tool calls"
	default:
		reason = "response considered empty for an unexpected combination of content/tool_calls"
	}

	logger.Warn("empty response detected (attempt %d/2): %s", attempt, reason)
}
