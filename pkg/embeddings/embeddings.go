// Package embeddings is the embedding collaborator: it turns
// text into fixed-dimension vectors for the Retrieval Service's semantic
// search and for re-embedding scene summaries. Backed by the openai-go SDK's
// embeddings endpoint; chat completions in this core go through the
// Anthropic client instead.
package embeddings

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Dimension is the fixed vector size this core's vector index is built for.
// text-embedding-3-small's default dimension; changing models means
// re-embedding the whole corpus, so this is a constant, not configuration.
const Dimension = 1536

// Client generates embedding vectors for text, batched.
type Client interface {
	// Embed returns one vector per input text, in the same order. A failure
	// to embed is returned as an error, not a partial result — the
	// Retrieval Service treats any error here as "semantic search
	// unavailable" and degrades to an empty result set,
	// never as a reason to fail the whole request.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIClient implements Client against OpenAI's embeddings endpoint.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// New creates an OpenAIClient using apiKey and the given model name
// (config.ModelOpenAITextEmbed3 by default).
func New(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

var _ Client = (*OpenAIClient)(nil)

// Embed batches texts into a single embeddings request and returns one
// vector per input, in order.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	return out, nil
}
