// Package retrieval implements the Retrieval Service: given a classified
// intent, it picks one of four strategies — positional, hybrid, semantic,
// or minimal — to gather the scenes most relevant to the user's message,
// and backs search_script's free-text queries.
package retrieval

import (
	"context"
	"sort"

	"screenplay-core/pkg/embeddings"
	"screenplay-core/pkg/logx"
	"screenplay-core/pkg/router"
	"screenplay-core/pkg/screenplay"
	"screenplay-core/pkg/tools"
)

// semanticTopK is the number of scenes a full semantic search returns.
const semanticTopK = 10

// hybridSemanticTopK is the number of additional semantically-ranked scenes
// folded into the hybrid strategy, before deduplication against the current scene.
const hybridSemanticTopK = 5

// positionalNeighbors is how many scenes on each side of the current scene
// the positional strategy includes.
const positionalNeighbors = 1

// Service implements the Retrieval Service against a ScriptStore for scene
// content, a SceneVectorStore for cosine search, and an embeddings.Client
// to embed the query text.
type Service struct {
	store    screenplay.ScriptStore
	vectors  screenplay.SceneVectorStore
	embedder embeddings.Client
	logger   *logx.Logger
}

// New creates a Service. vectors and embedder may be nil; semantic
// strategies then degrade to empty results (embedding/vector failures
// never fail the whole request).
func New(store screenplay.ScriptStore, vectors screenplay.SceneVectorStore, embedder embeddings.Client, logger *logx.Logger) *Service {
	if logger == nil {
		logger = logx.NewLogger("retrieval")
	}
	return &Service{store: store, vectors: vectors, embedder: embedder, logger: logger}
}

var _ tools.ScriptSearcher = (*Service)(nil)

// RetrieveForIntent dispatches to the strategy assigned to intent.
func (s *Service) RetrieveForIntent(ctx context.Context, scriptID, message string, intent router.Intent, currentScene *int) ([]tools.RetrievalResult, error) {
	switch intent {
	case router.IntentLocalEdit:
		return s.positional(ctx, scriptID, currentScene)
	case router.IntentSceneFeedback:
		return s.hybrid(ctx, scriptID, message, currentScene)
	case router.IntentBrainstorm:
		return nil, nil
	case router.IntentGlobalQuestion, router.IntentNarrativeAnalysis:
		return s.semantic(ctx, scriptID, message, semanticTopK, tools.SearchFilters{})
	default:
		return s.semantic(ctx, scriptID, message, semanticTopK, tools.SearchFilters{})
	}
}

// Search implements tools.ScriptSearcher for the search_script tool: a plain
// semantic query bounded by limit and filters.
func (s *Service) Search(ctx context.Context, scriptID, query string, limit int, filters tools.SearchFilters) ([]tools.RetrievalResult, error) {
	return s.semantic(ctx, scriptID, query, limit, filters)
}

// positional returns the current scene plus one neighbor on each side, for
// local_edit intent. With no current scene, there's nothing to anchor to,
// so it returns no scenes rather than guessing.
func (s *Service) positional(ctx context.Context, scriptID string, currentScene *int) ([]tools.RetrievalResult, error) {
	if currentScene == nil {
		return nil, nil
	}
	positions := neighborPositions(*currentScene, positionalNeighbors)

	var out []tools.RetrievalResult
	for _, pos := range positions {
		scene, err := s.store.GetScene(ctx, scriptID, pos)
		if err != nil {
			continue
		}
		out = append(out, tools.RetrievalResult{Scene: *scene, Score: 1.0})
	}
	return out, nil
}

// hybrid combines the current scene with the top semantically-ranked
// scenes, deduplicated, for scene_feedback intent.
func (s *Service) hybrid(ctx context.Context, scriptID, message string, currentScene *int) ([]tools.RetrievalResult, error) {
	semanticResults, err := s.semantic(ctx, scriptID, message, hybridSemanticTopK, tools.SearchFilters{})
	if err != nil {
		return nil, err
	}
	if currentScene == nil {
		return semanticResults, nil
	}

	scene, err := s.store.GetScene(ctx, scriptID, *currentScene)
	if err != nil {
		return semanticResults, nil
	}

	out := []tools.RetrievalResult{{Scene: *scene, Score: 1.0}}
	for _, r := range semanticResults {
		if r.Scene.Position == scene.Position {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// semantic embeds message and ranks scenes by cosine similarity, applying
// filters post-hoc against scene content. Used for global_question and
// narrative_analysis intent, and for search_script's free-text queries.
//
// Any failure to embed or to query the vector index degrades to an empty
// result set rather than failing the caller's request — embedding
// generation failures are expected and must never block an exchange.
func (s *Service) semantic(ctx context.Context, scriptID, message string, topK int, filters tools.SearchFilters) ([]tools.RetrievalResult, error) {
	if s.embedder == nil || s.vectors == nil {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{message})
	if err != nil || len(vectors) == 0 {
		s.logger.Warn("retrieval: embedding generation failed, returning empty results: %v", err)
		return nil, nil
	}

	scored, err := s.vectors.SearchByVector(ctx, scriptID, vectors[0], topK)
	if err != nil {
		s.logger.Warn("retrieval: vector search failed, returning empty results: %v", err)
		return nil, nil
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	var out []tools.RetrievalResult
	for _, sp := range scored {
		scene, err := s.store.GetScene(ctx, scriptID, sp.Position)
		if err != nil {
			continue
		}
		if !matchesFilters(*scene, filters) {
			continue
		}
		summary := ""
		if sum, err := s.store.GetSceneSummary(ctx, scriptID, sp.Position); err == nil {
			summary = sum.Summary
		}
		out = append(out, tools.RetrievalResult{Scene: *scene, Summary: summary, Score: sp.Score})
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}

func matchesFilters(scene screenplay.Scene, filters tools.SearchFilters) bool {
	if filters.Character != "" {
		found := false
		for _, c := range scene.Characters {
			if c == filters.Character {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// neighborPositions returns position-n..position+n, clamped at zero (no
// upper clamp: the caller's GetScene lookup simply misses past the end and
// is skipped).
func neighborPositions(position, n int) []int {
	start := position - n
	if start < 0 {
		start = 0
	}
	positions := make([]int, 0, 2*n+1)
	for p := start; p <= position+n; p++ {
		positions = append(positions, p)
	}
	return positions
}
