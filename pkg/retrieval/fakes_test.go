package retrieval

import (
	"context"
	"errors"

	"screenplay-core/pkg/screenplay"
)

var errNoScene = errors.New("scene not found")

type fakeStore struct {
	scenes    []screenplay.Scene
	summaries map[int]string
}

func (f *fakeStore) GetScript(_ context.Context, _ string) (*screenplay.Script, error) {
	return &screenplay.Script{ID: "script-1"}, nil
}

func (f *fakeStore) GetScene(_ context.Context, _ string, position int) (*screenplay.Scene, error) {
	for i := range f.scenes {
		if f.scenes[i].Position == position {
			return &f.scenes[i], nil
		}
	}
	return nil, errNoScene
}

func (f *fakeStore) GetScenes(_ context.Context, _ string) ([]screenplay.Scene, error) {
	return f.scenes, nil
}

func (f *fakeStore) GetSceneSummary(_ context.Context, _ string, position int) (*screenplay.SceneSummary, error) {
	if s, ok := f.summaries[position]; ok {
		return &screenplay.SceneSummary{Position: position, Summary: s}, nil
	}
	return nil, errNoScene
}

func (f *fakeStore) GetOutline(_ context.Context, _ string) (*screenplay.ScriptOutline, error) {
	return nil, errNoScene
}

func (f *fakeStore) GetCharacterSheet(_ context.Context, _, _ string) (*screenplay.CharacterSheet, error) {
	return nil, errNoScene
}

func (f *fakeStore) ListCharacterSheets(_ context.Context, _ string) ([]screenplay.CharacterSheet, error) {
	return nil, nil
}

func (f *fakeStore) ListPlotThreads(_ context.Context, _ string, _ screenplay.PlotThreadType) ([]screenplay.PlotThread, error) {
	return nil, nil
}

func (f *fakeStore) ListSceneRelationships(_ context.Context, _ string, _ screenplay.SceneRelationshipType) ([]screenplay.SceneRelationship, error) {
	return nil, nil
}

// fakeVectors implements screenplay.SceneVectorStore with a scripted ranking.
type fakeVectors struct {
	results []screenplay.ScoredPosition
	err     error
}

func (f *fakeVectors) SearchByVector(_ context.Context, _ string, _ []float32, topK int) ([]screenplay.ScoredPosition, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > topK {
		return f.results[:topK], nil
	}
	return f.results, nil
}

// fakeEmbedder returns a fixed vector, or an error if configured to.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// scoredPositions builds a descending-score ranking over the given
// positions, in the order given (first argument scores highest).
func scoredPositions(positions ...int) []screenplay.ScoredPosition {
	out := make([]screenplay.ScoredPosition, len(positions))
	score := 1.0
	for i, p := range positions {
		out[i] = screenplay.ScoredPosition{Position: p, Score: score}
		score -= 0.1
	}
	return out
}

func testScenes() []screenplay.Scene {
	return []screenplay.Scene{
		{Position: 0, Heading: "INT. HOUSE - DAY", Content: "Jane enters.", Characters: []string{"JANE"}},
		{Position: 1, Heading: "EXT. STREET - NIGHT", Content: "Jane runs.", Characters: []string{"JANE", "MARK"}},
		{Position: 2, Heading: "INT. OFFICE - DAY", Content: "Mark works.", Characters: []string{"MARK"}},
		{Position: 3, Heading: "INT. CAR - DAY", Content: "They drive.", Characters: []string{"JANE", "MARK"}},
		{Position: 4, Heading: "EXT. PARK - DAY", Content: "They argue.", Characters: []string{"JANE"}},
	}
}
