package tools

import (
	"context"
	"errors"

	"screenplay-core/pkg/screenplay"
)

// fakeStore is a minimal in-memory screenplay.ScriptStore for tool tests.
type fakeStore struct {
	scenes        []screenplay.Scene
	plotThreads   []screenplay.PlotThread
	relationships []screenplay.SceneRelationship
}

func (f *fakeStore) GetScript(_ context.Context, _ string) (*screenplay.Script, error) {
	return &screenplay.Script{ID: "script-1", Title: "Test Script"}, nil
}

func (f *fakeStore) GetScene(_ context.Context, _ string, position int) (*screenplay.Scene, error) {
	for i := range f.scenes {
		if f.scenes[i].Position == position {
			return &f.scenes[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetScenes(_ context.Context, _ string) ([]screenplay.Scene, error) {
	return f.scenes, nil
}

func (f *fakeStore) GetSceneSummary(_ context.Context, _ string, _ int) (*screenplay.SceneSummary, error) {
	return nil, errors.New("no summary")
}

func (f *fakeStore) GetOutline(_ context.Context, _ string) (*screenplay.ScriptOutline, error) {
	return nil, errors.New("no outline")
}

func (f *fakeStore) GetCharacterSheet(_ context.Context, _, _ string) (*screenplay.CharacterSheet, error) {
	return nil, errors.New("no character sheet")
}

func (f *fakeStore) ListCharacterSheets(_ context.Context, _ string) ([]screenplay.CharacterSheet, error) {
	return nil, nil
}

func (f *fakeStore) ListPlotThreads(_ context.Context, _ string, threadType screenplay.PlotThreadType) ([]screenplay.PlotThread, error) {
	if threadType == "" {
		return f.plotThreads, nil
	}
	var out []screenplay.PlotThread
	for _, pt := range f.plotThreads {
		if pt.Type == threadType {
			out = append(out, pt)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSceneRelationships(_ context.Context, _ string, relType screenplay.SceneRelationshipType) ([]screenplay.SceneRelationship, error) {
	if relType == "" {
		return f.relationships, nil
	}
	var out []screenplay.SceneRelationship
	for _, r := range f.relationships {
		if r.Type == relType {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakeSearcher is a minimal ScriptSearcher for search_script tests.
type fakeSearcher struct {
	results []RetrievalResult
}

func (f *fakeSearcher) Search(_ context.Context, _, _ string, _ int, _ SearchFilters) ([]RetrievalResult, error) {
	return f.results, nil
}

func testScenes() []screenplay.Scene {
	return []screenplay.Scene{
		{Position: 0, Heading: "INT. HOUSE - DAY", Content: "Jane enters the kitchen.", Characters: []string{"JANE"}, WordCount: 4},
		{Position: 1, Heading: "EXT. STREET - NIGHT", Content: "Jane runs down the street. MARK (O.S.) calls out.", Characters: []string{"JANE", "MARK"}, WordCount: 9},
		{Position: 2, Heading: "INT. OFFICE - DAY", Content: "Mark sits at his desk.", Characters: []string{"MARK"}, WordCount: 5},
	}
}
