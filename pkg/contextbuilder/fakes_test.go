package contextbuilder

import (
	"context"
	"errors"

	"screenplay-core/pkg/screenplay"
)

type fakeStore struct {
	scenes   []screenplay.Scene
	outline  *screenplay.ScriptOutline
	sheets   []screenplay.CharacterSheet
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
	return nil, errors.New("not found")
}

func (f *fakeStore) GetScenes(_ context.Context, _ string) ([]screenplay.Scene, error) {
	return f.scenes, nil
}

func (f *fakeStore) GetSceneSummary(_ context.Context, _ string, _ int) (*screenplay.SceneSummary, error) {
	return nil, errors.New("not found")
}

func (f *fakeStore) GetOutline(_ context.Context, _ string) (*screenplay.ScriptOutline, error) {
	if f.outline == nil {
		return nil, errors.New("no outline")
	}
	return f.outline, nil
}

func (f *fakeStore) GetCharacterSheet(_ context.Context, _, _ string) (*screenplay.CharacterSheet, error) {
	return nil, errors.New("not found")
}

func (f *fakeStore) ListCharacterSheets(_ context.Context, _ string) ([]screenplay.CharacterSheet, error) {
	return f.sheets, nil
}

func (f *fakeStore) ListPlotThreads(_ context.Context, _ string, _ screenplay.PlotThreadType) ([]screenplay.PlotThread, error) {
	return nil, nil
}

func (f *fakeStore) ListSceneRelationships(_ context.Context, _ string, _ screenplay.SceneRelationshipType) ([]screenplay.SceneRelationship, error) {
	return nil, nil
}
