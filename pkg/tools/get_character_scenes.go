package tools

import (
	"context"
	"fmt"
	"strings"
)

// GetCharacterScenesTool returns the chronological list of scenes containing a character.
type GetCharacterScenesTool struct {
	deps *Dependencies
}

// NewGetCharacterScenesTool creates a new get_character_scenes tool bound to deps.
func NewGetCharacterScenesTool(deps *Dependencies) *GetCharacterScenesTool {
	return &GetCharacterScenesTool{deps: deps}
}

// Name returns the tool name.
func (t *GetCharacterScenesTool) Name() string { return ToolGetCharacterScenes }

// Definition returns the tool's schema.
func (t *GetCharacterScenesTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGetCharacterScenes,
		Description: "Get the chronological list of scenes in which a character appears.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"character_name":    {Type: "string", Description: "Character name, e.g. 'JANE' (parentheticals like (V.O.) are stripped automatically)"},
				"include_full_text": {Type: "boolean", Description: "Include full scene content instead of just headings. Defaults to false."},
			},
			Required: []string{"character_name"},
		},
	}
}

// Exec executes the tool.
func (t *GetCharacterScenesTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	name, ok := stringArg(args, "character_name")
	if !ok {
		return errorResult("character_name is required")
	}
	includeFullText := boolArg(args, "include_full_text")
	target := normalizeCharacterName(name)

	scenes, err := t.deps.Store.GetScenes(ctx, t.deps.ScriptID)
	if err != nil {
		return errorResult("could not load scenes: %v", err)
	}

	var sb strings.Builder
	found := 0
	for i := range scenes {
		scene := &scenes[i]
		if !containsCharacter(scene.Characters, target) {
			continue
		}
		found++
		fmt.Fprintf(&sb, "Scene %d (index %d): %s\n", userNumber(scene.Position), scene.Position, scene.Heading)
		if includeFullText {
			sb.WriteString(truncate(scene.Content, maxContextChars))
			sb.WriteString("\n")
		}
	}

	if found == 0 {
		return errorResult("no scenes found for character %q", name)
	}
	return &ExecResult{Content: sb.String()}, nil
}

// containsCharacter reports whether target (already normalized) is among characters.
func containsCharacter(characters []string, target string) bool {
	for _, c := range characters {
		if normalizeCharacterName(c) == target {
			return true
		}
	}
	return false
}
