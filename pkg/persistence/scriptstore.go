package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"screenplay-core/pkg/screenplay"
)

// ErrNotFound is returned by read methods when the requested row doesn't exist.
var ErrNotFound = errors.New("persistence: not found")

// ScriptStore implements screenplay.ScriptStore against the ingestion
// pipeline's tables. The core only ever reads through this type; writes to
// scripts/scenes/summaries/outlines/character sheets/plot threads/scene
// relationships are ingestion's responsibility and out of this module's scope.
type ScriptStore struct {
	pool *pgxpool.Pool
}

// NewScriptStore wraps pool as a screenplay.ScriptStore.
func NewScriptStore(pool *pgxpool.Pool) *ScriptStore {
	return &ScriptStore{pool: pool}
}

var _ screenplay.ScriptStore = (*ScriptStore)(nil)

func (s *ScriptStore) GetScript(ctx context.Context, scriptID string) (*screenplay.Script, error) {
	var sc screenplay.Script
	err := s.pool.QueryRow(ctx,
		`SELECT script_id, title, owner FROM scripts WHERE script_id = $1`, scriptID,
	).Scan(&sc.ID, &sc.Title, &sc.Owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get script: %w", err)
	}
	return &sc, nil
}

func (s *ScriptStore) GetScene(ctx context.Context, scriptID string, position int) (*screenplay.Scene, error) {
	var sc screenplay.Scene
	err := s.pool.QueryRow(ctx,
		`SELECT script_id, position, heading, content, characters, word_count
		 FROM scenes WHERE script_id = $1 AND position = $2`, scriptID, position,
	).Scan(&sc.ScriptID, &sc.Position, &sc.Heading, &sc.Content, &sc.Characters, &sc.WordCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return &sc, nil
}

func (s *ScriptStore) GetScenes(ctx context.Context, scriptID string) ([]screenplay.Scene, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT script_id, position, heading, content, characters, word_count
		 FROM scenes WHERE script_id = $1 ORDER BY position ASC`, scriptID,
	)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var out []screenplay.Scene
	for rows.Next() {
		var sc screenplay.Scene
		if err := rows.Scan(&sc.ScriptID, &sc.Position, &sc.Heading, &sc.Content, &sc.Characters, &sc.WordCount); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	return out, nil
}

func (s *ScriptStore) GetSceneSummary(ctx context.Context, scriptID string, position int) (*screenplay.SceneSummary, error) {
	var sum screenplay.SceneSummary
	err := s.pool.QueryRow(ctx,
		`SELECT script_id, position, summary FROM scene_summaries WHERE script_id = $1 AND position = $2`,
		scriptID, position,
	).Scan(&sum.ScriptID, &sum.Position, &sum.Summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scene summary: %w", err)
	}
	return &sum, nil
}

func (s *ScriptStore) GetOutline(ctx context.Context, scriptID string) (*screenplay.ScriptOutline, error) {
	var o screenplay.ScriptOutline
	err := s.pool.QueryRow(ctx,
		`SELECT script_id, text FROM script_outlines WHERE script_id = $1`, scriptID,
	).Scan(&o.ScriptID, &o.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get outline: %w", err)
	}
	return &o, nil
}

func (s *ScriptStore) GetCharacterSheet(ctx context.Context, scriptID, characterName string) (*screenplay.CharacterSheet, error) {
	var cs screenplay.CharacterSheet
	err := s.pool.QueryRow(ctx,
		`SELECT script_id, name, arc, relationships, appearance_count
		 FROM character_sheets WHERE script_id = $1 AND name = $2`, scriptID, characterName,
	).Scan(&cs.ScriptID, &cs.Name, &cs.Arc, &cs.Relationships, &cs.AppearanceCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get character sheet: %w", err)
	}
	return &cs, nil
}

func (s *ScriptStore) ListCharacterSheets(ctx context.Context, scriptID string) ([]screenplay.CharacterSheet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT script_id, name, arc, relationships, appearance_count
		 FROM character_sheets WHERE script_id = $1 ORDER BY appearance_count DESC`, scriptID,
	)
	if err != nil {
		return nil, fmt.Errorf("list character sheets: %w", err)
	}
	defer rows.Close()

	var out []screenplay.CharacterSheet
	for rows.Next() {
		var cs screenplay.CharacterSheet
		if err := rows.Scan(&cs.ScriptID, &cs.Name, &cs.Arc, &cs.Relationships, &cs.AppearanceCount); err != nil {
			return nil, fmt.Errorf("scan character sheet: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *ScriptStore) ListPlotThreads(ctx context.Context, scriptID string, threadType screenplay.PlotThreadType) ([]screenplay.PlotThread, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if threadType == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT script_id, name, type, scene_positions FROM plot_threads WHERE script_id = $1 ORDER BY name`, scriptID)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT script_id, name, type, scene_positions FROM plot_threads WHERE script_id = $1 AND type = $2 ORDER BY name`,
			scriptID, string(threadType))
	}
	if err != nil {
		return nil, fmt.Errorf("list plot threads: %w", err)
	}
	defer rows.Close()

	var out []screenplay.PlotThread
	for rows.Next() {
		var (
			pt       screenplay.PlotThread
			typeText string
		)
		if err := rows.Scan(&pt.ScriptID, &pt.Name, &typeText, &pt.ScenePositions); err != nil {
			return nil, fmt.Errorf("scan plot thread: %w", err)
		}
		pt.Type = screenplay.PlotThreadType(typeText)
		out = append(out, pt)
	}
	return out, rows.Err()
}

func (s *ScriptStore) ListSceneRelationships(ctx context.Context, scriptID string, relType screenplay.SceneRelationshipType) ([]screenplay.SceneRelationship, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if relType == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT script_id, type, setup, payoff FROM scene_relationships WHERE script_id = $1 ORDER BY setup`, scriptID)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT script_id, type, setup, payoff FROM scene_relationships WHERE script_id = $1 AND type = $2 ORDER BY setup`,
			scriptID, string(relType))
	}
	if err != nil {
		return nil, fmt.Errorf("list scene relationships: %w", err)
	}
	defer rows.Close()

	var out []screenplay.SceneRelationship
	for rows.Next() {
		var (
			rel      screenplay.SceneRelationship
			typeText string
		)
		if err := rows.Scan(&rel.ScriptID, &typeText, &rel.Setup, &rel.Payoff); err != nil {
			return nil, fmt.Errorf("scan scene relationship: %w", err)
		}
		rel.Type = screenplay.SceneRelationshipType(typeText)
		out = append(out, rel)
	}
	return out, rows.Err()
}
