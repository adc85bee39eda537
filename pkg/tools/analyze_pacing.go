package tools

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"screenplay-core/pkg/screenplay"
)

// actCount is the number of acts pacing stats are bucketed into, absent a
// structured act boundary in the data model. Three acts is the conventional
// screenplay structure; scenes are split into thirds by position.
const actCount = 3

// outlierThreshold flags a scene whose word count deviates from the mean by
// more than this fraction.
const outlierThreshold = 0.5

// cueLinePattern matches a likely character-cue line: an all-caps word or
// phrase, optionally followed by a parenthetical, alone on its line.
var cueLinePattern = regexp.MustCompile(`^[A-Z][A-Z0-9 '.\-]*(\([^)]*\))?\s*$`)

// AnalyzePacingTool computes quantitative pacing metrics without any LLM call.
type AnalyzePacingTool struct {
	deps *Dependencies
}

// NewAnalyzePacingTool creates a new analyze_pacing tool bound to deps.
func NewAnalyzePacingTool(deps *Dependencies) *AnalyzePacingTool {
	return &AnalyzePacingTool{deps: deps}
}

// Name returns the tool name.
func (t *AnalyzePacingTool) Name() string { return ToolAnalyzePacing }

// Definition returns the tool's schema.
func (t *AnalyzePacingTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolAnalyzePacing,
		Description: "Compute quantitative pacing metrics: per-scene and per-act word counts, dialogue ratio, averages, and outlier scenes. No LLM call.",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
		},
	}
}

// Exec executes the tool.
func (t *AnalyzePacingTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	scenes, err := t.deps.Store.GetScenes(ctx, t.deps.ScriptID)
	if err != nil {
		return errorResult("could not load scenes: %v", err)
	}
	if len(scenes) == 0 {
		return errorResult("script has no scenes")
	}

	totalWords := 0
	dialogueRatios := make([]float64, len(scenes))
	for i, scene := range scenes {
		totalWords += scene.WordCount
		dialogueRatios[i] = dialogueRatio(scene.Content)
	}
	avgWords := float64(totalWords) / float64(len(scenes))

	var sb strings.Builder
	fmt.Fprintf(&sb, "Scenes: %d, total words: %d, average words/scene: %.1f\n\n", len(scenes), totalWords, avgWords)

	sb.WriteString("Per-scene:\n")
	for i, scene := range scenes {
		flag := ""
		if math.Abs(float64(scene.WordCount)-avgWords) > avgWords*outlierThreshold {
			flag = " [OUTLIER]"
		}
		fmt.Fprintf(&sb, "  Scene %d (index %d): %d words, dialogue ratio %.2f%s\n",
			userNumber(scene.Position), scene.Position, scene.WordCount, dialogueRatios[i], flag)
	}

	sb.WriteString("\nPer-act (scenes split into thirds by position):\n")
	for act, bucket := range bucketByAct(scenes, actCount) {
		if len(bucket) == 0 {
			continue
		}
		actWords := 0
		for _, scene := range bucket {
			actWords += scene.WordCount
		}
		fmt.Fprintf(&sb, "  Act %d: %d scenes, %d words, %.1f words/scene avg\n",
			act+1, len(bucket), actWords, float64(actWords)/float64(len(bucket)))
	}

	return &ExecResult{Content: sb.String()}, nil
}

// dialogueRatio estimates the fraction of a scene's words spoken as dialogue
// by treating lines immediately following a character-cue line as dialogue,
// up to the next blank line.
func dialogueRatio(content string) float64 {
	scanner := bufio.NewScanner(strings.NewReader(content))
	totalWords, dialogueWords := 0, 0
	inDialogue := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			inDialogue = false
			continue
		}
		if cueLinePattern.MatchString(line) && strings.ToUpper(line) == line {
			inDialogue = true
			continue
		}
		words := len(strings.Fields(line))
		totalWords += words
		if inDialogue {
			dialogueWords += words
		}
	}

	if totalWords == 0 {
		return 0
	}
	return float64(dialogueWords) / float64(totalWords)
}

// bucketByAct splits scenes into n contiguous buckets by position order.
func bucketByAct(scenes []screenplay.Scene, n int) [][]screenplay.Scene {
	buckets := make([][]screenplay.Scene, n)
	perAct := int(math.Ceil(float64(len(scenes)) / float64(n)))
	if perAct == 0 {
		perAct = 1
	}
	for i, scene := range scenes {
		act := i / perAct
		if act >= n {
			act = n - 1
		}
		buckets[act] = append(buckets[act], scene)
	}
	return buckets
}
