package embeddings

import "testing"

func TestNew_DefaultsModelWhenEmpty(t *testing.T) {
	c := New("test-key", "")
	if c.model == "" {
		t.Error("expected a default model name when none is given")
	}
}

func TestDimension_MatchesTextEmbedding3Small(t *testing.T) {
	if Dimension != 1536 {
		t.Errorf("expected Dimension 1536, got %d", Dimension)
	}
}
