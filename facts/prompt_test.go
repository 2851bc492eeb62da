package facts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basePrompt = "You are a helpful voice assistant.\n\nExamples:\nUser: hi\nAssistant: hello"

func seedStore(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(newFakeRepos())
	_, err := s.ProcessMessage(context.Background(), "u1", "m1",
		"My name is John. I have two cats named Holly and Benny.")
	require.NoError(t, err)
	return s
}

func TestPromptRendersFactsBeforeExamples(t *testing.T) {
	s := seedStore(t)

	res := s.GenerateSystemPromptWithFacts(context.Background(), "u1", basePrompt, nil)
	require.NotNil(t, res)

	assert.Contains(t, res.EnhancedPrompt, factsHeader)
	assert.Contains(t, res.EnhancedPrompt, "- Name: John")
	assert.Contains(t, res.EnhancedPrompt, "Holly")
	assert.Contains(t, res.EnhancedPrompt, "Benny")
	assert.ElementsMatch(t, []string{"name", "pets"}, res.FactsIncluded)

	// Facts block sits before the examples section.
	blockIdx := strings.Index(res.EnhancedPrompt, factsHeader)
	examplesIdx := strings.Index(res.EnhancedPrompt, examplesMarker)
	require.GreaterOrEqual(t, blockIdx, 0)
	require.GreaterOrEqual(t, examplesIdx, 0)
	assert.Less(t, blockIdx, examplesIdx)

	// Both required facts present, no optional ones: 2.0 / (2.0 + 3*0.2).
	assert.InDelta(t, 2.0/2.6, res.FactConfidence, 1e-9)

	assert.Contains(t, res.Timings, "facts")
	assert.Contains(t, res.Timings, "render")
	assert.Contains(t, res.Timings, "total")
}

func TestPromptAppendsWithoutExamplesMarker(t *testing.T) {
	s := seedStore(t)

	res := s.GenerateSystemPromptWithFacts(context.Background(), "u1", "Just a base prompt.", nil)
	assert.True(t, strings.HasPrefix(res.EnhancedPrompt, "Just a base prompt."))
	assert.Contains(t, res.EnhancedPrompt, factsHeader)
}

func TestPromptPlaceholdersWhenFactsMissing(t *testing.T) {
	s := newTestStore(newFakeRepos())

	res := s.GenerateSystemPromptWithFacts(context.Background(), "unknown-user", basePrompt, nil)
	assert.Contains(t, res.EnhancedPrompt, "- Name: "+notSet)
	assert.Contains(t, res.EnhancedPrompt, "- Pets: "+notSet)
	assert.Contains(t, res.EnhancedPrompt, askNameInstruction)
	assert.Empty(t, res.FactsIncluded)
	assert.Zero(t, res.FactConfidence)
}

func TestPromptSurvivesBackendFailure(t *testing.T) {
	s := newTestStore(failingRepos{})

	res := s.GenerateSystemPromptWithFacts(context.Background(), "u1", basePrompt, nil)
	require.NotNil(t, res)
	assert.NotEmpty(t, res.EnhancedPrompt)
	assert.Contains(t, res.EnhancedPrompt, "You are a helpful voice assistant.")
	assert.Contains(t, res.EnhancedPrompt, askNameInstruction)
}

func TestPromptOptionsOverrideFactKeys(t *testing.T) {
	s := seedStore(t)

	res := s.GenerateSystemPromptWithFacts(context.Background(), "u1", basePrompt, &PromptOptions{
		Required: []string{"name"},
		Optional: []string{},
	})
	assert.Contains(t, res.EnhancedPrompt, "- Name: John")
	assert.NotContains(t, res.EnhancedPrompt, "- Pets:")
	assert.InDelta(t, 1.0, res.FactConfidence, 1e-9)
}

func TestValidateFactInclusion(t *testing.T) {
	expected := map[string]any{
		"name": "John",
		"pets": []string{"Holly", "Benny"},
	}

	ok := ValidateFactInclusion("Name: John. Pets: Holly, Benny.", expected)
	assert.True(t, ok.IsValid)
	assert.ElementsMatch(t, []string{"name", "pets"}, ok.PresentFacts)
	assert.Empty(t, ok.MissingFacts)

	missing := ValidateFactInclusion("Name: John. Pets: Holly.", expected)
	assert.False(t, missing.IsValid)
	assert.Equal(t, []string{"pets"}, missing.MissingFacts)
	assert.Equal(t, []string{"name"}, missing.PresentFacts)
}

func TestValidateFactInclusionStructuredValues(t *testing.T) {
	res := ValidateFactInclusion("The user lives in Boston and works as an engineer.", map[string]any{
		"location": map[string]string{"residence": "Boston"},
		"work":     map[string]string{"profession": "engineer"},
	})
	assert.True(t, res.IsValid)
}

func TestGeneratedPromptValidates(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	res := s.GenerateSystemPromptWithFacts(ctx, "u1", basePrompt, nil)
	check := ValidateFactInclusion(res.EnhancedPrompt, s.GetAllCriticalFacts(ctx, "u1"))
	assert.True(t, check.IsValid)
	assert.Empty(t, check.MissingFacts)
}
