package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveByTag(t *testing.T) {
	l, ok := ResolveByTag("RUST")
	require.True(t, ok)
	assert.Equal(t, "rust", l.Tag())
}

func TestResolveByExtensionConflictPrefersCPP(t *testing.T) {
	l, ok := ResolveByExtension(".h")
	require.True(t, ok)
	assert.Equal(t, "cpp", l.Tag())
}

func TestResolveByExtensionUnknown(t *testing.T) {
	_, ok := ResolveByExtension(".xyz")
	assert.False(t, ok)
}

func TestGrammarMemoized(t *testing.T) {
	l, ok := ResolveByTag("go")
	require.True(t, ok)
	g1 := l.Grammar()
	g2 := l.Grammar()
	assert.Same(t, g1, g2)
}

func TestCandidatesByExtensionReturnsEveryClaimant(t *testing.T) {
	candidates := CandidatesByExtension(".h")
	tags := make([]string, len(candidates))
	for i, l := range candidates {
		tags[i] = l.Tag()
	}
	assert.ElementsMatch(t, []string{"c", "cpp"}, tags)
}

func TestCandidatesByExtensionSingleClaimant(t *testing.T) {
	candidates := CandidatesByExtension(".go")
	require.Len(t, candidates, 1)
	assert.Equal(t, "go", candidates[0].Tag())
}

func TestCandidatesByExtensionUnknown(t *testing.T) {
	assert.Empty(t, CandidatesByExtension(".xyz"))
}

func TestTagsSorted(t *testing.T) {
	tags := Tags()
	for i := 1; i < len(tags); i++ {
		assert.Less(t, tags[i-1], tags[i])
	}
}
