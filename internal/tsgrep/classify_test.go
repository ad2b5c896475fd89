package tsgrep

import (
	"testing"

	"github.com/nyxgeek/tsgrep/internal/language"
	"github.com/stretchr/testify/require"
)

func TestClassifyByExtension(t *testing.T) {
	got := classify("main.go", nil)
	require.Len(t, got, 1)
	require.Equal(t, "go", got[0].Tag())
}

func TestClassifyNoExtensionReturnsNil(t *testing.T) {
	require.Nil(t, classify("README", nil))
}

func TestClassifyOverrideIgnoresExtension(t *testing.T) {
	rust, ok := language.ResolveByTag("rust")
	require.True(t, ok)

	got := classify("weird.xyz", rust)
	require.Equal(t, []*language.Language{rust}, got)
}

func TestClassifyUnknownExtensionReturnsEmpty(t *testing.T) {
	require.Empty(t, classify("a.xyz", nil))
}
