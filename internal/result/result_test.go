package result

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLanguageCompileErrorUnwraps(t *testing.T) {
	cause := errors.New("bad query")
	err := &LanguageCompileError{Language: "rust", Err: cause}
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "rust")
}

func TestFileErrorUnwraps(t *testing.T) {
	cause := errors.New("disk gone")
	err := &FileError{Path: "a.go", Kind: "read", Err: cause}
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "a.go")
}
