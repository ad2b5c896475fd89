package parsestage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nyxgeek/tsgrep/internal/language"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name string, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestReadSmallFileIsHeapBacked(t *testing.T) {
	path := writeTemp(t, "small.go", []byte("package main\n"))
	src, err := Read(path)
	require.NoError(t, err)
	defer src.Close()
	require.Equal(t, "package main\n", string(src.Bytes))
	require.Nil(t, src.mmap)
}

func TestReadLargeFileIsMemoryMapped(t *testing.T) {
	content := strings.Repeat("x", MmapThreshold+1)
	path := writeTemp(t, "large.txt", []byte(content))
	src, err := Read(path)
	require.NoError(t, err)
	defer src.Close()
	require.Equal(t, content, string(src.Bytes))
	require.NotNil(t, src.mmap)
}

func TestReadEmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.go", nil)
	src, err := Read(path)
	require.NoError(t, err)
	defer src.Close()
	require.Nil(t, src.Bytes)
}

func TestReadUTF8BOMIsStripped(t *testing.T) {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("package main\n")...)
	path := writeTemp(t, "bom.go", content)
	src, err := Read(path)
	require.NoError(t, err)
	defer src.Close()
	require.Equal(t, "package main\n", string(src.Bytes))
}

func TestReadLatin1FallbackProducesValidUTF8(t *testing.T) {
	// 0xE9 is "é" in Latin-1 but not valid standalone UTF-8.
	content := []byte("// caf\xe9\n")
	path := writeTemp(t, "latin1.go", content)
	src, err := Read(path)
	require.NoError(t, err)
	defer src.Close()
	require.True(t, utf8Valid(src.Bytes))
	require.Contains(t, string(src.Bytes), "café")
}

func utf8Valid(b []byte) bool { return isValidUTF8(b) }

func TestParseGoSource(t *testing.T) {
	lang, ok := language.ResolveByTag("go")
	require.True(t, ok)

	tree, err := Parse(context.Background(), lang, []byte("package main\n\nfunc main() {}\n"))
	require.NoError(t, err)
	defer tree.Close()

	require.Equal(t, "source_file", tree.RootNode().Type())
}
