package printer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nyxgeek/tsgrep/internal/result"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newResult(seq int, path string, matches ...result.MatchRange) result.IndexedResult {
	return result.IndexedResult{Seq: seq, Result: result.FileResult{Path: path, Matches: matches}}
}

func TestDrainReassemblesOutOfOrderResults(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, false, false)

	m := result.MatchRange{Start: result.Position{Line: 1, Column: 0}, Line: "func Foo() {}"}

	ch := make(chan result.IndexedResult)
	go func() {
		defer close(ch)
		ch <- newResult(1, "b.go", m)
		ch <- newResult(0, "a.go", m)
		ch <- newResult(2, "c.go", m)
	}()
	p.Drain(ch)

	require.Equal(t, "a.go:1:func Foo() {}\nb.go:1:func Foo() {}\nc.go:1:func Foo() {}\n", buf.String())
	require.True(t, p.Matched())
	require.False(t, p.Failed())
}

func TestDrainSkipsEmptyMatches(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, false, false)

	ch := make(chan result.IndexedResult, 1)
	ch <- newResult(0, "empty.go")
	close(ch)
	p.Drain(ch)

	require.Empty(t, buf.String())
	require.False(t, p.Matched())
}

func TestDrainRecordsFailedWithoutWriting(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, false, false)

	ch := make(chan result.IndexedResult, 1)
	ch <- result.IndexedResult{Seq: 0, Result: result.FileResult{Path: "bad.go", Err: errBoom}}
	close(ch)
	p.Drain(ch)

	require.Empty(t, buf.String())
	require.True(t, p.Failed())
	require.False(t, p.Matched())
}

func TestVimgrepFormatIncludesColumn(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, true, false)

	m := result.MatchRange{Start: result.Position{Line: 3, Column: 4}, Line: "    return x"}
	ch := make(chan result.IndexedResult, 1)
	ch <- newResult(0, "f.go", m)
	close(ch)
	p.Drain(ch)

	require.Equal(t, "f.go:3:5:    return x\n", buf.String())
}

func TestHighlightWrapsOnlyMatchedSpan(t *testing.T) {
	content := "func Foo() {}"
	m := result.MatchRange{
		Start: result.Position{Line: 1, Column: 5},
		End:   result.Position{Line: 1, Column: 8},
	}
	out := highlight(content, m)
	require.Contains(t, out, "Foo")
	require.Contains(t, out, "func ")
}
