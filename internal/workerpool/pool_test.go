package workerpool

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/nyxgeek/tsgrep/internal/diag"
	"github.com/nyxgeek/tsgrep/internal/language"
	"github.com/nyxgeek/tsgrep/internal/querycache"
	"github.com/nyxgeek/tsgrep/internal/result"
	"github.com/stretchr/testify/require"
)

// generateGoFiles writes fileCount distinct Go files, each declaring one
// uniquely-named function, and returns the tasks plus the expected
// function names in file order.
func generateGoFiles(t *testing.T, dir string, fileCount int) ([]Task, []string) {
	t.Helper()
	lang, ok := language.ResolveByTag("go")
	require.True(t, ok)

	tasks := make([]Task, fileCount)
	names := make([]string, fileCount)
	for i := 0; i < fileCount; i++ {
		name := fmt.Sprintf("Fn%d", i)
		path := filepath.Join(dir, fmt.Sprintf("file%d.go", i))
		content := fmt.Sprintf("package main\n\nfunc %s() {}\n", name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		tasks[i] = Task{Path: path, Lang: lang}
		names[i] = name
	}
	return tasks, names
}

// TestRunConcurrencyCorrectness mirrors the teacher's worker-pool race
// test: the same task set run through varying worker counts must
// produce the same match set every time. Run with -race.
func TestRunConcurrencyCorrectness(t *testing.T) {
	tests := []struct {
		name      string
		fileCount int
		workers   int
	}{
		{"single_file_single_worker", 1, 1},
		{"multiple_files_single_worker", 5, 1},
		{"multiple_files_multiple_workers", 10, 4},
		{"more_workers_than_files", 3, 10},
		{"many_files_high_concurrency", 50, 16},
		{"zero_workers_defaults_to_one", 5, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			tasks, expected := generateGoFiles(t, dir, tc.fileCount)

			cache := querycache.New(`(function_declaration name: (identifier) @name)`, "")
			pool := &Pool{Workers: tc.workers, Cache: cache, Diag: diag.New(false)}

			results := pool.Run(context.Background(), tasks)
			var got []string
			for r := range results {
				for _, m := range r.Result.Matches {
					got = append(got, m.Line)
				}
			}
			require.NoError(t, pool.Err())

			var gotNames []string
			for _, line := range got {
				gotNames = append(gotNames, line[len("func "):len(line)-len("() {}")])
			}
			sort.Strings(gotNames)
			sort.Strings(expected)
			require.Equal(t, expected, gotNames)
		})
	}
}

func TestRunEmptyTaskListClosesImmediately(t *testing.T) {
	pool := &Pool{Workers: 4, Cache: querycache.New("(_) @n", ""), Diag: diag.New(false)}
	results := pool.Run(context.Background(), nil)

	_, ok := <-results
	require.False(t, ok)
	require.NoError(t, pool.Err())
}

func TestRunSequenceNumbersMatchDispatchOrder(t *testing.T) {
	dir := t.TempDir()
	tasks, _ := generateGoFiles(t, dir, 20)

	cache := querycache.New(`(function_declaration name: (identifier) @name)`, "")
	pool := &Pool{Workers: 8, Cache: cache, Diag: diag.New(false)}

	results := pool.Run(context.Background(), tasks)
	bySeq := make(map[int]string)
	for r := range results {
		bySeq[r.Seq] = r.Result.Path
	}
	require.NoError(t, pool.Err())
	require.Len(t, bySeq, len(tasks))
	for i, task := range tasks {
		require.Equal(t, task.Path, bySeq[i])
	}
}

func TestRunFatalQueryErrorAbortsRun(t *testing.T) {
	dir := t.TempDir()
	tasks, _ := generateGoFiles(t, dir, 10)

	// A query with no captures is a fatal configuration error.
	cache := querycache.New(`(function_declaration)`, "")
	pool := &Pool{Workers: 4, Cache: cache, Diag: diag.New(false)}

	results := pool.Run(context.Background(), tasks)
	for range results {
	}
	require.Error(t, pool.Err())
}

func TestRunSkipsFilesWithReadErrors(t *testing.T) {
	lang, ok := language.ResolveByTag("go")
	require.True(t, ok)

	cache := querycache.New(`(function_declaration name: (identifier) @name)`, "")
	pool := &Pool{Workers: 2, Cache: cache, Diag: diag.New(false)}

	tasks := []Task{{Path: filepath.Join(t.TempDir(), "missing.go"), Lang: lang}}
	results := pool.Run(context.Background(), tasks)

	var got []result.IndexedResult
	for r := range results {
		got = append(got, r)
	}
	require.NoError(t, pool.Err())
	require.Len(t, got, 1)
	require.Error(t, got[0].Result.Err)
}

// TestRunReportsLanguageSkipOncePerLanguage exercises a per-language
// compile failure that isn't fatal (spec.md 4.2): every file of that
// language is skipped with no error attached to its FileResult, but
// the diagnostic sink sees the compile failure exactly once, not once
// per skipped file.
func TestRunReportsLanguageSkipOncePerLanguage(t *testing.T) {
	dir := t.TempDir()
	tasks, _ := generateGoFiles(t, dir, 5)

	var buf bytes.Buffer
	sink := diag.New(true)
	sink.SetOutput(&buf)

	cache := querycache.New(`(this_node_type_does_not_exist) @x`, "")
	pool := &Pool{Workers: 4, Cache: cache, Diag: sink}

	results := pool.Run(context.Background(), tasks)
	var got []result.IndexedResult
	for r := range results {
		got = append(got, r)
	}
	require.NoError(t, pool.Err())
	require.Len(t, got, len(tasks))
	for _, r := range got {
		require.NoError(t, r.Result.Err)
		require.Empty(t, r.Result.Matches)
	}

	require.Equal(t, 1, strings.Count(buf.String(), "language-skip"))
}
