// Package tsgrep ties the Language Registry, Query Cache, Worker Pool,
// and Printer together into the single entry point a CLI or test calls
// (spec.md's end-to-end run, mirrored on
// _examples/original_source/src/lib.rs::run).
package tsgrep

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/nyxgeek/tsgrep/internal/diag"
	"github.com/nyxgeek/tsgrep/internal/language"
	"github.com/nyxgeek/tsgrep/internal/pluginhost"
	"github.com/nyxgeek/tsgrep/internal/printer"
	"github.com/nyxgeek/tsgrep/internal/querycache"
	"github.com/nyxgeek/tsgrep/internal/walker"
	"github.com/nyxgeek/tsgrep/internal/workerpool"
)

// allNodesQuery is compiled internally when a filter plugin is supplied
// with no query, so the Match Engine's single-capture-resolution logic
// stays uniform instead of special-casing a no-query path (SPEC_FULL.md
// 12, from original_source's ALL_NODES_QUERY).
const allNodesQuery = "(_) @node"

// Config is the immutable, fully-resolved set of inputs to one Run,
// built once from CLI flags (spec.md 6).
type Config struct {
	QuerySource string
	QueryFile   string
	Capture     string
	Language    string // --language tag override
	FilterPath  string
	FilterArg   string
	Paths       []string

	Jobs     int
	Vimgrep  bool
	Colorize bool
	Debug    bool
	NoIgnore bool
	Hidden   bool

	Stdout io.Writer
	Stderr io.Writer
}

// Run executes one end-to-end search and returns the process exit code
// (spec.md 6: 0 matched, 1 no-match, 2 configuration error). It never
// calls os.Exit so it stays testable.
func Run(ctx context.Context, cfg Config) int {
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	querySource, cerr := resolveQuerySource(cfg)
	if cerr != nil {
		fmt.Fprintf(cfg.Stderr, "error: %s\n", cerr.Msg)
		return 2
	}

	var override *language.Language
	if cfg.Language != "" {
		l, ok := language.ResolveByTag(cfg.Language)
		if !ok {
			fmt.Fprintf(cfg.Stderr, "error: unknown language %q\n", cfg.Language)
			return 2
		}
		override = l
	}

	var plugin *pluginhost.Handle
	if cfg.FilterPath != "" {
		h, err := pluginhost.Load(cfg.FilterPath, cfg.FilterArg)
		if err != nil {
			fmt.Fprintf(cfg.Stderr, "error: %v\n", err)
			return 2
		}
		plugin = h
		defer plugin.Close()
	}

	sink := diag.New(cfg.Debug)
	sink.SetOutput(cfg.Stderr)
	cache := querycache.New(querySource, cfg.Capture)

	paths := cfg.Paths
	if len(paths) == 0 {
		paths = []string{"."}
	}

	tasks, softErrored, visitedAny := discoverTasks(paths, cfg, override, cache, sink)

	if !visitedAny {
		if !softErrored {
			fmt.Fprintln(cfg.Stderr, "No files were searched")
		}
		if softErrored {
			return 2
		}
		return 1
	}

	jobs := cfg.Jobs
	if jobs < 1 {
		jobs = runtime.NumCPU()
	}

	pool := &workerpool.Pool{Workers: jobs, Cache: cache, Plugin: plugin, Diag: sink}
	p := printer.New(cfg.Stdout, cfg.Vimgrep, cfg.Colorize)

	results := pool.Run(ctx, tasks)
	p.Drain(results)

	if err := pool.Err(); err != nil {
		fmt.Fprintf(cfg.Stderr, "error: %v\n", err)
		return 2
	}

	if !softErrored && attemptedAnyCompile(cache) && !anySuccessfulCompile(cache) {
		fmt.Fprintf(cfg.Stderr, "error: couldn't parse query for %s\n", strings.Join(attemptedLanguageNames(cache), " or "))
		return 2
	}

	// Per-file errors (FileResult.Err) are non-fatal and never change the
	// exit code; only startup/disambiguation errors and a total query
	// compile failure do (spec.md 7).
	if softErrored {
		return 2
	}
	if p.Matched() {
		return 0
	}
	return 1
}

func resolveQuerySource(cfg Config) (string, *ConfigError) {
	switch {
	case cfg.QuerySource != "" && cfg.QueryFile != "":
		return "", newConfigError("BothQueryAndQueryFile", "supply either --query-source or --query-file, not both")
	case cfg.QueryFile != "":
		data, err := os.ReadFile(cfg.QueryFile)
		if err != nil {
			return "", newConfigError("NoQuery", "couldn't read query file %s: %v", cfg.QueryFile, err)
		}
		return string(data), nil
	case cfg.QuerySource != "":
		return cfg.QuerySource, nil
	case cfg.FilterPath != "":
		return allNodesQuery, nil
	default:
		return "", newConfigError("NoQuery", "supply --query-source, --query-file, or --filter")
	}
}

// discoverTasks walks cfg.Paths, classifying every candidate file and
// resolving its compiled query eagerly enough to disambiguate an
// extension claimed by more than one language (SPEC_FULL.md 12). It
// returns the ordered task list the Worker Pool will run, and whether
// any soft (non-startup) configuration error occurred that should force
// exit code 2 once the run finishes.
func discoverTasks(
	paths []string,
	cfg Config,
	override *language.Language,
	cache *querycache.Cache,
	sink *diag.Sink,
) (tasks []workerpool.Task, errored, visitedAny bool) {
	// classifyAndAdd is shared by both explicit file paths and
	// walker-discovered files; explicit tells it whether to report an
	// unrecognized type as an error (the user named that path
	// directly) or to skip it silently (the walker offers every
	// regular file it finds, recognized extension or not).
	classifyAndAdd := func(path string, explicit bool) {
		visitedAny = true
		candidates := classify(path, override)
		switch len(candidates) {
		case 0:
			if !explicit {
				return
			}
			if override != nil {
				fmt.Fprintf(cfg.Stderr, "error: %s does not belong to language %s\n", path, override.Tag())
			} else {
				fmt.Fprintf(cfg.Stderr, "error: %s does not belong to a recognized language\n", path)
			}
			errored = true
		case 1:
			tasks = append(tasks, workerpool.Task{Path: path, Lang: candidates[0]})
		default:
			lang, ambiguous := disambiguate(path, candidates, cache)
			if ambiguous != nil {
				fmt.Fprintf(cfg.Stderr, "error: %s could be %s; specify --language\n", path, strings.Join(ambiguous, " or "))
				errored = true
				return
			}
			if lang == nil {
				return
			}
			tasks = append(tasks, workerpool.Task{Path: path, Lang: lang})
		}
	}

	opts := walker.Options{NoIgnore: cfg.NoIgnore, Hidden: cfg.Hidden}
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			sink.Report(root, "walk", err)
			continue
		}
		if !info.IsDir() {
			classifyAndAdd(root, true)
			continue
		}
		if err := walker.Walk(root, opts, func(path string) error {
			classifyAndAdd(path, false)
			return nil
		}); err != nil {
			sink.Report(root, "walk", err)
		}
	}

	return tasks, errored, visitedAny
}

// disambiguate tries compiling the query against every candidate
// language. Exactly one success picks that language; zero successes
// skips the file (already-recorded LanguageCompileErrors cover why).
// When more than one succeeds, the registry's preferred language for
// path's extension (e.g. cpp for .h) wins if it is among them;
// otherwise the file is reported as ambiguous.
func disambiguate(path string, candidates []*language.Language, cache *querycache.Cache) (*language.Language, []string) {
	var ok []*language.Language
	for _, l := range candidates {
		if _, skip, err := cache.Get(l); err == nil && !skip {
			ok = append(ok, l)
		}
	}
	if len(ok) == 0 {
		return nil, nil
	}
	if len(ok) == 1 {
		return ok[0], nil
	}
	if pref, found := language.ResolveByExtension(filepath.Ext(path)); found {
		for _, l := range ok {
			if l == pref {
				return l, nil
			}
		}
	}
	names := make([]string, len(ok))
	for i, l := range ok {
		names[i] = l.Tag()
	}
	sort.Strings(names)
	return nil, names
}

func attemptedAnyCompile(cache *querycache.Cache) bool {
	return cache.Attempted() > 0
}

func anySuccessfulCompile(cache *querycache.Cache) bool {
	return cache.Successes() > 0
}

func attemptedLanguageNames(cache *querycache.Cache) []string {
	names := cache.AttemptedLanguages()
	sort.Strings(names)
	return names
}
