// Package workerpool implements the Worker Pool (spec.md 4.7, 5):
// a fixed-size pool of goroutines running the per-file Parse -> Match ->
// Filter pipeline. Results leave the pool in completion order, each
// tagged with its task's index, so the Printer can restore the order the
// walker produced the files in regardless of which worker finishes
// which file first (spec.md invariant: identical output for N workers
// and for 1 worker).
package workerpool

import (
	"context"
	"errors"
	"sync"

	"github.com/nyxgeek/tsgrep/internal/diag"
	"github.com/nyxgeek/tsgrep/internal/language"
	"github.com/nyxgeek/tsgrep/internal/matchengine"
	"github.com/nyxgeek/tsgrep/internal/parsestage"
	"github.com/nyxgeek/tsgrep/internal/pluginhost"
	"github.com/nyxgeek/tsgrep/internal/querycache"
	"github.com/nyxgeek/tsgrep/internal/result"
	"golang.org/x/sync/errgroup"
)

// Task is one file handed to the pool by the walker, already resolved
// to a Language (spec.md 4.3's File Classifier runs ahead of this).
type Task struct {
	Path string
	Lang *language.Language
}

// Pool runs the tasks passed to Run through the per-file pipeline using
// Workers goroutines and streams results in completion order, each
// tagged with its task's index. Once the context is cancelled, new
// tasks are no longer dispatched and queued ones are skipped without a
// result; in-flight tasks still run to completion.
type Pool struct {
	Workers int
	Cache   *querycache.Cache
	Plugin  *pluginhost.Handle // nil if no --filter was given
	Diag    *diag.Sink

	err           error    // set once Run's returned channel has been fully drained
	reportedSkips sync.Map // language tag -> struct{}, for the once-per-language diag report
}

// Run dispatches every task across Workers goroutines (via
// golang.org/x/sync/errgroup, so the first worker to hit a fatal,
// run-wide error cancels every other worker's context) and returns a
// channel of IndexedResult, closed once every task has been processed
// or dispatch was halted. The bounded dispatch buffer is 4x the worker
// count (spec.md 5.2). Call Err after the channel is drained to learn
// whether a fatal error (e.g. NoSuchCapture) cut the run short.
func (p *Pool) Run(ctx context.Context, tasks []Task) <-chan result.IndexedResult {
	out := make(chan result.IndexedResult)
	if len(tasks) == 0 {
		close(out)
		return out
	}

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	bufferSize := workers * 4
	jobQueue := make(chan int, bufferSize) // indices into tasks

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for idx := range jobQueue {
				if gctx.Err() != nil {
					continue
				}
				res, fatal := p.process(gctx, tasks[idx])
				out <- result.IndexedResult{Seq: idx, Result: res}
				if fatal != nil {
					return fatal
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobQueue)
		for i := range tasks {
			if gctx.Err() != nil {
				return nil
			}
			select {
			case jobQueue <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	go func() {
		// Assigning p.err here and closing out afterward is safe without
		// further synchronization: the channel close/drain establishes the
		// happens-before edge the caller relies on when it calls Err after
		// ranging over the channel to completion.
		p.err = g.Wait()
		close(out)
	}()

	return out
}

// Err returns the fatal error that halted the run, if any. Only
// meaningful after the channel Run returned has been fully drained.
func (p *Pool) Err() error { return p.err }

// process runs the per-file pipeline. The second return value is
// non-nil only for an error that should abort the entire run (a
// misconfigured query, not a per-file failure); such errors are also
// attached to the returned FileResult so the Printer's failure
// accounting and diagnostics see them too.
func (p *Pool) process(ctx context.Context, t Task) (result.FileResult, error) {
	src, err := parsestage.Read(t.Path)
	if err != nil {
		p.Diag.Report(t.Path, "read", err)
		return result.FileResult{Path: t.Path, Err: &result.FileError{Path: t.Path, Kind: "read", Err: err}}, nil
	}
	defer src.Close()

	cq, skip, err := p.Cache.Get(t.Lang)
	if err != nil {
		if fatal := fatalConfigError(err); fatal != nil {
			return result.FileResult{Path: t.Path, Err: err}, fatal
		}
		p.reportLanguageSkip(t.Lang, err)
		return result.FileResult{Path: t.Path}, nil
	}
	if skip {
		return result.FileResult{Path: t.Path}, nil
	}

	tree, err := parsestage.Parse(ctx, t.Lang, src.Bytes)
	if err != nil {
		p.Diag.Report(t.Path, "parse", err)
		return result.FileResult{Path: t.Path, Err: &result.FileError{Path: t.Path, Kind: "parse", Err: err}}, nil
	}
	defer tree.Close()

	nodes := cq.Matches(tree.RootNode(), src.Bytes)
	if p.Plugin != nil {
		accepted := nodes[:0:0]
		for _, n := range nodes {
			accept, jerr := p.Plugin.Judge(tree, n)
			if jerr != nil {
				p.Diag.Report(t.Path, "plugin", jerr)
				return result.FileResult{Path: t.Path, Err: &result.FileError{Path: t.Path, Kind: "plugin", Err: jerr}}, nil
			}
			if accept {
				accepted = append(accepted, n)
			}
		}
		nodes = accepted
	}

	return result.FileResult{Path: t.Path, Matches: matchengine.Ranges(nodes, src.Bytes)}, nil
}

// reportLanguageSkip reports a per-language compile failure to the
// diagnostic sink exactly once per language, no matter how many files
// of that language the pool processes (spec.md 4.2's "files of that
// language are silently skipped" still surfaces once, on --debug).
func (p *Pool) reportLanguageSkip(lang *language.Language, err error) {
	if _, already := p.reportedSkips.LoadOrStore(lang.Tag(), struct{}{}); already {
		return
	}
	p.Diag.Report("", "language-skip", err)
}

// fatalConfigError reports whether err from the Query Cache represents
// a run-wide configuration failure (spec.md 7's QueryHasNoCaptures /
// NoSuchCapture) rather than a per-file concern.
func fatalConfigError(err error) error {
	if errors.Is(err, querycache.ErrQueryHasNoCaptures) {
		return err
	}
	var nsc *querycache.NoSuchCaptureError
	if errors.As(err, &nsc) {
		return err
	}
	return nil
}
