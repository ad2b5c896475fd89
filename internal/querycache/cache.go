// Package querycache implements the Query Cache (spec.md 4.2): compiling
// a query source against a Language at most once per process run, and
// resolving the single "target capture" every match is projected to.
package querycache

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nyxgeek/tsgrep/internal/language"
	"github.com/nyxgeek/tsgrep/internal/result"
	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/sync/singleflight"
)

// ErrQueryHasNoCaptures is returned at startup when a query defines no
// captures at all; spec.md 4.2 makes this a fatal configuration error.
var ErrQueryHasNoCaptures = errors.New("query has no captures")

// NoSuchCaptureError is returned when --capture names a capture the
// query does not define.
type NoSuchCaptureError struct{ Name string }

func (e *NoSuchCaptureError) Error() string {
	return fmt.Sprintf("no such capture: %q", e.Name)
}

// CompiledQuery is the immutable result of compiling a query source
// against one Language (spec.md 3). Safe to share across workers.
type CompiledQuery struct {
	Language      *language.Language
	Query         *sitter.Query
	CaptureNames  []string
	TargetCapture uint32
	predicates    [][]predicate
}

// Matches evaluates the query against a node (normally a tree's root
// node) and returns the captured nodes bound to the target capture,
// filtered by any textual-equality/regex predicates attached to the
// pattern that produced them. One entry is returned per captured node,
// so a pattern whose target capture matches multiple nodes yields
// multiple entries for that one query match (spec.md 4.5.2, an
// explicitly pinned "open question" from the original source).
func (cq *CompiledQuery) Matches(root *sitter.Node, source []byte) []*sitter.Node {
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(cq.Query, root)

	var out []*sitter.Node
	for {
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}

		byIndex := make(map[uint32]*sitter.Node, len(m.Captures))
		var targets []*sitter.Node
		for _, c := range m.Captures {
			node := c.Node
			byIndex[c.Index] = node
			if c.Index == cq.TargetCapture {
				targets = append(targets, node)
			}
		}
		if len(targets) == 0 {
			continue
		}
		if preds := cq.predicates[m.PatternIndex]; len(preds) > 0 {
			if !evaluate(preds, byIndex, source) {
				continue
			}
		}
		out = append(out, targets...)
	}
	return out
}

type cacheEntry struct {
	query *CompiledQuery
	err   error
}

// Cache is the process-wide Query Cache. Exactly one compilation attempt
// happens per Language per Cache instance (spec.md invariant 3); readers
// that lose the race block on singleflight and then observe the same
// recorded outcome as the winner.
type Cache struct {
	source         string
	captureOverride string

	group singleflight.Group

	mu      sync.RWMutex
	results map[string]cacheEntry

	targetOnce     sync.Once
	targetErr      error
	targetResolved bool
	targetName     string
}

// New creates a Cache for one query source, with an optional capture
// name override (spec.md 4.2's --capture flag).
func New(querySource, captureOverride string) *Cache {
	return &Cache{
		source:          querySource,
		captureOverride: captureOverride,
		results:         make(map[string]cacheEntry),
	}
}

// Get compiles (or returns the previously compiled/failed) query for
// lang. skip is true if the language should be skipped for the rest of
// the run, in which case err is either nil (the target capture name
// just isn't defined by this language's query) or a
// *result.LanguageCompileError wrapping why the query itself wouldn't
// compile. If the target capture itself failed to resolve, skip is true
// and err is ErrQueryHasNoCaptures or a *NoSuchCaptureError, both of
// which callers treat as fatal.
func (c *Cache) Get(lang *language.Language) (cq *CompiledQuery, skip bool, err error) {
	c.mu.RLock()
	if e, ok := c.results[lang.Tag()]; ok {
		c.mu.RUnlock()
		return c.finish(lang, e)
	}
	c.mu.RUnlock()

	v, _, _ := c.group.Do(lang.Tag(), func() (interface{}, error) {
		// An earlier flight may have finished and recorded its outcome
		// between the lookup above and this call.
		c.mu.RLock()
		e, ok := c.results[lang.Tag()]
		c.mu.RUnlock()
		if ok {
			return e, nil
		}
		q, cerr := c.compile(lang)
		entry := cacheEntry{query: q, err: cerr}
		c.mu.Lock()
		c.results[lang.Tag()] = entry
		c.mu.Unlock()
		return entry, nil
	})

	return c.finish(lang, v.(cacheEntry))
}

// Attempted returns how many distinct languages have had a compilation
// attempt recorded (successful or not).
func (c *Cache) Attempted() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}

// Successes returns how many distinct languages compiled successfully.
func (c *Cache) Successes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.results {
		if e.err == nil {
			n++
		}
	}
	return n
}

// AttemptedLanguages returns the tags of every language that had a
// compilation attempt recorded, for the "couldn't parse query for ..."
// fatal diagnostic (SPEC_FULL.md 12).
func (c *Cache) AttemptedLanguages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.results))
	for tag := range c.results {
		out = append(out, tag)
	}
	return out
}

func (c *Cache) finish(lang *language.Language, e cacheEntry) (*CompiledQuery, bool, error) {
	if e.err != nil {
		return nil, true, &result.LanguageCompileError{Language: lang.Tag(), Err: e.err}
	}
	if !c.resolveTarget(e.query) {
		return nil, true, c.targetErr
	}
	if idx, ok := c.targetIndex(e.query); ok {
		cq := *e.query
		cq.TargetCapture = idx
		return &cq, false, nil
	}
	// The resolved target capture name isn't defined against this
	// language's compiled query (its capture set differs from whatever
	// language first resolved the name) — skip this language.
	return nil, true, nil
}

func (c *Cache) compile(lang *language.Language) (*CompiledQuery, error) {
	q, err := sitter.NewQuery([]byte(c.source), lang.Grammar())
	if err != nil {
		return nil, err
	}

	count := int(q.CaptureCount())
	names := make([]string, count)
	for i := 0; i < count; i++ {
		names[i] = q.CaptureNameForId(uint32(i))
	}

	preds, err := buildPredicates(q)
	if err != nil {
		return nil, err
	}

	return &CompiledQuery{
		Language:     lang,
		Query:        q,
		CaptureNames: names,
		predicates:   preds,
	}, nil
}

// resolveTarget picks the target capture name exactly once per Cache,
// from the first successfully compiled query observed (spec.md's design
// note: this rule is pinned here as lexicographic-smallest). Every
// subsequent language reuses the same *name*, resolving it to its own
// capture index.
func (c *Cache) resolveTarget(q *CompiledQuery) bool {
	c.targetOnce.Do(func() {
		if len(q.CaptureNames) == 0 {
			c.targetErr = ErrQueryHasNoCaptures
			return
		}
		if c.captureOverride != "" {
			found := false
			for _, n := range q.CaptureNames {
				if n == c.captureOverride {
					found = true
					break
				}
			}
			if !found {
				c.targetErr = &NoSuchCaptureError{Name: c.captureOverride}
				return
			}
			c.targetName = c.captureOverride
		} else {
			names := append([]string(nil), q.CaptureNames...)
			sort.Strings(names)
			c.targetName = names[0]
		}
		c.targetResolved = true
	})
	return c.targetResolved
}

func (c *Cache) targetIndex(q *CompiledQuery) (uint32, bool) {
	for i, n := range q.CaptureNames {
		if n == c.targetName {
			return uint32(i), true
		}
	}
	return 0, false
}
