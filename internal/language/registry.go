// Package language implements the Language Registry: the process-wide,
// build-time table mapping a language tag and file extensions to a
// tree-sitter grammar factory.
package language

import (
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Language is an opaque handle identifying a registered grammar.
type Language struct {
	tag        string
	extensions []string
	factory    func() *sitter.Language

	once    sync.Once
	grammar *sitter.Language
}

// Tag returns the lowercase language identifier, e.g. "rust".
func (l *Language) Tag() string { return l.tag }

// Extensions returns the file extensions (including the leading dot,
// lowercase) this language claims.
func (l *Language) Extensions() []string { return l.extensions }

// Grammar returns the tree-sitter grammar for this language. The factory
// is invoked lazily and only once per process per Language, since
// sitter.Language values are safe to share across parsers.
func (l *Language) Grammar() *sitter.Language {
	l.once.Do(func() {
		l.grammar = l.factory()
	})
	return l.grammar
}

// the registry itself; built once at package init time below and never
// mutated afterwards except for the one-shot grammar memoization inside
// each Language.
var (
	byTag       = map[string]*Language{}
	byExtension = map[string]*Language{}
	// candidatesByExtension holds every language claiming an extension,
	// registration order, backing CandidatesByExtension's disambiguation
	// fallback (SPEC_FULL.md 12) for extensions registered by more than
	// one language.
	candidatesByExtension = map[string][]*Language{}
	// extPreference records, for extensions claimed by more than one
	// language, which tag wins by default (spec.md 4.1's conflict
	// policy: C vs C++ on .h, prefer C++).
	extPreference = map[string]string{
		".h": "cpp",
	}
)

func register(tag string, extensions []string, factory func() *sitter.Language) {
	l := &Language{tag: tag, extensions: extensions, factory: factory}
	byTag[tag] = l
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		candidatesByExtension[ext] = append(candidatesByExtension[ext], l)
		if _, ok := byExtension[ext]; ok {
			if preferred := extPreference[ext]; preferred == tag {
				byExtension[ext] = l
			}
			continue
		}
		byExtension[ext] = l
	}
}

// ResolveByTag looks up a language by its tag (e.g. "go", "rust").
func ResolveByTag(tag string) (*Language, bool) {
	l, ok := byTag[strings.ToLower(tag)]
	return l, ok
}

// ResolveByExtension looks up the preferred language for a file
// extension (including the leading dot).
func ResolveByExtension(ext string) (*Language, bool) {
	l, ok := byExtension[strings.ToLower(ext)]
	return l, ok
}

// CandidatesByExtension returns every language registered against ext,
// in registration order. Most extensions have exactly one candidate;
// this is the building block for disambiguating extensions that have
// more than one, rather than silently applying the registry's single
// preferred-language default (SPEC_FULL.md 12).
func CandidatesByExtension(ext string) []*Language {
	return candidatesByExtension[strings.ToLower(ext)]
}

// All returns every registered language, sorted by tag for deterministic
// iteration (used by the "no language's query compiled" diagnostic).
func All() []*Language {
	out := make([]*Language, 0, len(byTag))
	for _, l := range byTag {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].tag < out[j].tag })
	return out
}

// Tags returns every registered tag, sorted.
func Tags() []string {
	out := make([]string, 0, len(byTag))
	for tag := range byTag {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
