package tsgrep

import (
	"path/filepath"

	"github.com/nyxgeek/tsgrep/internal/language"
)

// classify resolves path to its candidate language(s) per spec.md 4.3.
// When override is non-nil, every path is treated as that language,
// recognized-extension or not. Otherwise it returns every language
// registered against the path's extension — usually one, occasionally
// more, in which case the caller (Run) must disambiguate.
func classify(path string, override *language.Language) []*language.Language {
	if override != nil {
		return []*language.Language{override}
	}
	ext := filepath.Ext(path)
	if ext == "" {
		return nil
	}
	return language.CandidatesByExtension(ext)
}
