// Package matchengine implements the Match Engine (spec.md 4.5): running
// a compiled query over a tree and projecting to ordered MatchRanges.
package matchengine

import (
	"bytes"
	"sort"

	"github.com/nyxgeek/tsgrep/internal/querycache"
	"github.com/nyxgeek/tsgrep/internal/result"
	sitter "github.com/smacker/go-tree-sitter"
)

// Run executes cq against tree's root node and returns the target
// capture's matches as MatchRanges, ascending by (start, end) byte
// offset with ties broken by end ascending (spec.md 4.5.3). Duplicate
// ranges produced by distinct query alternations are preserved, by
// design, rather than deduplicated.
func Run(cq *querycache.CompiledQuery, tree *sitter.Tree, source []byte) []result.MatchRange {
	return Ranges(cq.Matches(tree.RootNode(), source), source)
}

// Ranges projects already-matched nodes (as returned by
// CompiledQuery.Matches) to sorted MatchRanges, capturing each match's
// containing line from source while it's still in memory (spec.md 4.8's
// CONTENT). Split out from Run so callers that need to inspect or
// filter the underlying nodes first (the Worker Pool's plugin filter
// step) don't run the query twice.
func Ranges(nodes []*sitter.Node, source []byte) []result.MatchRange {
	if len(nodes) == 0 {
		return nil
	}

	ranges := make([]result.MatchRange, len(nodes))
	for i, n := range nodes {
		start, end := n.StartPoint(), n.EndPoint()
		ranges[i] = result.MatchRange{
			StartByte: n.StartByte(),
			EndByte:   n.EndByte(),
			Start:     result.Position{Line: int(start.Row) + 1, Column: int(start.Column)},
			End:       result.Position{Line: int(end.Row) + 1, Column: int(end.Column)},
			Line:      lineAt(source, n.StartByte()),
		}
	}

	sort.SliceStable(ranges, func(i, j int) bool {
		if ranges[i].StartByte != ranges[j].StartByte {
			return ranges[i].StartByte < ranges[j].StartByte
		}
		return ranges[i].EndByte < ranges[j].EndByte
	})
	return ranges
}

// lineAt returns the text of the line containing byte offset pos,
// excluding the terminating newline.
func lineAt(source []byte, pos uint32) string {
	if int(pos) > len(source) {
		pos = uint32(len(source))
	}
	start := bytes.LastIndexByte(source[:pos], '\n') + 1
	rel := bytes.IndexByte(source[pos:], '\n')
	end := len(source)
	if rel >= 0 {
		end = int(pos) + rel
	}
	return string(source[start:end])
}
