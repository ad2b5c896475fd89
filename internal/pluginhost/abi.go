// Package pluginhost implements the Filter Plugin Host (spec.md 4.6,
// 6): loading a user-supplied native filter and invoking it per
// candidate match.
//
// The ABI is expressed as Go plugin symbols (spec.md's "native shared
// library resolving a well-known entry symbol" read literally for Go: a
// plugin built with `go build -buildmode=plugin` exporting these exact
// names). See plugins/acceptfn for a reference implementation.
package pluginhost

import sitter "github.com/smacker/go-tree-sitter"

// InitFunc is the plugin's one-time initialization entry. arg carries
// the user's --filter-arg string (empty if none was given); it returns
// an opaque per-run context threaded through every Judge call.
type InitFunc func(arg string) (any, error)

// JudgeFunc is invoked once per candidate match. Both sides reference
// the same in-memory tree; no bytes are marshaled across the boundary.
type JudgeFunc func(ctx any, tree *sitter.Tree, node *sitter.Node) bool

// TeardownFunc is invoked once, after every worker has quiesced.
type TeardownFunc func(ctx any)

// Capabilities is the plugin's advertised capability descriptor
// (spec.md 4.6/6). A plugin that cannot guarantee Judge is safe to call
// concurrently from multiple workers against distinct trees must report
// ThreadSafe: false, and the host serializes all Judge calls.
type Capabilities struct {
	ThreadSafe bool
}

// Exported plugin symbol names. A filter library must export exactly
// these four.
const (
	SymbolInit         = "Init"
	SymbolJudge        = "Judge"
	SymbolTeardown     = "Teardown"
	SymbolCapabilities = "Capabilities"
)
