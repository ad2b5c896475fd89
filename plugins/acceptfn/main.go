// Command acceptfn is a reference filter plugin: it accepts only nodes
// whose grammar type matches its --filter-arg (or "function_item" if
// none was given). Build with:
//
//	go build -buildmode=plugin -o libaccept_fn.so ./plugins/acceptfn
package main

import (
	"github.com/nyxgeek/tsgrep/internal/pluginhost"
	sitter "github.com/smacker/go-tree-sitter"
)

type filterState struct {
	nodeType string
}

// Capabilities is resolved by the host via its exact exported type;
// this filter touches no shared state beyond its own immutable
// nodeType, so it is safe to call from every worker concurrently.
var Capabilities = pluginhost.Capabilities{ThreadSafe: true}

// Init is the plugin's one-time setup entry.
func Init(arg string) (any, error) {
	if arg == "" {
		arg = "function_item"
	}
	return &filterState{nodeType: arg}, nil
}

// Judge accepts a node iff its grammar type equals the configured
// nodeType.
func Judge(ctx any, tree *sitter.Tree, node *sitter.Node) bool {
	st, ok := ctx.(*filterState)
	if !ok {
		return false
	}
	return node.Type() == st.nodeType
}

// Teardown releases nothing; present to satisfy the ABI.
func Teardown(ctx any) {}
