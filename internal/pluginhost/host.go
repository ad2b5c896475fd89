package pluginhost

import (
	"fmt"
	"plugin"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// LoadError wraps any failure to open a plugin file or resolve its
// required symbols.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load plugin %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PanicError records a plugin's Judge call panicking. The host recovers
// from it, reports it as a per-file failure, and treats the node as
// rejected rather than aborting the run.
type PanicError struct {
	Recovered any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("plugin panicked: %v", e.Recovered)
}

// Handle is a loaded, initialized filter plugin, ready to Judge
// candidate nodes. Safe for concurrent use: Judge serializes internally
// when the plugin advertises ThreadSafe: false.
type Handle struct {
	path   string
	ctx    any
	judge  JudgeFunc
	teardown TeardownFunc
	caps   Capabilities

	mu sync.Mutex // held around Judge only when !caps.ThreadSafe
}

// Load opens the plugin at path, resolves its four required symbols,
// and runs Init(arg) once. Per spec.md 4.6, a plugin missing any
// symbol, or whose symbols have the wrong type, fails to load rather
// than being partially wired in.
func Load(path string, arg string) (*Handle, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	initSym, err := p.Lookup(SymbolInit)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	initFn, ok := initSym.(func(string) (any, error))
	if !ok {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%s has wrong signature", SymbolInit)}
	}

	judgeSym, err := p.Lookup(SymbolJudge)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	judgeFn, ok := judgeSym.(func(any, *sitter.Tree, *sitter.Node) bool)
	if !ok {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%s has wrong signature", SymbolJudge)}
	}

	teardownSym, err := p.Lookup(SymbolTeardown)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	teardownFn, ok := teardownSym.(func(any))
	if !ok {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%s has wrong signature", SymbolTeardown)}
	}

	capsSym, err := p.Lookup(SymbolCapabilities)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	caps, ok := capsSym.(*Capabilities)
	if !ok {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%s has wrong type", SymbolCapabilities)}
	}

	ctx, err := initFn(arg)
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("init: %w", err)}
	}

	return &Handle{
		path:     path,
		ctx:      ctx,
		judge:    judgeFn,
		teardown: teardownFn,
		caps:     *caps,
	}, nil
}

// Judge invokes the plugin's filter against a candidate node, isolating
// the caller from a panicking or misbehaving plugin: a panic is
// recovered and surfaced as (false, *PanicError), never propagated.
// Calls are serialized if the plugin is not thread-safe.
func (h *Handle) Judge(tree *sitter.Tree, node *sitter.Node) (accept bool, err error) {
	if !h.caps.ThreadSafe {
		h.mu.Lock()
		defer h.mu.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			accept = false
			err = &PanicError{Recovered: r}
		}
	}()

	return h.judge(h.ctx, tree, node), nil
}

// Close runs the plugin's teardown entry. Called once, after every
// worker referencing this Handle has finished.
func (h *Handle) Close() {
	h.teardown(h.ctx)
}
