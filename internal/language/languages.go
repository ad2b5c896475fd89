package language

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// init registers every grammar the build links in. Registration order is
// fixed and alphabetical so that extension-conflict resolution (outside
// of the explicit extPreference table) is deterministic across runs.
func init() {
	register("c", []string{".c", ".h"}, func() *sitter.Language { return c.GetLanguage() })
	register("cpp", []string{".cc", ".cpp", ".cxx", ".hpp", ".hh", ".h"}, func() *sitter.Language { return cpp.GetLanguage() })
	register("go", []string{".go"}, func() *sitter.Language { return golang.GetLanguage() })
	register("javascript", []string{".js", ".jsx", ".mjs"}, func() *sitter.Language { return javascript.GetLanguage() })
	register("python", []string{".py"}, func() *sitter.Language { return python.GetLanguage() })
	register("rust", []string{".rs"}, func() *sitter.Language { return rust.GetLanguage() })
	register("typescript", []string{".ts", ".tsx"}, func() *sitter.Language { return typescript.GetLanguage() })
}
