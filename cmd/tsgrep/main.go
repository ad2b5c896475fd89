// Command tsgrep is a recursive, syntax-aware source-code search tool:
// given a tree-sitter query, it walks a directory tree and prints every
// matching source range in a grep-compatible format.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/nyxgeek/tsgrep/internal/tsgrep"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

func main() {
	app := &cli.Command{
		Name:  "tsgrep",
		Usage: "search source code by tree-sitter query",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query-source", Aliases: []string{"q"}, Usage: "inline query text"},
			&cli.StringFlag{Name: "query-file", Aliases: []string{"Q"}, Usage: "path to a query file"},
			&cli.StringFlag{Name: "capture", Aliases: []string{"c"}, Usage: "target capture name override"},
			&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Usage: "force all files to this language tag"},
			&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Usage: "path to a native filter plugin"},
			&cli.StringFlag{Name: "filter-arg", Aliases: []string{"a"}, Usage: "opaque argument passed to the filter plugin"},
			&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Value: runtime.NumCPU(), Usage: "number of parallel workers"},
			&cli.BoolFlag{Name: "vimgrep", Usage: "one match per line: PATH:LINE:COLUMN:CONTENT"},
			&cli.StringFlag{Name: "color", Value: "auto", Usage: "auto, always, never"},
			&cli.BoolFlag{Name: "debug", Usage: "enable the diagnostic channel on stderr"},
			&cli.BoolFlag{Name: "no-ignore", Usage: "disable gitignore-aware filtering"},
			&cli.BoolFlag{Name: "hidden", Usage: "include dot-files and dot-directories"},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := tsgrep.Config{
		QuerySource: cmd.String("query-source"),
		QueryFile:   cmd.String("query-file"),
		Capture:     cmd.String("capture"),
		Language:    cmd.String("language"),
		FilterPath:  cmd.String("filter"),
		FilterArg:   cmd.String("filter-arg"),
		Paths:       cmd.Args().Slice(),
		Jobs:        cmd.Int("jobs"),
		Vimgrep:     cmd.Bool("vimgrep"),
		Colorize:    resolveColor(cmd.String("color")),
		Debug:       cmd.Bool("debug"),
		NoIgnore:    cmd.Bool("no-ignore"),
		Hidden:      cmd.Bool("hidden"),
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}

	os.Exit(tsgrep.Run(ctx, cfg))
	return nil
}

// resolveColor implements --color {auto,always,never}; "auto" decides
// by whether stdout is a terminal, honoring NO_COLOR the way
// golang.org/x/term's ecosystem convention does (checked by the
// Printer's color library, not here).
func resolveColor(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd()))
	}
}
