// Package printer implements the Printer (spec.md 4.8): reassembling
// the Worker Pool's out-of-order FileResults into walker-emission
// order and formatting matches to standard output.
package printer

import (
	"bufio"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/nyxgeek/tsgrep/internal/result"
)

// Printer is single-threaded and owns w exclusively for the lifetime of
// Drain; every file's output is written atomically before the next
// file's begins (spec.md 4.8).
type Printer struct {
	w        *bufio.Writer
	vimgrep  bool
	colorize bool

	matched bool
	failed  bool
}

// New creates a Printer. colorize should be the result of a TTY check
// at startup (spec.md 4.8: "colorization is applied only when the
// output is a terminal"); it is never probed here.
func New(w io.Writer, vimgrep, colorize bool) *Printer {
	return &Printer{w: bufio.NewWriter(w), vimgrep: vimgrep, colorize: colorize}
}

// Matched reports whether any file produced at least one match, for
// the run's exit-code decision (spec.md 7: 0 matched / 1 no-match).
func (p *Printer) Matched() bool { return p.matched }

// Failed reports whether any file produced a non-nil FileResult.Err.
func (p *Printer) Failed() bool { return p.failed }

// Drain reassembles results into Seq order (the sequence-numbered
// buffer spec.md 4.7 assigns to the Printer) and writes each file's
// matches as soon as it is next in line, buffering results that arrive
// ahead of schedule. It returns once results is closed and everything
// has been flushed.
func (p *Printer) Drain(results <-chan result.IndexedResult) {
	defer p.w.Flush()

	pending := make(map[int]result.FileResult)
	next := 0
	for r := range results {
		pending[r.Seq] = r.Result
		for {
			fr, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			p.write(fr)
			next++
		}
	}
}

func (p *Printer) write(fr result.FileResult) {
	if fr.Err != nil {
		p.failed = true
		return
	}
	if len(fr.Matches) == 0 {
		return
	}
	p.matched = true

	path := fr.Path
	if p.colorize {
		path = color.MagentaString(path)
	}

	for _, m := range fr.Matches {
		content := m.Line
		if p.colorize {
			content = highlight(content, m)
		}

		if p.vimgrep {
			fmt.Fprintf(p.w, "%s:%d:%d:%s\n", path, m.Start.Line, m.Start.Column+1, content)
			continue
		}
		fmt.Fprintf(p.w, "%s:%d:%s\n", path, m.Start.Line, content)
	}
}

// highlight wraps the portion of content covered by the match in its
// starting line in the matched-text color. Multi-line matches are only
// highlighted through the end of their first line, since content is
// always that one line's text.
func highlight(content string, m result.MatchRange) string {
	col := m.Start.Column
	if col < 0 || col > len(content) {
		return content
	}
	end := len(content)
	if m.End.Line == m.Start.Line {
		if e := m.Start.Column + (m.End.Column - m.Start.Column); e >= col && e <= len(content) {
			end = e
		}
	}
	return content[:col] + color.New(color.FgRed, color.Bold).Sprint(content[col:end]) + content[end:]
}
