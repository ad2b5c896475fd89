// Package parsestage implements the Parse Stage (spec.md 4.4): turning a
// file on disk into a tree-sitter syntax tree, memory-mapping large files
// and best-effort-decoding non-UTF-8 input.
package parsestage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/edsrzf/mmap-go"
	"github.com/nyxgeek/tsgrep/internal/language"
	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// MmapThreshold is the file size, in bytes, above which Read memory-maps
// the file instead of heap-reading it (spec.md 4.4 default: 64KiB).
const MmapThreshold = 64 * 1024

// MaxFileSize is the implementation-defined cap beyond which a file
// fails with ErrFileTooLarge rather than being parsed at all.
const MaxFileSize = 1 << 31

// ErrFileTooLarge is returned when a file exceeds MaxFileSize.
var ErrFileTooLarge = errors.New("file too large")

// Source holds a file's decoded bytes plus, if the file was
// memory-mapped, the mapping that must be unmapped when the caller is
// done with it.
type Source struct {
	Bytes []byte
	mmap  mmap.MMap
}

// Close releases the memory mapping, if any. Safe to call on a
// heap-backed Source.
func (s *Source) Close() error {
	if s.mmap != nil {
		return s.mmap.Unmap()
	}
	return nil
}

// Read loads path's contents, memory-mapping above MmapThreshold, and
// decodes to UTF-8 if the bytes aren't already valid UTF-8 (BOM-aware,
// falling back to Latin-1).
func Read(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	size := info.Size()
	if size > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	if size == 0 {
		return &Source{Bytes: nil}, nil
	}

	if size > MmapThreshold {
		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("mmap: %w", err)
		}
		decoded, changed := decodeUTF8(m)
		if changed {
			// The decoded copy lives on the heap; the mapping backing
			// the original bytes is no longer needed.
			_ = m.Unmap()
			return &Source{Bytes: decoded}, nil
		}
		return &Source{Bytes: m, mmap: m}, nil
	}

	buf := make([]byte, size)
	if _, err := readFull(f, buf); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	decoded, _ := decodeUTF8(buf)
	return &Source{Bytes: decoded}, nil
}

func readFull(f *os.File, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := f.Read(buf[n:])
		n += m
		if err != nil {
			if n == len(buf) {
				return n, nil
			}
			return n, err
		}
		if m == 0 {
			break
		}
	}
	return n, nil
}

// decodeUTF8 strips a leading UTF-8 byte-order mark, and otherwise
// returns raw unchanged if it is already valid UTF-8. Otherwise it
// sniffs a byte-order mark and transcodes accordingly, or falls back to
// treating raw as Latin-1 (spec.md 4.4.2). The returned byte offsets
// (and therefore every MatchRange) refer to this decoded buffer, never
// the original on-disk bytes.
func decodeUTF8(raw []byte) (decoded []byte, changed bool) {
	if bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}) && isValidUTF8(raw[3:]) {
		// Copied so the result never aliases a mapping the caller unmaps.
		return append([]byte(nil), raw[3:]...), true
	}
	if isValidUTF8(raw) {
		return raw, false
	}

	var enc encoding.Encoding
	switch {
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		enc = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		enc = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		raw = raw[3:]
		enc = encoding.Nop
	default:
		enc = charmap.ISO8859_1
	}

	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil || out == nil {
		// Last-resort: replace invalid sequences with U+FFFD rather than fail the
		// whole file; ParseFailed will be reported by the caller only
		// if the tree-sitter parse itself then fails.
		out = bytes.ToValidUTF8(raw, []byte{0xEF, 0xBF, 0xBD})
	}
	return out, true
}

func isValidUTF8(b []byte) bool {
	return utf8.Valid(b)
}

// Parse invokes lang's tree-sitter parser on source, bounded by ctx.
func Parse(ctx context.Context, lang *language.Language, source []byte) (*sitter.Tree, error) {
	p := sitter.NewParser()
	p.SetLanguage(lang.Grammar())
	tree, err := p.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if tree == nil {
		return nil, errors.New("parse failed")
	}
	return tree, nil
}
