package querycache

import (
	"fmt"
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"
)

// predicate is one #eq?/#not-eq?/#match?/#not-match? check attached to a
// query pattern. Exactly these four operators are supported (spec.md
// 4.5); anything else fails compilation with UnsupportedPredicate.
type predicate struct {
	negate  bool
	regex   bool
	capture uint32
	// literal is set for a capture/string comparison; re is set instead
	// when regex is true.
	literal string
	re      *regexp.Regexp
	// capture2 and isCaptureCompare distinguish "#eq? @a @b" (compare two
	// captures) from "#eq? @a "literal"" (compare against a string).
	isCaptureCompare bool
	capture2         uint32
}

// UnsupportedPredicateError is returned when a query uses a predicate
// operator this engine does not implement.
type UnsupportedPredicateError struct {
	Name string
}

func (e *UnsupportedPredicateError) Error() string {
	return fmt.Sprintf("unsupported predicate: #%s", e.Name)
}

// buildPredicates walks every pattern's predicate steps and compiles the
// supported subset (textual equality, regex match) into evaluators. It
// fails fast on the first unsupported operator, matching spec.md's
// "Unsupported predicates cause compilation to fail" contract.
func buildPredicates(q *sitter.Query) ([][]predicate, error) {
	patternCount := int(q.PatternCount())
	out := make([][]predicate, patternCount)

	for pat := 0; pat < patternCount; pat++ {
		steps := q.PredicatesForPattern(uint32(pat))
		for _, expr := range steps {
			if len(expr) == 0 {
				continue
			}
			p, err := compilePredicateExpr(q, expr)
			if err != nil {
				return nil, err
			}
			out[pat] = append(out[pat], p)
		}
	}
	return out, nil
}

func compilePredicateExpr(q *sitter.Query, steps []sitter.QueryPredicateStep) (predicate, error) {
	if len(steps) == 0 || steps[0].Type != sitter.QueryPredicateStepTypeString {
		return predicate{}, &UnsupportedPredicateError{Name: "<malformed>"}
	}
	op := q.StringValueForId(steps[0].ValueId)

	var negate, isRegex bool
	switch op {
	case "eq?":
	case "not-eq?":
		negate = true
	case "match?":
		isRegex = true
	case "not-match?":
		isRegex = true
		negate = true
	default:
		return predicate{}, &UnsupportedPredicateError{Name: op}
	}

	if len(steps) < 3 {
		return predicate{}, &UnsupportedPredicateError{Name: op}
	}
	if steps[1].Type != sitter.QueryPredicateStepTypeCapture {
		return predicate{}, &UnsupportedPredicateError{Name: op}
	}

	p := predicate{negate: negate, regex: isRegex, capture: steps[1].ValueId}

	switch steps[2].Type {
	case sitter.QueryPredicateStepTypeCapture:
		p.isCaptureCompare = true
		p.capture2 = steps[2].ValueId
		if isRegex {
			return predicate{}, &UnsupportedPredicateError{Name: op}
		}
	case sitter.QueryPredicateStepTypeString:
		literal := q.StringValueForId(steps[2].ValueId)
		if isRegex {
			re, err := regexp.Compile(literal)
			if err != nil {
				return predicate{}, fmt.Errorf("compile #%s regex %q: %w", op, literal, err)
			}
			p.re = re
		} else {
			p.literal = literal
		}
	default:
		return predicate{}, &UnsupportedPredicateError{Name: op}
	}

	return p, nil
}

// evaluate checks whether match satisfies every predicate attached to its
// pattern. source is the file's decoded bytes, used to read capture text.
func evaluate(preds []predicate, captures map[uint32]*sitter.Node, source []byte) bool {
	for _, p := range preds {
		node, ok := captures[p.capture]
		if !ok {
			return false
		}
		text := node.Content(source)

		var result bool
		switch {
		case p.isCaptureCompare:
			other, ok := captures[p.capture2]
			if !ok {
				return false
			}
			result = text == other.Content(source)
		case p.regex:
			result = p.re.MatchString(text)
		default:
			result = text == p.literal
		}

		if p.negate {
			result = !result
		}
		if !result {
			return false
		}
	}
	return true
}
