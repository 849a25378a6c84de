package filecheck

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is the directive type.
type Kind int

const (
	// CheckPlain matches at or after the end of the previous match.
	CheckPlain Kind = iota
	// CheckNext matches on the line following the previous match.
	CheckNext
	// CheckNot must not match between the surrounding positive matches.
	CheckNot
)

func (k Kind) String() string {
	switch k {
	case CheckPlain:
		return "CHECK"
	case CheckNext:
		return "CHECK-NEXT"
	case CheckNot:
		return "CHECK-NOT"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Directive is one parsed check line.
type Directive struct {
	Kind    Kind
	Pattern string // as written, trimmed
	Line    int    // 1-based line in the check text

	re *regexp.Regexp
}

func (d Directive) String() string {
	return d.Kind.String() + ": " + d.Pattern
}

// directiveRE finds the directive marker anywhere on a line. Longer names
// come first so CHECK-NEXT is not read as CHECK.
var directiveRE = regexp.MustCompile(`(CHECK-NEXT|CHECK-NOT|CHECK):`)

var kindsByName = map[string]Kind{
	"CHECK":      CheckPlain,
	"CHECK-NEXT": CheckNext,
	"CHECK-NOT":  CheckNot,
}

// Parse reads the directives in text. It fails on empty patterns, malformed
// {{regex}} blocks and a CHECK-NEXT with nothing before it.
func Parse(text string) ([]Directive, error) {
	var out []Directive
	for i, line := range strings.Split(text, "\n") {
		loc := directiveRE.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		kind := kindsByName[line[loc[2]:loc[3]]]
		pattern := strings.TrimSpace(line[loc[1]:])
		lineNo := i + 1

		if pattern == "" {
			return nil, fmt.Errorf("line %d: %s has an empty pattern", lineNo, kind)
		}
		if kind == CheckNext && !hasPositive(out) {
			return nil, fmt.Errorf("line %d: CHECK-NEXT needs a preceding CHECK", lineNo)
		}

		re, err := compilePattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, Directive{Kind: kind, Pattern: pattern, Line: lineNo, re: re})
	}
	return out, nil
}

func hasPositive(ds []Directive) bool {
	for _, d := range ds {
		if d.Kind != CheckNot {
			return true
		}
	}
	return false
}

// compilePattern turns literal text with {{regex}} blocks into one regexp.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	rest := pattern
	for rest != "" {
		open := strings.Index(rest, "{{")
		if open < 0 {
			writeLiteral(&b, rest)
			break
		}
		writeLiteral(&b, rest[:open])

		end := strings.Index(rest[open+2:], "}}")
		if end < 0 {
			return nil, fmt.Errorf("unterminated {{ in %q", pattern)
		}
		expr := rest[open+2 : open+2+end]
		if expr == "" {
			return nil, fmt.Errorf("empty {{}} in %q", pattern)
		}
		if _, err := regexp.Compile(expr); err != nil {
			return nil, fmt.Errorf("bad regex {{%s}}: %w", expr, err)
		}
		b.WriteString("(?:")
		b.WriteString(expr)
		b.WriteString(")")
		rest = rest[open+2+end+2:]
	}
	return regexp.Compile(b.String())
}

// writeLiteral quotes s, turning each space/tab run into a flexible match.
func writeLiteral(b *strings.Builder, s string) {
	start := 0
	inSpace := false
	for i := 0; i <= len(s); i++ {
		space := i < len(s) && (s[i] == ' ' || s[i] == '\t')
		switch {
		case i == len(s):
			if !inSpace {
				b.WriteString(regexp.QuoteMeta(s[start:]))
			}
		case space && !inSpace:
			b.WriteString(regexp.QuoteMeta(s[start:i]))
			b.WriteString(`[ \t]+`)
			inSpace = true
		case !space && inSpace:
			start = i
			inSpace = false
		}
	}
}
